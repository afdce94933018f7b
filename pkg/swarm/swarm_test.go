package swarm

import (
	"context"
	"errors"
	"testing"

	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

func sphereFitness(pos []float64) float64 {
	var sum float64
	for _, v := range pos {
		sum += v * v
	}
	return -sum // maximize -> minimize sum of squares
}

func seedParticles(n, dim int) []Particle {
	particles := make([]Particle, n)
	for i := range particles {
		pos := make([]float64, dim)
		vel := make([]float64, dim)
		best := make([]float64, dim)
		for d := 0; d < dim; d++ {
			pos[d] = float64(i+1) * 2
			best[d] = pos[d]
		}
		particles[i] = Particle{AgentID: "p" + string(rune('a'+i)), Position: pos, Velocity: vel, BestPosition: best}
	}
	return particles
}

func TestOptimizePSOImprovesFitness(t *testing.T) {
	c := New(ParticleSwarm, WithConfig(Config{MaxIterations: 25}))
	particles := seedParticles(6, 3)

	result, err := c.OptimizePSO(context.Background(), particles, sphereFitness, PSOConfig{})
	if err != nil {
		t.Fatalf("OptimizePSO: %v", err)
	}
	if result.BestPosition == nil {
		t.Fatal("expected a best position")
	}
	if result.Iterations != 25 {
		t.Fatalf("Iterations = %d, want 25", result.Iterations)
	}
	hist := c.ConvergenceHistory()
	if len(hist) != 10 {
		t.Fatalf("ConvergenceHistory len = %d, want capped at 10", len(hist))
	}
}

func TestOptimizePSORequiresParticles(t *testing.T) {
	c := New(ParticleSwarm)
	if _, err := c.OptimizePSO(context.Background(), nil, sphereFitness, PSOConfig{}); err == nil {
		t.Fatal("expected error for empty particle set")
	}
}

func TestOptimizePSOCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(ParticleSwarm, WithConfig(Config{MaxIterations: 50}))
	result, err := c.OptimizePSO(ctx, seedParticles(3, 2), sphereFitness, PSOConfig{})
	if err != nil {
		t.Fatalf("OptimizePSO: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected Cancelled = true")
	}
}

func TestOptimizeACOFindsPath(t *testing.T) {
	graph := map[string][]string{
		"start": {"a", "b"},
		"a":     {"goal"},
		"b":     {"goal"},
		"goal":  {},
	}

	c := New(AntColony, WithConfig(Config{MaxIterations: 10}))
	result, err := c.OptimizeACO(context.Background(), graph, "start", "goal", ACOConfig{NumAnts: 8}, nil)
	if err != nil {
		t.Fatalf("OptimizeACO: %v", err)
	}
	if len(result.BestPath) == 0 {
		t.Fatal("expected a non-empty best path")
	}
	if result.BestPath[0] != "start" || result.BestPath[len(result.BestPath)-1] != "goal" {
		t.Fatalf("BestPath = %v, want start..goal", result.BestPath)
	}
}

func TestOptimizeACOUnknownStart(t *testing.T) {
	c := New(AntColony)
	if _, err := c.OptimizeACO(context.Background(), map[string][]string{}, "missing", "goal", ACOConfig{}, nil); err == nil {
		t.Fatal("expected error for unknown start node")
	}
}

func TestOptimizeACOUnreachableGoalReportsConvergenceFailure(t *testing.T) {
	graph := map[string][]string{
		"start":   {"a"},
		"a":       {},
		"goal":    {},
		"isolate": {},
	}

	c := New(AntColony, WithConfig(Config{MaxIterations: 5}))
	result, err := c.OptimizeACO(context.Background(), graph, "start", "goal", ACOConfig{NumAnts: 4}, nil)
	if !errors.Is(err, ErrConvergenceFailed) {
		t.Fatalf("err = %v, want ErrConvergenceFailed", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result alongside ErrConvergenceFailed")
	}
	if len(result.BestPath) != 0 {
		t.Fatalf("BestPath = %v, want empty since goal is unreachable", result.BestPath)
	}
}

func TestOptimizeABCConverges(t *testing.T) {
	c := New(BeeColony, WithConfig(Config{MaxIterations: 20}))
	result, err := c.OptimizeABC(context.Background(), sphereFitness, ABCConfig{NumSources: 8, Dimension: 3})
	if err != nil {
		t.Fatalf("OptimizeABC: %v", err)
	}
	if result.BestPosition == nil {
		t.Fatal("expected a best position")
	}
	if result.Iterations != 20 {
		t.Fatalf("Iterations = %d, want 20", result.Iterations)
	}
}

// fakeExecutor implements Executor for RunTask tests without a real LLM.
type fakeExecutor struct {
	outcome agent.TaskOutcome
	err     error
}

func (f *fakeExecutor) ExecuteTask(context.Context, agent.TaskInput) (agent.TaskOutcome, error) {
	return f.outcome, f.err
}

func TestRunTaskPicksHighestConfidence(t *testing.T) {
	c := New(ParticleSwarm)
	agents := []CandidateAgent{
		{ID: "low", Agent: &fakeExecutor{outcome: agent.TaskOutcome{Status: agent.TaskCompleted, Payload: "weak", QualityScore: 0.3}}},
		{ID: "high", Agent: &fakeExecutor{outcome: agent.TaskOutcome{Status: agent.TaskCompleted, Payload: "strong", QualityScore: 0.9}}},
	}

	result, err := c.RunTask(context.Background(), Task{ID: "t1", Description: "do the thing"}, agents, vote.Config{})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if result.Winner != "high" {
		t.Fatalf("Winner = %q, want %q", result.Winner, "high")
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("Candidates len = %d, want 2", len(result.Candidates))
	}
}

func TestRunTaskSkipsFailedCandidates(t *testing.T) {
	c := New(ParticleSwarm)
	agents := []CandidateAgent{
		{ID: "broken", Agent: &fakeExecutor{err: context.DeadlineExceeded}},
		{ID: "ok", Agent: &fakeExecutor{outcome: agent.TaskOutcome{Status: agent.TaskCompleted, Payload: "fine", QualityScore: 0.6}}},
	}

	result, err := c.RunTask(context.Background(), Task{ID: "t2"}, agents, vote.Config{})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if result.Winner != "ok" {
		t.Fatalf("Winner = %q, want %q", result.Winner, "ok")
	}
}

func TestRunTaskRequiresAgents(t *testing.T) {
	c := New(ParticleSwarm)
	if _, err := c.RunTask(context.Background(), Task{}, nil, vote.Config{}); err == nil {
		t.Fatal("expected error for empty agent population")
	}
}
