// Package swarm implements the Swarm Coordinator: decentralized
// agent optimization via particle swarm, ant colony, and artificial
// bee colony algorithms, plus a democratic task-execution mode that
// lets a population of agents each propose a solution and tallies
// their self-reported confidence into a single winner.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonestarx1/orcgrid/internal/id"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/trace"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// Strategy names the swarm intelligence algorithm a Coordinator runs.
type Strategy string

const (
	ParticleSwarm Strategy = "particle_swarm"
	AntColony     Strategy = "ant_colony"
	BeeColony     Strategy = "bee_colony"
)

// ErrConvergenceFailed is informational: OptimizeACO returns it
// alongside a valid (non-nil) ACOResult when no path to goal was found
// within MaxIterations. It is never used to suppress a result — the
// caller decides whether a path-less result is still useful.
var ErrConvergenceFailed = errors.New("swarm: did not converge within the iteration budget")

// Config controls a Coordinator's shared iteration/time bounds.
type Config struct {
	// MaxIterations bounds every optimize call. Defaults to 100 if <= 0.
	MaxIterations int
	// Timeout is the maximum wall-clock duration for one optimize call.
	// Zero means no timeout (relies on the caller's context).
	Timeout time.Duration
}

// Coordinator hosts one swarm optimization run at a time and keeps a
// capped trace of the global best fitness across iterations for
// external metrics reporting.
type Coordinator struct {
	strategy Strategy
	config   Config
	tracer   trace.Tracer

	mu                 sync.Mutex
	convergenceHistory []float64
	iterationCount     int
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// New creates a Coordinator for the given strategy.
func New(strategy Strategy, opts ...Option) *Coordinator {
	c := &Coordinator{
		strategy: strategy,
		config:   Config{MaxIterations: 100},
		tracer:   trace.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConfig sets the iteration/timeout bounds.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		if cfg.MaxIterations <= 0 {
			cfg.MaxIterations = 100
		}
		c.config = cfg
	}
}

// WithTracer sets the tracer used to record swarm.optimize spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = tracer }
}

// Strategy returns the coordinator's configured algorithm.
func (c *Coordinator) Strategy() Strategy { return c.strategy }

// ConvergenceHistory returns the last 10 recorded global-best-fitness
// values, oldest first.
func (c *Coordinator) ConvergenceHistory() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.convergenceHistory))
	copy(out, c.convergenceHistory)
	return out
}

func (c *Coordinator) recordConvergence(best float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iterationCount++
	c.convergenceHistory = append(c.convergenceHistory, best)
	if len(c.convergenceHistory) > 10 {
		c.convergenceHistory = c.convergenceHistory[len(c.convergenceHistory)-10:]
	}
}

func boundedIterations(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Timeout)
	}
	return ctx, func() {}
}

// ---------------------------------------------------------------------
// Particle Swarm Optimization
// ---------------------------------------------------------------------

// Particle is one agent's candidate solution in PSO's search space.
type Particle struct {
	AgentID      string
	Position     []float64
	Velocity     []float64
	BestPosition []float64
	BestFitness  float64
	Fitness      float64
}

// PSOConfig parameterizes OptimizePSO. Zero values fall back to the
// standard PSO defaults.
type PSOConfig struct {
	W  float64 // inertia weight, default 0.7
	C1 float64 // cognitive parameter, default 1.5
	C2 float64 // social parameter, default 1.5
}

func (cfg PSOConfig) withDefaults() PSOConfig {
	if cfg.W == 0 {
		cfg.W = 0.7
	}
	if cfg.C1 == 0 {
		cfg.C1 = 1.5
	}
	if cfg.C2 == 0 {
		cfg.C2 = 1.5
	}
	return cfg
}

// PSOResult is OptimizePSO's outcome.
type PSOResult struct {
	BestPosition []float64
	BestFitness  float64
	Iterations   int
	Cancelled    bool
}

// OptimizePSO runs Particle Swarm Optimization over the given seed
// particles, evaluating fitness concurrently within each iteration
// (one goroutine per particle via errgroup) while serializing the
// global-best update through the calling goroutine, matching the
// "swarm global-best updates are serialized per swarm" concurrency
// rule.
func (c *Coordinator) OptimizePSO(ctx context.Context, particles []Particle, fitness func([]float64) float64, cfg PSOConfig) (*PSOResult, error) {
	if len(particles) == 0 {
		return nil, errors.New("swarm: at least one particle is required")
	}
	if fitness == nil {
		return nil, errors.New("swarm: fitness function is required")
	}
	cfg = cfg.withDefaults()

	ctx, cancel := boundedIterations(ctx, c.config)
	defer cancel()

	ctx, span := c.tracer.StartSpan(ctx, "swarm.optimize_pso")
	span.SetAttribute("swarm.particles", strconv.Itoa(len(particles)))
	defer c.tracer.EndSpan(span)

	swarm := make([]Particle, len(particles))
	copy(swarm, particles)

	var globalBestPosition []float64
	globalBestFitness := math.Inf(-1)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	iter := 0
	for ; iter < c.config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return &PSOResult{BestPosition: globalBestPosition, BestFitness: globalBestFitness, Iterations: iter, Cancelled: true}, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := range swarm {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				swarm[i].Fitness = fitness(swarm[i].Position)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return &PSOResult{BestPosition: globalBestPosition, BestFitness: globalBestFitness, Iterations: iter, Cancelled: true}, nil
		}

		for i := range swarm {
			if swarm[i].Fitness > swarm[i].BestFitness {
				swarm[i].BestFitness = swarm[i].Fitness
				swarm[i].BestPosition = append([]float64(nil), swarm[i].Position...)
			}
			if swarm[i].Fitness > globalBestFitness {
				globalBestFitness = swarm[i].Fitness
				globalBestPosition = append([]float64(nil), swarm[i].Position...)
			}
		}

		if globalBestPosition != nil {
			for i := range swarm {
				p := &swarm[i]
				for d := range p.Velocity {
					r1, r2 := rng.Float64(), rng.Float64()
					cognitive := cfg.C1 * r1 * (p.BestPosition[d] - p.Position[d])
					social := cfg.C2 * r2 * (globalBestPosition[d] - p.Position[d])
					p.Velocity[d] = cfg.W*p.Velocity[d] + cognitive + social
					p.Position[d] += p.Velocity[d]
				}
			}
		}

		c.recordConvergence(globalBestFitness)
	}

	span.SetAttribute("swarm.best_fitness", strconv.FormatFloat(globalBestFitness, 'f', 4, 64))
	return &PSOResult{BestPosition: globalBestPosition, BestFitness: globalBestFitness, Iterations: iter}, nil
}

// ---------------------------------------------------------------------
// Ant Colony Optimization
// ---------------------------------------------------------------------

type pheromoneKey struct{ from, to string }

// ACOConfig parameterizes OptimizeACO.
type ACOConfig struct {
	NumAnts     int     // default 20
	Alpha       float64 // pheromone importance, default 1.0
	Beta        float64 // heuristic importance, default 2.0
	Evaporation float64 // default 0.1
}

func (cfg ACOConfig) withDefaults() ACOConfig {
	if cfg.NumAnts == 0 {
		cfg.NumAnts = 20
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = 1.0
	}
	if cfg.Beta == 0 {
		cfg.Beta = 2.0
	}
	if cfg.Evaporation == 0 {
		cfg.Evaporation = 0.1
	}
	return cfg
}

// ACOResult is OptimizeACO's outcome.
type ACOResult struct {
	BestPath   []string
	Iterations int
	Cancelled  bool
}

const minPheromone = 0.01

// OptimizeACO finds a short start→goal path through graph using Ant
// Colony Optimization. heuristic defaults to a constant 1.0 function
// when nil, matching "η ... default 1.0 when no heuristic is supplied."
func (c *Coordinator) OptimizeACO(ctx context.Context, graph map[string][]string, start, goal string, cfg ACOConfig, heuristic func(from, to string) float64) (*ACOResult, error) {
	if _, ok := graph[start]; !ok {
		return nil, fmt.Errorf("swarm: start node %q not in graph", start)
	}
	cfg = cfg.withDefaults()
	if heuristic == nil {
		heuristic = func(string, string) float64 { return 1.0 }
	}

	ctx, cancel := boundedIterations(ctx, c.config)
	defer cancel()

	ctx, span := c.tracer.StartSpan(ctx, "swarm.optimize_aco")
	span.SetAttribute("swarm.start", start)
	span.SetAttribute("swarm.goal", goal)
	defer c.tracer.EndSpan(span)

	pheromones := make(map[pheromoneKey]float64)
	for node, neighbors := range graph {
		for _, nb := range neighbors {
			pheromones[pheromoneKey{node, nb}] = 1.0
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var bestPath []string
	bestLength := int(^uint(0) >> 1) // max int

	iter := 0
	for ; iter < c.config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return &ACOResult{BestPath: bestPath, Iterations: iter, Cancelled: true}, nil
		}

		var paths [][]string
		for ant := 0; ant < cfg.NumAnts; ant++ {
			path := constructPathACO(graph, start, goal, cfg.Alpha, cfg.Beta, pheromones, heuristic, rng)
			if len(path) > 0 && len(path) < bestLength {
				bestPath = path
				bestLength = len(path)
				paths = append(paths, path)
			}
		}

		updatePheromones(pheromones, paths, cfg.Evaporation)
	}

	if bestPath == nil {
		return &ACOResult{BestPath: bestPath, Iterations: iter}, ErrConvergenceFailed
	}
	return &ACOResult{BestPath: bestPath, Iterations: iter}, nil
}

func constructPathACO(graph map[string][]string, start, goal string, alpha, beta float64, pheromones map[pheromoneKey]float64, heuristic func(string, string) float64, rng *rand.Rand) []string {
	path := []string{start}
	current := start
	visited := map[string]bool{start: true}
	maxSteps := len(graph) * 2

	for step := 0; step < maxSteps; step++ {
		if current == goal {
			return path
		}

		var neighbors []string
		for _, n := range graph[current] {
			if !visited[n] {
				neighbors = append(neighbors, n)
			}
		}
		if len(neighbors) == 0 {
			break
		}

		probs := make([]float64, len(neighbors))
		var total float64
		for i, n := range neighbors {
			ph := pheromones[pheromoneKey{current, n}]
			if ph == 0 {
				ph = minPheromone
			}
			p := math.Pow(ph, alpha) * math.Pow(heuristic(current, n), beta)
			probs[i] = p
			total += p
		}
		if total > 0 {
			for i := range probs {
				probs[i] /= total
			}
		} else {
			for i := range probs {
				probs[i] = 1.0 / float64(len(neighbors))
			}
		}

		next := weightedChoice(neighbors, probs, rng)
		path = append(path, next)
		visited[next] = true
		current = next
	}

	if current == goal {
		return path
	}
	return nil
}

func updatePheromones(pheromones map[pheromoneKey]float64, paths [][]string, evaporation float64) {
	for k, v := range pheromones {
		v *= 1 - evaporation
		if v < minPheromone {
			v = minPheromone
		}
		pheromones[k] = v
	}

	for _, path := range paths {
		if len(path) < 2 {
			continue
		}
		deposit := 1.0 / float64(len(path))
		for i := 0; i < len(path)-1; i++ {
			k := pheromoneKey{path[i], path[i+1]}
			pheromones[k] += deposit
		}
	}
}

func weightedChoice(items []string, weights []float64, rng *rand.Rand) string {
	r := rng.Float64()
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return items[i]
		}
	}
	return items[len(items)-1]
}

// ---------------------------------------------------------------------
// Artificial Bee Colony
// ---------------------------------------------------------------------

// FoodSource is one candidate solution in ABC's search space.
type FoodSource struct {
	Position   []float64
	Fitness    float64
	VisitCount int
}

// ABCConfig parameterizes OptimizeABC.
type ABCConfig struct {
	NumSources   int // default 15 (one per employed bee)
	AbandonLimit int // default 10
	Dimension    int // default 5
}

func (cfg ABCConfig) withDefaults() ABCConfig {
	if cfg.NumSources == 0 {
		cfg.NumSources = 15
	}
	if cfg.AbandonLimit == 0 {
		cfg.AbandonLimit = 10
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 5
	}
	return cfg
}

// ABCResult is OptimizeABC's outcome.
type ABCResult struct {
	BestPosition []float64
	BestFitness  float64
	Iterations   int
	Cancelled    bool
}

// OptimizeABC runs Artificial Bee Colony optimization: employed bees
// exploit their own source, onlooker bees exploit sources chosen
// proportional to quality, and scout bees abandon sources that have
// gone AbandonLimit visits without improvement.
func (c *Coordinator) OptimizeABC(ctx context.Context, objective func([]float64) float64, cfg ABCConfig) (*ABCResult, error) {
	if objective == nil {
		return nil, errors.New("swarm: objective function is required")
	}
	cfg = cfg.withDefaults()

	ctx, cancel := boundedIterations(ctx, c.config)
	defer cancel()

	ctx, span := c.tracer.StartSpan(ctx, "swarm.optimize_abc")
	defer c.tracer.EndSpan(span)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	sources := make([]FoodSource, cfg.NumSources)
	for i := range sources {
		pos := randomPosition(cfg.Dimension, rng)
		sources[i] = FoodSource{Position: pos, Fitness: objective(pos)}
	}

	best := bestSource(sources)

	iter := 0
	for ; iter < c.config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return &ABCResult{BestPosition: best.Position, BestFitness: best.Fitness, Iterations: iter, Cancelled: true}, nil
		}

		// Employed bees phase.
		for i := range sources {
			exploitSource(sources, i, cfg.Dimension, objective, rng)
		}

		// Onlooker bees phase: same count as employed per the source.
		totalFitness := 0.0
		for _, s := range sources {
			totalFitness += s.Fitness
		}
		for n := 0; n < cfg.NumSources; n++ {
			idx := selectByFitness(sources, totalFitness, rng)
			exploitSource(sources, idx, cfg.Dimension, objective, rng)
		}

		// Scout bees phase: abandon exhausted sources.
		for i := range sources {
			if sources[i].VisitCount > cfg.AbandonLimit {
				pos := randomPosition(cfg.Dimension, rng)
				sources[i] = FoodSource{Position: pos, Fitness: objective(pos)}
			}
		}

		current := bestSource(sources)
		if current.Fitness > best.Fitness {
			best = current
		}
		c.recordConvergence(best.Fitness)
	}

	return &ABCResult{BestPosition: best.Position, BestFitness: best.Fitness, Iterations: iter}, nil
}

func randomPosition(dim int, rng *rand.Rand) []float64 {
	pos := make([]float64, dim)
	for i := range pos {
		pos[i] = rng.Float64()*20 - 10
	}
	return pos
}

func exploitSource(sources []FoodSource, idx, dim int, objective func([]float64) float64, rng *rand.Rand) {
	source := &sources[idx]
	neighbor := sources[rng.Intn(len(sources))]

	newPos := append([]float64(nil), source.Position...)
	k := rng.Intn(dim)
	phi := rng.Float64()*2 - 1
	newPos[k] = source.Position[k] + phi*(source.Position[k]-neighbor.Position[k])

	newFitness := objective(newPos)
	if newFitness > source.Fitness {
		source.Position = newPos
		source.Fitness = newFitness
		source.VisitCount = 0
	} else {
		source.VisitCount++
	}
}

func selectByFitness(sources []FoodSource, totalFitness float64, rng *rand.Rand) int {
	if totalFitness <= 0 {
		return rng.Intn(len(sources))
	}
	r := rng.Float64() * totalFitness
	var cumulative float64
	for i, s := range sources {
		cumulative += s.Fitness
		if r <= cumulative {
			return i
		}
	}
	return len(sources) - 1
}

func bestSource(sources []FoodSource) FoodSource {
	best := sources[0]
	for _, s := range sources[1:] {
		if s.Fitness > best.Fitness {
			best = s
		}
	}
	return best
}

// ---------------------------------------------------------------------
// Democratic swarm task mode
// ---------------------------------------------------------------------

// Task is the unit of work a democratic swarm run distributes to its
// population of candidate agents.
type Task struct {
	ID          string
	Description string
	Context     map[string]string
}

// Executor is the narrow capability a candidate agent must provide to
// participate in RunTask — satisfied directly by *agent.Agent.
type Executor interface {
	ExecuteTask(ctx context.Context, task agent.TaskInput) (agent.TaskOutcome, error)
}

// CandidateAgent is one population member eligible to propose a
// solution during a democratic swarm run.
type CandidateAgent struct {
	ID    string
	Agent Executor
}

// Candidate holds one agent's proposed solution and the outcome it
// was derived from.
type Candidate struct {
	AgentID string
	Outcome agent.TaskOutcome
	Err     error
}

// TaskResult is RunTask's outcome.
type TaskResult struct {
	RunID      string
	Winner     string
	Candidates []Candidate
	Vote       vote.Result
}

// RunTask has every candidate agent independently propose a solution
// to task, then tallies one ballot per candidate that did not fail via
// pkg/vote.Tally: the ballot's choice is the candidate's agent ID and
// its weight and confidence are the candidate's self-reported
// QualityScore, so Winner names an agent, not a payload — a
// democratic complement to PSO/ACO/ABC task assignment, where the
// swarm picks a winning proposal instead of a winning position.
func (c *Coordinator) RunTask(ctx context.Context, task Task, agents []CandidateAgent, cfg vote.Config) (*TaskResult, error) {
	if len(agents) == 0 {
		return nil, errors.New("swarm: at least one candidate agent is required")
	}

	ctx, cancel := boundedIterations(ctx, c.config)
	defer cancel()

	ctx, span := c.tracer.StartSpan(ctx, "swarm.run_task")
	span.SetAttribute("swarm.task_id", task.ID)
	defer c.tracer.EndSpan(span)

	type response struct {
		idx     int
		agentID string
		outcome agent.TaskOutcome
		err     error
	}

	responses := make([]response, len(agents))
	var wg sync.WaitGroup
	for i, ca := range agents {
		wg.Add(1)
		go func(i int, ca CandidateAgent) {
			defer wg.Done()
			outcome, err := ca.Agent.ExecuteTask(ctx, agent.TaskInput{
				ID:          task.ID,
				Description: task.Description,
				Context:     task.Context,
			})
			responses[i] = response{idx: i, agentID: ca.ID, outcome: outcome, err: err}
		}(i, ca)
	}
	wg.Wait()

	candidates := make([]Candidate, len(responses))
	var votes []vote.Vote
	for i, r := range responses {
		candidates[i] = Candidate{AgentID: r.agentID, Outcome: r.outcome, Err: r.err}
		if r.err != nil {
			continue
		}
		votes = append(votes, vote.Vote{
			VoterID:    r.agentID,
			Choice:     r.agentID,
			Weight:     r.outcome.QualityScore,
			Confidence: r.outcome.QualityScore,
		})
	}

	if cfg.Strategy == "" {
		cfg.Strategy = vote.Weighted
	}
	result := vote.Tally(votes, cfg)

	runID := id.New()
	span.SetAttribute("swarm.winner", result.Winner)

	return &TaskResult{
		RunID:      runID,
		Winner:     result.Winner,
		Candidates: candidates,
		Vote:       result,
	}, nil
}
