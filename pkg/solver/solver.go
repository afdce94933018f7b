// Package solver implements the Problem Solver: it classifies a
// problem's complexity, selects a solution approach (single agent,
// swarm, crew, multi-swarm, or hybrid), decomposes it into
// sub-problems when needed, dispatches to the chosen pkg/swarm or
// pkg/crew instances, and optionally refines the result through
// pkg/consensus before aggregating a final Solution.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/consensus"
	"github.com/lonestarx1/orcgrid/pkg/metrics"
	"github.com/lonestarx1/orcgrid/pkg/pool"
	"github.com/lonestarx1/orcgrid/pkg/trace"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// AgentType classifies a registered agent for matching purposes; an
// alias of pool.AgentType since the solver shares the pool's registry.
type AgentType = pool.AgentType

// Complexity is a problem's estimated difficulty.
type Complexity string

const (
	Simple        Complexity = "simple"
	Moderate      Complexity = "moderate"
	Complex       Complexity = "complex"
	HighlyComplex Complexity = "highly_complex"
)

// Approach is the solution strategy chosen for a problem.
type Approach string

const (
	SingleAgent   Approach = "single_agent"
	SwarmApproach Approach = "swarm"
	CrewApproach  Approach = "crew"
	MultiSwarm    Approach = "multi_swarm"
	Hybrid        Approach = "hybrid"
)

// ProblemType categorizes the kind of work a problem represents.
type ProblemType string

const (
	Development     ProblemType = "development"
	Analysis        ProblemType = "analysis"
	Design          ProblemType = "design"
	Optimization    ProblemType = "optimization"
	Troubleshooting ProblemType = "troubleshooting"
	Planning        ProblemType = "planning"
	Creative        ProblemType = "creative"
	General         ProblemType = "general"
)

// defaultPhases is the generic decomposition used when a problem
// names no required agent types.
var defaultPhases = []string{"analysis", "implementation", "testing"}

// Problem is a unit of work handed to the solver.
type Problem struct {
	ID                   string
	Title                string
	Description          string
	Type                 ProblemType
	Complexity           *Complexity
	Priority             int
	RequiredAgentTypes   []AgentType
	RequiredCapabilities []string
	Context              any
}

// SubProblem is one decomposed piece of a Problem.
type SubProblem struct {
	ID                 string
	ParentID           string
	Title              string
	Description        string
	Dependencies       []string
	RequiredAgentTypes []AgentType
	Priority           int
}

// Solution is the solver's final answer to a Problem.
type Solution struct {
	ProblemID         string
	Approach          Approach
	Result            any
	Confidence        float64
	QualityScore      float64
	VoteResult        *vote.Result
	ConsensusAchieved bool
	AgentsUsed        []string
	SwarmsUsed        int
	CrewsUsed         int
	Duration          time.Duration
	Iterations        int
	// Partial is true when the approach dispatch was cut short by
	// context cancellation or deadline; Err then names which one.
	Partial bool
	Err     string
}

// SolveOptions parameterizes a Solve call.
type SolveOptions struct {
	VotingStrategy     vote.Strategy
	UseConsensus       bool
	MaxConsensusRounds int
}

func (o SolveOptions) withDefaults() SolveOptions {
	if o.VotingStrategy == "" {
		o.VotingStrategy = vote.Majority
	}
	if o.MaxConsensusRounds <= 0 {
		o.MaxConsensusRounds = 3
	}
	return o
}

// Sentinel errors.
var (
	ErrNoSuitableAgent    = errors.New("solver: no suitable agent available")
	ErrNoAgentsRegistered = errors.New("solver: no agents registered")
)

// Executor is the narrow capability a registered agent must provide —
// satisfied directly by *agent.Agent.
type Executor interface {
	ExecuteTask(ctx context.Context, task agent.TaskInput) (agent.TaskOutcome, error)
}

type registeredAgent struct {
	id   string
	typ  AgentType
	caps []string
	exec Executor
}

// Solver orchestrates swarms, crews, and democratic voting to solve
// problems too complex for a single agent call. It owns the
// Swarm/Crew instances it creates per Solve call: each is built fresh
// and discarded at the end of the call, never persisted across
// problems.
type Solver struct {
	mu        sync.Mutex
	agents    []registeredAgent
	byID      map[string]int
	pool      *pool.Pool
	log       *metrics.Log
	tracer    trace.Tracer
	builder   *consensus.Builder
	problems  []Problem
	solutions []Solution
}

// historyCapacity bounds the problem/solution history Solve appends
// to, the same bounded-ring-buffer discipline pkg/metrics.Log uses for
// its event log.
const historyCapacity = 500

func (s *Solver) recordHistory(p Problem, sol Solution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problems = append(s.problems, p)
	s.solutions = append(s.solutions, sol)
	if len(s.problems) > historyCapacity {
		over := len(s.problems) - historyCapacity
		s.problems = s.problems[over:]
		s.solutions = s.solutions[over:]
	}
}

// Option configures a Solver at construction time.
type Option func(*Solver)

// WithPool attaches an existing Agent Pool instead of the default one
// the Solver creates for itself.
func WithPool(p *pool.Pool) Option {
	return func(s *Solver) { s.pool = p }
}

// WithMetricsLog attaches a Metrics & Event Log so every solved
// problem updates the rolling confidence/consensus-rate gauges.
func WithMetricsLog(l *metrics.Log) Option {
	return func(s *Solver) { s.log = l }
}

// WithTracer sets the tracer used to record solver.*/swarm.*/crew.*
// spans for nested orchestration.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Solver) { s.tracer = tracer }
}

// New creates a Solver with no registered agents.
func New(opts ...Option) *Solver {
	s := &Solver{
		byID:    make(map[string]int),
		pool:    pool.New(),
		tracer:  trace.Noop{},
		builder: consensus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAgent adds an executable agent to the solver's pool. It is
// both registered with the underlying pool.Pool (for type/capability
// matching and reservation) and kept locally so the solver can invoke
// it directly.
func (s *Solver) RegisterAgent(agentID string, typ AgentType, caps []string, exec Executor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[agentID]; exists {
		return fmt.Errorf("solver: agent %q already registered", agentID)
	}
	if err := s.pool.Register(pool.Descriptor{ID: agentID, Name: agentID, Type: typ, Capabilities: caps}); err != nil {
		return err
	}
	s.byID[agentID] = len(s.agents)
	s.agents = append(s.agents, registeredAgent{id: agentID, typ: typ, caps: caps, exec: exec})
	return nil
}

func (s *Solver) agentByID(agentID string) (registeredAgent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[agentID]
	if !ok {
		return registeredAgent{}, false
	}
	return s.agents[idx], true
}

// selectAgent picks the first agent matching one of types, falling
// back to the first registered agent when none match or types is
// empty. Grounded on _select_best_agent's same fallback chain.
func (s *Solver) selectAgent(types []AgentType) (registeredAgent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range types {
		ids := s.pool.MatchByType(t, 1)
		if len(ids) == 0 {
			continue
		}
		if idx, ok := s.byID[ids[0]]; ok {
			return s.agents[idx], true
		}
	}
	if len(s.agents) > 0 {
		return s.agents[0], true
	}
	return registeredAgent{}, false
}

// selectAgents picks up to max agents matching types first, then
// fills remaining slots with any other registered agent — the same
// two-pass selection _select_agents_for_problem performs.
func (s *Solver) selectAgents(types []AgentType, max int) []registeredAgent {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make([]registeredAgent, 0, max)
	taken := make(map[string]bool)

	for _, t := range types {
		for _, ra := range s.agents {
			if ra.typ == t && !taken[ra.id] {
				selected = append(selected, ra)
				taken[ra.id] = true
				if len(selected) >= max {
					return selected
				}
			}
		}
	}
	for _, ra := range s.agents {
		if !taken[ra.id] {
			selected = append(selected, ra)
			taken[ra.id] = true
			if len(selected) >= max {
				return selected
			}
		}
	}
	return selected
}

// Len reports how many agents are registered with this solver.
func (s *Solver) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}
