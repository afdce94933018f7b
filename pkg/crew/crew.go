// Package crew implements the Crew Scheduler: a structured,
// role-based team of agents that executes a task DAG under one of
// four process modes (sequential, parallel, hierarchical, democratic
// consensus), with review, retries, and per-agent reservation.
package crew

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lonestarx1/orcgrid/internal/id"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/consensus"
	"github.com/lonestarx1/orcgrid/pkg/metrics"
	"github.com/lonestarx1/orcgrid/pkg/pool"
	"github.com/lonestarx1/orcgrid/pkg/trace"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// Role is a crew member's function within the team.
type Role string

const (
	Leader      Role = "leader"
	Specialist  Role = "specialist"
	Coordinator Role = "coordinator"
	Executor    Role = "executor"
	Reviewer    Role = "reviewer"
	Advisor     Role = "advisor"
)

// ProcessMode selects how a crew executes its task DAG.
type ProcessMode string

const (
	Sequential          ProcessMode = "sequential"
	Parallel            ProcessMode = "parallel"
	Hierarchical        ProcessMode = "hierarchical"
	DemocraticConsensus ProcessMode = "democratic_consensus"
)

// State is a crew's lifecycle stage.
type State string

const (
	Assembling State = "assembling"
	Ready      State = "ready"
	Working    State = "working"
	Reviewing  State = "reviewing"
	Completed  State = "completed"
	Paused     State = "paused"
	Disbanded  State = "disbanded"
)

// TaskStatus is a task's execution state.
type TaskStatus string

const (
	Pending    TaskStatus = "pending"
	InProgress TaskStatus = "in_progress"
	TaskDone   TaskStatus = "completed"
	Failed     TaskStatus = "failed"
	Skipped    TaskStatus = "skipped"
)

// Sentinel errors.
var (
	ErrCrewNotReady              = errors.New("crew: not ready")
	ErrNoLeader                  = errors.New("crew: no leader assigned")
	ErrVotingDisabled            = errors.New("crew: voting not enabled for this crew")
	ErrMemberNotPresent          = errors.New("crew: agent is not a crew member")
	ErrMemberAlreadyPresent      = errors.New("crew: agent already in crew")
	ErrCircularDependency        = errors.New("crew: circular task dependency")
	ErrTaskDependencyUnsatisfied = errors.New("crew: task depends on an unknown task")
	ErrAgentCallbackFailed       = errors.New("crew: agent callback failed")
)

// Executor is the narrow capability a crew member's agent must
// provide — satisfied directly by *agent.Agent. Kept separate from
// swarm.Executor (same shape) to avoid a cross-package dependency
// between crew and swarm.
type Executor interface {
	ExecuteTask(ctx context.Context, task agent.TaskInput) (agent.TaskOutcome, error)
}

// Member is one agent participating in the crew under a fixed role.
type Member struct {
	AgentID        string
	Name           string
	Role           Role
	Capabilities   []string
	TasksAssigned  int
	TasksCompleted int
	QualityScore   float64
	Agent          Executor

	mu sync.Mutex
}

// Task is a unit of work within a crew's workflow.
type Task struct {
	ID             string
	Title          string
	Description    string
	AssignedTo     string
	AssignedRole   Role
	DelegatedFrom  string
	DependsOn      []string
	Status         TaskStatus
	Result         string
	QualityScore   float64
	RetryCount     int
	RequiresReview bool
	RequiresVote   bool
	RetryOnFailure bool
	ReviewedBy     string
	ReviewApproved *bool
	ReviewFeedback string
}

// Config controls a crew's workflow behavior.
type Config struct {
	Name             string
	Process          ProcessMode
	RequiredRoles    map[Role]int
	AllowDelegation  bool
	RequireReview    bool
	VotingEnabled    bool
	VotingStrategy   vote.Strategy
	QualityThreshold float64
	MaxRetries       int
	Timeout          time.Duration
}

func (c Config) withDefaults() Config {
	if c.QualityThreshold == 0 {
		c.QualityThreshold = 0.8
	}
	if c.VotingStrategy == "" {
		c.VotingStrategy = vote.Majority
	}
	return c
}

// Crew is a structured, role-based team of agents executing a shared
// task DAG.
type Crew struct {
	config Config
	crewID string

	mu            sync.Mutex
	members       map[string]*Member
	membersByRole map[Role][]string
	tasks         map[string]*Task
	taskOrder     []string
	state         State

	pool      *pool.Pool
	log       *metrics.Log
	tracer    trace.Tracer
	consensus *consensus.Builder
}

// Option configures a Crew at construction time.
type Option func(*Crew)

// WithPool attaches an Agent Pool so every task execution is wrapped
// in a reservation against the assigned agent.
func WithPool(p *pool.Pool) Option {
	return func(c *Crew) { c.pool = p }
}

// WithMetricsLog attaches a Metrics & Event Log so every lifecycle
// transition is recorded.
func WithMetricsLog(l *metrics.Log) Option {
	return func(c *Crew) { c.log = l }
}

// WithTracer sets the tracer used to record crew.* spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Crew) { c.tracer = tracer }
}

// New creates a Crew from the given configuration.
func New(cfg Config, opts ...Option) *Crew {
	cfg = cfg.withDefaults()
	c := &Crew{
		config:        cfg,
		crewID:        id.New(),
		members:       make(map[string]*Member),
		membersByRole: make(map[Role][]string),
		tasks:         make(map[string]*Task),
		state:         Assembling,
		tracer:        trace.Noop{},
		consensus:     consensus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the crew's unique identifier.
func (c *Crew) ID() string { return c.crewID }

// State returns the crew's current lifecycle state.
func (c *Crew) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AddMember adds an agent to the crew under the given role. Returns
// ErrMemberAlreadyPresent if the agent is already a member.
func (c *Crew) AddMember(m Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.members[m.AgentID]; exists {
		return fmt.Errorf("%w: %s", ErrMemberAlreadyPresent, m.AgentID)
	}
	c.members[m.AgentID] = &m
	c.membersByRole[m.Role] = append(c.membersByRole[m.Role], m.AgentID)

	c.logEvent("member_joined", map[string]any{"agent_id": m.AgentID, "role": string(m.Role)})

	if c.isReadyLocked() {
		c.state = Ready
		c.logEvent("crew_ready", map[string]any{"member_count": len(c.members)})
	}
	return nil
}

// RemoveMember removes an agent from the crew.
func (c *Crew) RemoveMember(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[agentID]
	if !ok {
		return false
	}
	delete(c.members, agentID)
	ids := c.membersByRole[m.Role]
	for i, mid := range ids {
		if mid == agentID {
			c.membersByRole[m.Role] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	c.logEvent("member_left", map[string]any{"agent_id": agentID, "role": string(m.Role)})

	if c.state == Ready && !c.isReadyLocked() {
		c.state = Assembling
		c.logEvent("crew_not_ready", map[string]any{"member_count": len(c.members)})
	}
	return true
}

func (c *Crew) isReadyLocked() bool {
	for role, required := range c.config.RequiredRoles {
		if len(c.membersByRole[role]) < required {
			return false
		}
	}
	return true
}

// Leader returns the crew's first Leader-role member, if any.
func (c *Crew) Leader() *Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.membersByRole[Leader]
	if len(ids) == 0 {
		return nil
	}
	return c.members[ids[0]]
}

// MembersByRole returns the members currently holding the given role.
func (c *Crew) MembersByRole(role Role) []*Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.membersByRole[role]
	out := make([]*Member, 0, len(ids))
	for _, mid := range ids {
		out = append(out, c.members[mid])
	}
	return out
}

// AssignTask assigns a task to a specific agent, or to the first
// available member of a role when agentID is empty. Returns
// ErrMemberNotPresent if agentID names a non-member.
func (c *Crew) AssignTask(task *Task, agentID string, role Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if agentID != "" {
		if _, ok := c.members[agentID]; !ok {
			return fmt.Errorf("%w: %s", ErrMemberNotPresent, agentID)
		}
	} else if role != "" {
		agentID = c.firstAvailableLocked(c.membersByRole[role])
	}
	if agentID == "" {
		return errors.New("crew: no agent available for assignment")
	}

	task.AssignedTo = agentID
	task.AssignedRole = c.members[agentID].Role
	if _, exists := c.tasks[task.ID]; !exists {
		c.taskOrder = append(c.taskOrder, task.ID)
	}
	c.tasks[task.ID] = task
	c.members[agentID].TasksAssigned++

	c.logEvent("task_assigned", map[string]any{"task_id": task.ID, "agent_id": agentID, "role": string(task.AssignedRole)})
	return nil
}

// firstAvailableLocked returns the first member ID from candidates
// not currently holding an active reservation in the pool. Must be
// called with c.mu held.
func (c *Crew) firstAvailableLocked(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	if c.pool == nil {
		return candidates[0]
	}
	for _, cid := range candidates {
		if entry, ok := c.pool.Lookup(cid); ok && entry.State() == pool.Available {
			return cid
		}
	}
	return candidates[0]
}

func (c *Crew) logEvent(eventType string, payload map[string]any) {
	if c.log == nil {
		return
	}
	c.log.Record(metrics.Event{
		Timestamp: time.Now(),
		Component: c.crewID,
		Type:      eventType,
		Payload:   payload,
	})
}
