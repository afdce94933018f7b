// Package pool implements the Agent Pool: a registry of agents
// matched by type or capability, with reservation tokens that give
// callers a single source of truth for which agent is currently
// executing which task.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lonestarx1/orcgrid/internal/id"
)

// ErrAgentBusy is returned by Reserve when the agent is already
// reserved and the caller chose non-blocking policy.
var ErrAgentBusy = errors.New("pool: agent is busy")

// ErrUnknownAgent is returned when an operation names an agent that
// was never registered.
var ErrUnknownAgent = errors.New("pool: agent not registered")

// ErrAlreadyRegistered is returned by Register for a duplicate ID.
var ErrAlreadyRegistered = errors.New("pool: agent already registered")

// ErrInvalidToken is returned by Release for a token that doesn't
// match the agent's current reservation.
var ErrInvalidToken = errors.New("pool: invalid or expired reservation token")

// ErrCircuitOpen is returned by Reserve when the agent's breaker has
// tripped after repeated callback failures.
var ErrCircuitOpen = errors.New("pool: agent circuit breaker is open")

// State is an Entry's availability.
type State string

const (
	Available State = "available"
	Busy      State = "busy"
	Failed    State = "failed"
)

// AgentType classifies an agent's role for matching purposes. It is
// an open string type — callers define their own vocabulary.
type AgentType string

// Descriptor is the static information a pool holds about a
// registered agent.
type Descriptor struct {
	ID              string
	Name            string
	Type            AgentType
	Capabilities    []string
	ExpertiseWeight float64
}

// Entry is a registered agent plus its live pool state.
type Entry struct {
	Agent   Descriptor
	state   State
	token   Token
	breaker *gobreaker.CircuitBreaker

	mu sync.Mutex
}

// State returns the entry's current availability.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RecordSuccess reports that the agent's last callback invocation
// succeeded, closing its breaker if it was half-open.
func (e *Entry) RecordSuccess() {
	_, _ = e.breaker.Execute(func() (any, error) { return nil, nil })
}

// RecordFailure reports that the agent's last callback invocation
// failed, counting toward the breaker's trip threshold.
func (e *Entry) RecordFailure() {
	_, _ = e.breaker.Execute(func() (any, error) { return nil, errors.New("callback failed") })
}

// Token is an opaque reservation handle returned by Reserve and
// consumed by Release.
type Token struct {
	agentID string
	value   string
}

// Pool is a thread-safe registry of agents available for task
// assignment.
type Pool struct {
	mu      sync.RWMutex
	agents  map[string]*Entry
	trip    uint32 // consecutive failures before a breaker opens
	timeout time.Duration
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithTripThreshold sets how many consecutive callback failures open
// an agent's breaker. Default 3.
func WithTripThreshold(n uint32) Option {
	return func(p *Pool) { p.trip = n }
}

// WithCooldown sets how long a tripped breaker stays open before
// allowing a trial request. Default 30s.
func WithCooldown(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

// New creates an empty Pool.
func New(opts ...Option) *Pool {
	p := &Pool{
		agents:  make(map[string]*Entry),
		trip:    3,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds an agent to the pool in the Available state.
func (p *Pool) Register(a Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.agents[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, a.ID)
	}
	name := a.ID
	p.agents[a.ID] = &Entry{
		Agent: a,
		state: Available,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: p.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= p.trip
			},
		}),
	}
	return nil
}

// Lookup returns the entry for agentID, if registered.
func (p *Pool) Lookup(agentID string) (*Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.agents[agentID]
	return e, ok
}

// MatchByType returns up to limit agent IDs of the given type,
// Available ones first. limit <= 0 means unlimited.
func (p *Pool) MatchByType(t AgentType, limit int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.match(limit, func(e *Entry) bool { return e.Agent.Type == t })
}

// MatchByCapability returns up to limit agent IDs advertising cap.
func (p *Pool) MatchByCapability(cap string, limit int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.match(limit, func(e *Entry) bool {
		for _, c := range e.Agent.Capabilities {
			if c == cap {
				return true
			}
		}
		return false
	})
}

// match must be called with p.mu held for reading.
func (p *Pool) match(limit int, pred func(*Entry) bool) []string {
	var available, busy []string
	for id, e := range p.agents {
		if !pred(e) {
			continue
		}
		if e.State() == Available {
			available = append(available, id)
		} else {
			busy = append(busy, id)
		}
	}
	all := append(available, busy...)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// BlockPolicy controls Reserve's behavior when the agent is busy.
type BlockPolicy int

const (
	// NonBlocking returns ErrAgentBusy immediately.
	NonBlocking BlockPolicy = iota
	// Blocking waits (subject to the caller's timeout, enforced by the
	// caller via context) — callers implementing blocking semantics
	// should poll Reserve themselves; this pool never blocks a
	// goroutine internally so a single slow reservation can't wedge
	// every caller sharing the pool.
	Blocking
)

// Reserve reserves agentID for holderID. With NonBlocking policy it
// returns ErrAgentBusy immediately if the agent is already reserved;
// Blocking is a hint for callers that prefer to retry themselves.
func (p *Pool) Reserve(agentID, holderID string, policy BlockPolicy) (Token, error) {
	p.mu.RLock()
	e, ok := p.agents[agentID]
	p.mu.RUnlock()
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	if e.breaker.State() == gobreaker.StateOpen {
		return Token{}, fmt.Errorf("%w: %s", ErrCircuitOpen, agentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Busy {
		return Token{}, fmt.Errorf("%w: %s (held by reservation %s)", ErrAgentBusy, agentID, e.token.value)
	}
	tok := Token{agentID: agentID, value: id.New()}
	e.state = Busy
	e.token = tok
	return tok, nil
}

// Release ends a reservation. It is idempotent: releasing a token
// that no longer matches the entry's current reservation (because it
// was already released) is a no-op, so `defer pool.Release(token)`
// is always safe.
func (p *Pool) Release(tok Token) error {
	p.mu.RLock()
	e, ok := p.agents[tok.agentID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, tok.agentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Busy || e.token.value != tok.value {
		return nil
	}
	e.state = Available
	e.token = Token{}
	return nil
}

// UpdateExpertise is the sole post-registration mutator: a pool entry
// is otherwise read-only once registered.
func (p *Pool) UpdateExpertise(agentID string, weight float64) error {
	p.mu.RLock()
	e, ok := p.agents[agentID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	e.mu.Lock()
	e.Agent.ExpertiseWeight = weight
	e.mu.Unlock()
	return nil
}

// Len returns the number of registered agents.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}
