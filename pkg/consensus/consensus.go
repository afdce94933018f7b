// Package consensus manages proposal lifecycles and implements the
// iterative-refinement consensus-building loop that the agent swarms
// and crews vote over.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// ErrDuplicateVote is returned when a voter casts a second ballot in
// the same session.
var ErrDuplicateVote = errors.New("consensus: voter already cast a ballot in this session")

// ErrSessionClosed is returned when a vote is cast after a session has
// already been tallied.
var ErrSessionClosed = errors.New("consensus: session is closed")

// ErrVoterIneligible is returned when CloseSession is asked to tally a
// session that was never opened.
var ErrVoterIneligible = errors.New("consensus: session not found")

// ProposalStatus tracks where a Proposal sits in its lifecycle.
type ProposalStatus string

const (
	Draft    ProposalStatus = "draft"
	Voting   ProposalStatus = "voting"
	Accepted ProposalStatus = "accepted"
	Rejected ProposalStatus = "rejected"
)

// Proposal is a decision point put to one or more voting Sessions.
type Proposal struct {
	ID          string
	ProposerID  string
	Title       string
	Description string
	Options     []string
	Status      ProposalStatus
	Sessions    []*Session
}

// Session is one round of voting over a Proposal.
type Session struct {
	ID         string
	ProposalID string
	Strategy   vote.Strategy
	votes      map[string]vote.Vote
	order      []string
	Result     *vote.Result

	mu sync.Mutex
}

// Record appends a ballot to the session. It rejects a second ballot
// from the same voter and any ballot cast after the session closed.
func (s *Session) Record(v vote.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Result != nil {
		return ErrSessionClosed
	}
	if _, exists := s.votes[v.VoterID]; exists {
		return ErrDuplicateVote
	}
	s.votes[v.VoterID] = v
	s.order = append(s.order, v.VoterID)
	return nil
}

// Ballots returns a snapshot of the votes cast so far, in cast order.
func (s *Session) Ballots() []vote.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]vote.Vote, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.votes[id])
	}
	return out
}

// Builder owns a set of proposals and the sessions opened against them.
type Builder struct {
	mu        sync.Mutex
	proposals map[string]*Proposal
	sessions  map[string]*Session
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{
		proposals: make(map[string]*Proposal),
		sessions:  make(map[string]*Session),
	}
}

// NewProposal creates and stores a Draft proposal.
func (b *Builder) NewProposal(proposerID, title, description string, options []string) *Proposal {
	p := &Proposal{
		ID:          uuid.NewString(),
		ProposerID:  proposerID,
		Title:       title,
		Description: description,
		Options:     options,
		Status:      Draft,
	}
	b.mu.Lock()
	b.proposals[p.ID] = p
	b.mu.Unlock()
	return p
}

// StartVoting opens a new Session against the proposal and moves it
// to the Voting state.
func (b *Builder) StartVoting(proposalID string, strategy vote.Strategy) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("consensus: proposal %q not found", proposalID)
	}
	s := &Session{
		ID:         uuid.NewString(),
		ProposalID: proposalID,
		Strategy:   strategy,
		votes:      make(map[string]vote.Vote),
	}
	p.Sessions = append(p.Sessions, s)
	p.Status = Voting
	b.sessions[s.ID] = s
	return s, nil
}

// CloseSession tallies the session's ballots, freezes the result, and
// transitions the owning proposal to Accepted or Rejected.
func (b *Builder) CloseSession(sessionID string, cfg vote.Config, totalAgents int) (*vote.Result, error) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil, ErrVoterIneligible
	}

	s.mu.Lock()
	if s.Result != nil {
		r := *s.Result
		s.mu.Unlock()
		return &r, nil
	}
	cfg.TotalAgents = totalAgents
	result := vote.Tally(s.Ballots(), cfg)
	s.Result = &result
	s.mu.Unlock()

	b.mu.Lock()
	p := b.proposals[s.ProposalID]
	b.mu.Unlock()
	if p != nil {
		if result.Consensus && result.HasWinner {
			p.Status = Accepted
		} else {
			p.Status = Rejected
		}
	}

	frozen := result
	return &frozen, nil
}

// OpenSession summarizes one session that has not yet been tallied —
// the shape a caller needs to persist open work without resuming it.
type OpenSession struct {
	ProposalID  string
	SessionID   string
	Strategy    vote.Strategy
	BallotCount int
}

// OpenSessions returns a summary of every session that has not yet
// been closed via CloseSession.
func (b *Builder) OpenSessions() []OpenSession {
	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	var open []OpenSession
	for _, s := range sessions {
		s.mu.Lock()
		if s.Result == nil {
			open = append(open, OpenSession{
				ProposalID:  s.ProposalID,
				SessionID:   s.ID,
				Strategy:    s.Strategy,
				BallotCount: len(s.order),
			})
		}
		s.mu.Unlock()
	}
	return open
}

// RefineConfig parameterizes an iterative-refinement Refine call.
type RefineConfig struct {
	Strategy             vote.Strategy
	MaxRounds            int
	ConsensusThreshold   float64
	ImprovementThreshold float64
	TotalAgents          int
}

// NextRoundFunc produces the ballots for the next refinement round,
// given the previous round's result (nil on the first round).
type NextRoundFunc func(ctx context.Context, prev *vote.Result) ([]vote.Vote, error)

// Refine runs the iterative-refinement consensus loop: it opens a new
// voting session against proposalID each round, asks nextRound for
// that round's ballots, tallies them, and stops when the winning
// share clears cfg.ConsensusThreshold, when round-over-round
// improvement falls below cfg.ImprovementThreshold (stagnation), or
// when cfg.MaxRounds is reached.
func (b *Builder) Refine(ctx context.Context, proposalID string, cfg RefineConfig, nextRound NextRoundFunc) (*vote.Result, error) {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 3
	}
	threshold := cfg.ConsensusThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	improvement := cfg.ImprovementThreshold
	if improvement <= 0 {
		improvement = 0.05
	}

	var prev *vote.Result
	var best *vote.Result
	voteCfg := vote.Config{Strategy: cfg.Strategy, RequireQuorum: cfg.TotalAgents > 0}

	for round := 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			if best != nil {
				return best, nil
			}
			return nil, err
		}

		session, err := b.StartVoting(proposalID, cfg.Strategy)
		if err != nil {
			return nil, err
		}
		ballots, err := nextRound(ctx, prev)
		if err != nil {
			return nil, fmt.Errorf("consensus: round %d: %w", round+1, err)
		}
		for _, v := range ballots {
			if err := session.Record(v); err != nil {
				return nil, fmt.Errorf("consensus: round %d: %w", round+1, err)
			}
		}

		result, err := b.CloseSession(session.ID, voteCfg, cfg.TotalAgents)
		if err != nil {
			return nil, err
		}
		result.Rounds = round + 1
		best = result

		if result.WinningShare >= threshold {
			return result, nil
		}
		if prev != nil && result.WinningShare-prev.WinningShare < improvement {
			return result, nil
		}
		prev = result
	}

	return best, nil
}
