package solver

import "github.com/lonestarx1/orcgrid/pkg/vote"

// SolverState is a serializable snapshot of a Solver's static
// bookkeeping: problems solved so far, their solutions, open
// (unresolved) consensus sessions, and the registered agent roster.
// Active in-flight work — a Solve call in progress, or a swarm/crew
// instance mid-run — is never captured; Solve creates those fresh per
// call and discards them, so there is nothing live to resume.
type SolverState struct {
	Problems          []Problem
	Solutions         []Solution
	ConsensusSessions []ConsensusSessionState
	AgentRoster       []AgentRosterEntry
}

// ConsensusSessionState summarizes one not-yet-tallied consensus
// session, enough to report that refinement was interrupted without
// attempting to replay it.
type ConsensusSessionState struct {
	ProposalID  string
	SessionID   string
	Strategy    vote.Strategy
	BallotCount int
}

// AgentRosterEntry is one agent registered with the solver, without
// its Executor (which cannot be serialized).
type AgentRosterEntry struct {
	ID           string
	Type         AgentType
	Capabilities []string
}

// State builds a point-in-time SolverState snapshot.
func (s *Solver) State() *SolverState {
	s.mu.Lock()
	roster := make([]AgentRosterEntry, len(s.agents))
	for i, ra := range s.agents {
		roster[i] = AgentRosterEntry{ID: ra.id, Type: ra.typ, Capabilities: append([]string(nil), ra.caps...)}
	}
	problems := append([]Problem(nil), s.problems...)
	solutions := append([]Solution(nil), s.solutions...)
	s.mu.Unlock()

	var sessions []ConsensusSessionState
	for _, os := range s.builder.OpenSessions() {
		sessions = append(sessions, ConsensusSessionState{
			ProposalID:  os.ProposalID,
			SessionID:   os.SessionID,
			Strategy:    os.Strategy,
			BallotCount: os.BallotCount,
		})
	}

	return &SolverState{
		Problems:          problems,
		Solutions:         solutions,
		ConsensusSessions: sessions,
		AgentRoster:       roster,
	}
}
