package runrecord

import (
	"testing"

	"github.com/lonestarx1/orcgrid/pkg/solver"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	state := &solver.SolverState{
		Problems: []solver.Problem{
			{ID: "p1", Title: "ship it", Type: solver.Development},
		},
		Solutions: []solver.Solution{
			{ProblemID: "p1", Approach: solver.SingleAgent, Confidence: 0.85},
		},
		ConsensusSessions: []solver.ConsensusSessionState{
			{ProposalID: "prop1", SessionID: "sess1", Strategy: vote.Weighted, BallotCount: 2},
		},
		AgentRoster: []solver.AgentRosterEntry{
			{ID: "a1", Type: "general", Capabilities: []string{"go"}},
		},
	}

	data, err := Snapshot(state)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := Restore(data)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if len(restored.Problems) != 1 || restored.Problems[0].ID != "p1" {
		t.Fatalf("Problems = %+v, want one problem p1", restored.Problems)
	}
	if len(restored.Solutions) != 1 || restored.Solutions[0].Confidence != 0.85 {
		t.Fatalf("Solutions = %+v, want one solution at confidence 0.85", restored.Solutions)
	}
	if len(restored.ConsensusSessions) != 1 || restored.ConsensusSessions[0].BallotCount != 2 {
		t.Fatalf("ConsensusSessions = %+v, want one session with 2 ballots", restored.ConsensusSessions)
	}
	if len(restored.AgentRoster) != 1 || restored.AgentRoster[0].ID != "a1" {
		t.Fatalf("AgentRoster = %+v, want one entry a1", restored.AgentRoster)
	}
}

func TestRestoreRejectsInvalidYAML(t *testing.T) {
	if _, err := Restore([]byte("{{{not yaml")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
