package solver

import (
	"context"
	"testing"
)

func TestStateReflectsHistoryAndRoster(t *testing.T) {
	s := New()
	if err := s.RegisterAgent("a1", "general", []string{"go"}, ok("solved", 0.9)); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	simple := Simple
	if _, err := s.Solve(context.Background(), Problem{Title: "fix it", Complexity: &simple}, SolveOptions{}); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	state := s.State()
	if len(state.AgentRoster) != 1 || state.AgentRoster[0].ID != "a1" {
		t.Fatalf("AgentRoster = %+v, want one entry for a1", state.AgentRoster)
	}
	if len(state.Problems) != 1 || len(state.Solutions) != 1 {
		t.Fatalf("Problems/Solutions = %d/%d, want 1/1", len(state.Problems), len(state.Solutions))
	}
	if state.Solutions[0].Confidence != 0.85 {
		t.Fatalf("Solutions[0].Confidence = %v, want 0.85", state.Solutions[0].Confidence)
	}
}
