package pool

import (
	"errors"
	"testing"
)

func TestRegisterRejectsDuplicate(t *testing.T) {
	p := New()
	if err := p.Register(Descriptor{ID: "a1", Type: "researcher"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(Descriptor{ID: "a1", Type: "researcher"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	p := New()
	_ = p.Register(Descriptor{ID: "a1", Type: "researcher"})

	tok, err := p.Reserve("a1", "task-1", NonBlocking)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	entry, _ := p.Lookup("a1")
	if entry.State() != Busy {
		t.Fatalf("State = %v, want Busy", entry.State())
	}

	if _, err := p.Reserve("a1", "task-2", NonBlocking); !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}

	if err := p.Release(tok); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if entry.State() != Available {
		t.Fatalf("State = %v, want Available", entry.State())
	}

	// Releasing an already-released token is a no-op, not an error.
	if err := p.Release(tok); err != nil {
		t.Fatalf("Release (idempotent): %v", err)
	}
}

func TestMatchByTypeAndCapability(t *testing.T) {
	p := New()
	_ = p.Register(Descriptor{ID: "a1", Type: "researcher", Capabilities: []string{"search"}})
	_ = p.Register(Descriptor{ID: "a2", Type: "writer", Capabilities: []string{"draft", "search"}})

	researchers := p.MatchByType("researcher", 0)
	if len(researchers) != 1 || researchers[0] != "a1" {
		t.Fatalf("MatchByType = %v, want [a1]", researchers)
	}

	searchers := p.MatchByCapability("search", 0)
	if len(searchers) != 2 {
		t.Fatalf("MatchByCapability = %v, want 2 results", searchers)
	}
}

func TestReserveUnknownAgent(t *testing.T) {
	p := New()
	if _, err := p.Reserve("ghost", "task-1", NonBlocking); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := New(WithTripThreshold(2))
	_ = p.Register(Descriptor{ID: "a1", Type: "researcher"})
	entry, _ := p.Lookup("a1")

	for i := 0; i < 2; i++ {
		tok, err := p.Reserve("a1", "task", NonBlocking)
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		entry.RecordFailure()
		_ = p.Release(tok)
	}

	if _, err := p.Reserve("a1", "task", NonBlocking); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestUpdateExpertise(t *testing.T) {
	p := New()
	_ = p.Register(Descriptor{ID: "a1", ExpertiseWeight: 0.5})
	if err := p.UpdateExpertise("a1", 0.9); err != nil {
		t.Fatalf("UpdateExpertise: %v", err)
	}
	entry, _ := p.Lookup("a1")
	if entry.Agent.ExpertiseWeight != 0.9 {
		t.Fatalf("ExpertiseWeight = %v, want 0.9", entry.Agent.ExpertiseWeight)
	}
}
