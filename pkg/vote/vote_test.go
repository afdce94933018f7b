package vote

import "testing"

func TestTallyMajority(t *testing.T) {
	tests := []struct {
		name      string
		votes     []Vote
		wantKind  Kind
		wantWin   string
		wantHas   bool
	}{
		{
			name: "clear majority",
			votes: []Vote{
				{VoterID: "a1", Choice: "x", Confidence: 0.9},
				{VoterID: "a2", Choice: "x", Confidence: 0.8},
				{VoterID: "a3", Choice: "y", Confidence: 0.7},
			},
			wantKind: Decided,
			wantWin:  "x",
			wantHas:  true,
		},
		{
			name: "no majority (tie)",
			votes: []Vote{
				{VoterID: "a1", Choice: "x"},
				{VoterID: "a2", Choice: "y"},
			},
			wantKind: Decided,
			wantHas:  false,
		},
		{
			name:     "empty ballot",
			votes:    nil,
			wantKind: EmptyBallot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Tally(tt.votes, Config{Strategy: Majority})
			if r.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", r.Kind, tt.wantKind)
			}
			if r.HasWinner != tt.wantHas {
				t.Fatalf("HasWinner = %v, want %v", r.HasWinner, tt.wantHas)
			}
			if tt.wantHas && r.Winner != tt.wantWin {
				t.Fatalf("Winner = %q, want %q", r.Winner, tt.wantWin)
			}
		})
	}
}

func TestTallyPluralityAllowsMinority(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Choice: "x"},
		{VoterID: "a2", Choice: "y"},
		{VoterID: "a3", Choice: "z"},
	}
	r := Tally(votes, Config{Strategy: Plurality})
	if !r.HasWinner {
		t.Fatal("plurality should always produce a winner when ballots exist")
	}
	if r.WinningShare >= 0.5 {
		t.Fatalf("expected a minority winner, got share %v", r.WinningShare)
	}
}

func TestTallyUnanimity(t *testing.T) {
	agree := []Vote{
		{VoterID: "a1", Choice: "x", Confidence: 1},
		{VoterID: "a2", Choice: "x", Confidence: 0.5},
	}
	r := Tally(agree, Config{Strategy: Unanimity})
	if !r.Unanimous || !r.HasWinner {
		t.Fatalf("expected unanimous winner, got %+v", r)
	}
	if r.Confidence != 0.75 {
		t.Fatalf("Confidence = %v, want 0.75", r.Confidence)
	}

	split := []Vote{
		{VoterID: "a1", Choice: "x"},
		{VoterID: "a2", Choice: "y"},
	}
	r2 := Tally(split, Config{Strategy: Unanimity})
	if r2.HasWinner {
		t.Fatal("split vote should have no winner under unanimity")
	}
}

func TestTallyWeighted(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Choice: "x", Weight: 3, Confidence: 0.9},
		{VoterID: "a2", Choice: "y", Weight: 1, Confidence: 0.9},
	}
	r := Tally(votes, Config{Strategy: Weighted})
	if r.Winner != "x" {
		t.Fatalf("Winner = %q, want x", r.Winner)
	}
	if r.WinningShare != 0.75 {
		t.Fatalf("WinningShare = %v, want 0.75", r.WinningShare)
	}
}

func TestTallyWeightedThreshold(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Choice: "x", Weight: 3},
		{VoterID: "a2", Choice: "x", Weight: 1},
		{VoterID: "a3", Choice: "y", Weight: 5},
	}
	r := Tally(votes, Config{Strategy: Weighted, Threshold: 0.6})
	if r.Winner != "y" {
		t.Fatalf("Winner = %q, want y", r.Winner)
	}
	if r.Consensus {
		t.Fatalf("Consensus = true, want false (share %.3f < threshold 0.6)", r.WinningShare)
	}
}

func TestTallyThresholdAndSupermajority(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Choice: "x"},
		{VoterID: "a2", Choice: "x"},
		{VoterID: "a3", Choice: "y"},
	}
	r := Tally(votes, Config{Strategy: Threshold, Threshold: 0.6})
	if !r.HasWinner {
		t.Fatal("2/3 should clear a 0.6 threshold")
	}

	r2 := Tally(votes, Config{Strategy: Supermajority})
	if !r2.HasWinner {
		t.Fatalf("2/3 share should satisfy supermajority, got %+v", r2)
	}

	votes3 := []Vote{
		{VoterID: "a1", Choice: "x"},
		{VoterID: "a2", Choice: "y"},
		{VoterID: "a3", Choice: "y"},
	}
	r3 := Tally(votes3, Config{Strategy: Threshold, Threshold: 0.75})
	if r3.HasWinner {
		t.Fatal("2/3 share should not clear a 0.75 threshold")
	}
}

func TestTallyQuorumAndMinVotes(t *testing.T) {
	votes := []Vote{{VoterID: "a1", Choice: "x"}}

	r := Tally(votes, Config{Strategy: Majority, MinVotes: 2})
	if r.Kind != InsufficientVotes {
		t.Fatalf("Kind = %v, want InsufficientVotes", r.Kind)
	}

	r2 := Tally(votes, Config{Strategy: Majority, RequireQuorum: true, QuorumShare: 0.5, TotalAgents: 4})
	if r2.Kind != QuorumNotMet {
		t.Fatalf("Kind = %v, want QuorumNotMet", r2.Kind)
	}
}

func TestTallyUnsupportedStrategy(t *testing.T) {
	votes := []Vote{{VoterID: "a1", Choice: "x"}}
	r := Tally(votes, Config{Strategy: "bogus"})
	if r.Kind != UnsupportedStrategy {
		t.Fatalf("Kind = %v, want UnsupportedStrategy", r.Kind)
	}
}

func TestTallyRankedChoiceEliminatesLowest(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Rankings: []string{"x", "y", "z"}},
		{VoterID: "a2", Rankings: []string{"x", "z", "y"}},
		{VoterID: "a3", Rankings: []string{"y", "x", "z"}},
		{VoterID: "a4", Rankings: []string{"z", "y", "x"}},
		{VoterID: "a5", Rankings: []string{"y", "z", "x"}},
	}
	r := Tally(votes, Config{Strategy: RankedChoice})
	if !r.HasWinner {
		t.Fatalf("expected eventual winner, got %+v", r)
	}
	if r.Rounds < 2 {
		t.Fatalf("expected multiple elimination rounds, got %d", r.Rounds)
	}
}

func TestTallyRankedChoiceFirstRoundMajority(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Rankings: []string{"x", "y"}},
		{VoterID: "a2", Rankings: []string{"x", "y"}},
		{VoterID: "a3", Rankings: []string{"y", "x"}},
	}
	r := Tally(votes, Config{Strategy: RankedChoice})
	if r.Winner != "x" || r.Rounds != 1 {
		t.Fatalf("expected first-round majority for x, got %+v", r)
	}
}

func TestTallyApproval(t *testing.T) {
	votes := []Vote{
		{VoterID: "a1", Approved: []string{"x", "y"}},
		{VoterID: "a2", Approved: []string{"x"}},
		{VoterID: "a3", Approved: []string{"y"}},
	}
	r := Tally(votes, Config{Strategy: Approval})
	if r.Winner != "x" && r.Winner != "y" {
		t.Fatalf("expected x or y tied at 2 approvals each, got %q", r.Winner)
	}
}
