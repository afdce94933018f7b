// Package vote tallies ballots cast by agents under one of several
// democratic voting strategies. Tally never returns an error — every
// failure mode (no ballots, insufficient participation, an unknown
// strategy) surfaces as a Kind on the returned Result.
package vote

import (
	"fmt"
	"sort"
)

// Strategy selects how Tally counts ballots.
type Strategy string

const (
	Majority       Strategy = "majority"
	Plurality      Strategy = "plurality"
	Unanimity      Strategy = "unanimity"
	Weighted       Strategy = "weighted"
	Threshold      Strategy = "threshold"
	Supermajority  Strategy = "supermajority"
	RankedChoice   Strategy = "ranked_choice"
	Approval       Strategy = "approval"
)

// Vote is a single agent's ballot. Choice is used by Majority,
// Plurality, Unanimity, Weighted, and Threshold. Rankings is used by
// RankedChoice (ordered most to least preferred). Approved is used by
// Approval (the set of options this voter accepts).
type Vote struct {
	VoterID   string
	Choice    string
	Rankings  []string
	Approved  []string
	Weight    float64
	Confidence float64
	Reasoning string
}

// Kind classifies how a Tally concluded.
type Kind string

const (
	Decided              Kind = "decided"
	EmptyBallot          Kind = "empty_ballot"
	QuorumNotMet         Kind = "quorum_not_met"
	InsufficientVotes    Kind = "insufficient_votes"
	UnsupportedStrategy  Kind = "unsupported_strategy"
)

// Result is the outcome of a Tally call.
type Result struct {
	Strategy     Strategy
	Kind         Kind
	Winner       string
	HasWinner    bool
	Counts       map[string]float64
	TotalVotes   int
	WinningShare float64
	Confidence   float64
	Unanimous    bool
	Consensus    bool
	Rounds       int
	Eliminated   []string
	Note         string
}

// Config parameterizes a Tally call.
type Config struct {
	Strategy      Strategy
	Threshold     float64 // used by Threshold and Weighted strategies, default 0.5
	MinVotes      int     // default 1
	RequireQuorum bool
	QuorumShare   float64 // default 0.5
	TotalAgents   int     // required when RequireQuorum is set
}

// Tally counts votes according to cfg.Strategy and returns a Result.
// It never returns an error; unusable input produces a Result whose
// Kind explains why no winner was chosen.
func Tally(votes []Vote, cfg Config) Result {
	if len(votes) == 0 {
		return Result{Strategy: cfg.Strategy, Kind: EmptyBallot, Note: "no votes cast"}
	}
	minVotes := cfg.MinVotes
	if minVotes <= 0 {
		minVotes = 1
	}
	if len(votes) < minVotes {
		return Result{
			Strategy:   cfg.Strategy,
			Kind:       InsufficientVotes,
			TotalVotes: len(votes),
			Note:       fmt.Sprintf("insufficient votes: %d < %d", len(votes), minVotes),
		}
	}
	if cfg.RequireQuorum && cfg.TotalAgents > 0 {
		quorum := cfg.QuorumShare
		if quorum <= 0 {
			quorum = 0.5
		}
		participation := float64(len(votes)) / float64(cfg.TotalAgents)
		if participation < quorum {
			return Result{
				Strategy:   cfg.Strategy,
				Kind:       QuorumNotMet,
				TotalVotes: len(votes),
				Note:       fmt.Sprintf("quorum not met: %.1f%% < %.1f%%", participation*100, quorum*100),
			}
		}
	}

	switch cfg.Strategy {
	case Majority:
		return majorityVote(votes)
	case Plurality:
		return pluralityVote(votes)
	case Unanimity:
		return unanimityVote(votes)
	case Weighted:
		return weightedVote(votes, cfg.Threshold)
	case Threshold:
		return thresholdVote(votes, cfg.Threshold)
	case Supermajority:
		return thresholdVote(votes, 2.0/3.0)
	case RankedChoice:
		return rankedChoiceVote(votes)
	case Approval:
		return approvalVote(votes)
	default:
		return Result{
			Strategy:   cfg.Strategy,
			Kind:       UnsupportedStrategy,
			TotalVotes: len(votes),
			Note:       fmt.Sprintf("unsupported strategy: %q", cfg.Strategy),
		}
	}
}

func counts(votes []Vote) (map[string]int, []string) {
	c := make(map[string]int)
	order := make([]string, 0, len(votes))
	for _, v := range votes {
		if _, seen := c[v.Choice]; !seen {
			order = append(order, v.Choice)
		}
		c[v.Choice]++
	}
	return c, order
}

func mostCommon(c map[string]int, order []string) (string, int) {
	winner := order[0]
	best := c[order[0]]
	for _, k := range order[1:] {
		if c[k] > best {
			winner, best = k, c[k]
		}
	}
	return winner, best
}

func avgConfidence(votes []Vote, choice string) float64 {
	var sum float64
	var n int
	for _, v := range votes {
		if v.Choice == choice {
			sum += v.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func toFloatCounts(c map[string]int) map[string]float64 {
	out := make(map[string]float64, len(c))
	for k, v := range c {
		out[k] = float64(v)
	}
	return out
}

func majorityVote(votes []Vote) Result {
	c, order := counts(votes)
	winner, count := mostCommon(c, order)
	total := len(votes)
	share := float64(count) / float64(total)
	r := Result{
		Strategy:     Majority,
		Kind:         Decided,
		Counts:       toFloatCounts(c),
		TotalVotes:   total,
		WinningShare: share,
		Confidence:   avgConfidence(votes, winner),
		Unanimous:    len(c) == 1,
		Consensus:    share > 0.5,
	}
	if share > 0.5 {
		r.Winner, r.HasWinner = winner, true
	}
	return r
}

func pluralityVote(votes []Vote) Result {
	c, order := counts(votes)
	winner, count := mostCommon(c, order)
	total := len(votes)
	share := float64(count) / float64(total)
	return Result{
		Strategy:     Plurality,
		Kind:         Decided,
		Winner:       winner,
		HasWinner:    true,
		Counts:       toFloatCounts(c),
		TotalVotes:   total,
		WinningShare: share,
		Confidence:   avgConfidence(votes, winner),
		Unanimous:    len(c) == 1,
		Consensus:    share > 0.5,
	}
}

func unanimityVote(votes []Vote) Result {
	c, _ := counts(votes)
	total := len(votes)
	unanimous := len(c) == 1
	r := Result{
		Strategy:     Unanimity,
		Kind:         Decided,
		Counts:       toFloatCounts(c),
		TotalVotes:   total,
		Unanimous:    unanimous,
		Consensus:    unanimous,
		WinningShare: 0,
	}
	if unanimous {
		for choice := range c {
			r.Winner, r.HasWinner = choice, true
		}
		r.WinningShare = 1.0
		var sum float64
		for _, v := range votes {
			sum += v.Confidence
		}
		r.Confidence = sum / float64(total)
	}
	return r
}

func weightedVote(votes []Vote, threshold float64) Result {
	if threshold <= 0 {
		threshold = 0.5
	}
	weighted := make(map[string]float64)
	order := make([]string, 0, len(votes))
	var totalWeight float64
	for _, v := range votes {
		if _, seen := weighted[v.Choice]; !seen {
			order = append(order, v.Choice)
		}
		weighted[v.Choice] += v.Weight
		totalWeight += v.Weight
	}
	winner := order[0]
	for _, k := range order[1:] {
		if weighted[k] > weighted[winner] {
			winner = k
		}
	}
	share := 0.0
	if totalWeight > 0 {
		share = weighted[winner] / totalWeight
	}
	var wConf, wWeight float64
	for _, v := range votes {
		if v.Choice == winner {
			wConf += v.Confidence * v.Weight
			wWeight += v.Weight
		}
	}
	conf := 0.0
	if wWeight > 0 {
		conf = wConf / wWeight
	}
	return Result{
		Strategy:     Weighted,
		Kind:         Decided,
		Winner:       winner,
		HasWinner:    true,
		Counts:       weighted,
		TotalVotes:   len(votes),
		WinningShare: share,
		Confidence:   conf,
		Unanimous:    len(weighted) == 1,
		Consensus:    share > threshold,
	}
}

func thresholdVote(votes []Vote, threshold float64) Result {
	if threshold <= 0 {
		threshold = 0.5
	}
	c, order := counts(votes)
	candidate, count := mostCommon(c, order)
	total := len(votes)
	share := float64(count) / float64(total)
	met := share >= threshold
	r := Result{
		Strategy:     Threshold,
		Kind:         Decided,
		Counts:       toFloatCounts(c),
		TotalVotes:   total,
		WinningShare: share,
		Unanimous:    len(c) == 1,
		Consensus:    met,
	}
	if met {
		r.Winner, r.HasWinner = candidate, true
		r.Confidence = avgConfidence(votes, candidate)
	}
	return r
}

func rankedChoiceVote(votes []Vote) Result {
	eliminated := make(map[string]bool)
	round := 0
	current := make([]string, 0, len(votes))
	for _, v := range votes {
		if len(v.Rankings) > 0 {
			current = append(current, v.Rankings[0])
		}
	}

	for {
		round++
		c, order := counts(voteChoices(current))
		if len(c) == 0 {
			return Result{
				Strategy:   RankedChoice,
				Kind:       Decided,
				TotalVotes: len(votes),
				Rounds:     round,
				Note:       "no valid votes in final round",
			}
		}

		winnerCandidate, count := mostCommon(c, order)
		total := len(current)

		if float64(count) > float64(total)/2 {
			return Result{
				Strategy:     RankedChoice,
				Kind:         Decided,
				Winner:       winnerCandidate,
				HasWinner:    true,
				Counts:       toFloatCounts(c),
				TotalVotes:   len(votes),
				WinningShare: float64(count) / float64(total),
				Confidence:   1.0,
				Unanimous:    len(c) == 1,
				Consensus:    true,
				Rounds:       round,
				Eliminated:   eliminatedList(eliminated),
			}
		}

		if len(c) == 1 {
			return Result{
				Strategy:     RankedChoice,
				Kind:         Decided,
				Winner:       winnerCandidate,
				HasWinner:    true,
				Counts:       toFloatCounts(c),
				TotalVotes:   len(votes),
				WinningShare: 1.0,
				Confidence:   0.8,
				Consensus:    true,
				Rounds:       round,
				Eliminated:   eliminatedList(eliminated),
			}
		}

		lowest := order[0]
		for _, k := range order {
			if c[k] < c[lowest] {
				lowest = k
			}
		}
		eliminated[lowest] = true

		var next []string
		for _, v := range votes {
			for _, choice := range v.Rankings {
				if !eliminated[choice] {
					next = append(next, choice)
					break
				}
			}
		}
		if len(next) == 0 {
			return Result{
				Strategy:     RankedChoice,
				Kind:         Decided,
				Winner:       winnerCandidate,
				HasWinner:    true,
				Counts:       toFloatCounts(c),
				TotalVotes:   len(votes),
				WinningShare: float64(count) / float64(total),
				Confidence:   0.6,
				Consensus:    false,
				Rounds:       round,
				Eliminated:   eliminatedList(eliminated),
				Note:         "no clear winner by majority",
			}
		}
		current = next
	}
}

func voteChoices(choices []string) []Vote {
	out := make([]Vote, len(choices))
	for i, c := range choices {
		out[i] = Vote{Choice: c}
	}
	return out
}

func eliminatedList(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func approvalVote(votes []Vote) Result {
	approvals := make(map[string]int)
	order := make([]string, 0)
	total := 0
	for _, v := range votes {
		for _, choice := range v.Approved {
			if _, seen := approvals[choice]; !seen {
				order = append(order, choice)
			}
			approvals[choice]++
			total++
		}
	}
	if len(approvals) == 0 {
		return Result{Strategy: Approval, Kind: EmptyBallot, TotalVotes: len(votes), Note: "no approvals given"}
	}
	winner, count := mostCommon(approvals, order)
	share := float64(count) / float64(len(votes))
	return Result{
		Strategy:     Approval,
		Kind:         Decided,
		Winner:       winner,
		HasWinner:    true,
		Counts:       toFloatCounts(approvals),
		TotalVotes:   len(votes),
		WinningShare: share,
		Confidence:   share,
		Unanimous:    len(approvals) == 1,
		Consensus:    share > 0.5,
	}
}
