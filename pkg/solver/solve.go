package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonestarx1/orcgrid/internal/id"
	"github.com/lonestarx1/orcgrid/internal/orcerr"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/consensus"
	"github.com/lonestarx1/orcgrid/pkg/crew"
	"github.com/lonestarx1/orcgrid/pkg/swarm"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

// approachResult is the common internal shape every per-approach
// solve method returns; Solve maps it onto the public Solution.
type approachResult struct {
	payload           any
	confidence        float64
	quality           float64
	voteResult        *vote.Result
	consensusAchieved bool
	agentsUsed        []string
	swarmsUsed        int
	crewsUsed         int
	iterations        int
}

// Solve runs the full classify -> select approach -> decompose ->
// execute -> (optional consensus) -> aggregate pipeline for problem.
func (s *Solver) Solve(ctx context.Context, problem Problem, opts SolveOptions) (*Solution, error) {
	opts = opts.withDefaults()
	if problem.ID == "" {
		problem.ID = id.New()
	}
	if s.Len() == 0 {
		return nil, ErrNoAgentsRegistered
	}

	start := time.Now()

	ctx, span := s.tracer.StartSpan(ctx, "solver.solve")
	span.SetAttribute("solver.problem_id", problem.ID)
	defer s.tracer.EndSpan(span)

	complexity := problem.Complexity
	if complexity == nil {
		c := classify(problem)
		complexity = &c
	}
	approach := selectApproach(*complexity, problem.Type)
	span.SetAttribute("solver.complexity", string(*complexity))
	span.SetAttribute("solver.approach", string(approach))

	subproblems := decompose(problem)

	var result approachResult
	var err error
	switch approach {
	case SingleAgent:
		result, err = s.solveSingleAgent(ctx, problem)
	case SwarmApproach:
		result, err = s.solveSwarm(ctx, problem.ID, problem.Description, problem.RequiredAgentTypes, 5, opts.VotingStrategy)
	case CrewApproach:
		result, err = s.solveCrew(ctx, problem.RequiredAgentTypes, subproblems)
	case MultiSwarm:
		result, err = s.solveMultiSwarm(ctx, subproblems, opts.VotingStrategy)
	default: // Hybrid, and HighlyComplex's forced Hybrid
		result, err = s.solveHybrid(ctx, subproblems, opts.VotingStrategy)
	}
	if err != nil {
		span.SetError(err)
		if ce := orcerr.FromContext(err); errors.Is(ce, orcerr.ErrCancelled) || errors.Is(ce, orcerr.ErrDeadlineExceeded) {
			return &Solution{
				ProblemID: problem.ID,
				Approach:  approach,
				Partial:   true,
				Err:       ce.Error(),
				Duration:  time.Since(start),
			}, ce
		}
		return nil, fmt.Errorf("solver: %s approach: %w", approach, err)
	}

	if opts.UseConsensus && !result.consensusAchieved {
		if refined, rerr := s.refineConsensus(ctx, problem, result, opts); rerr == nil {
			result = refined
		}
	}

	duration := time.Since(start)
	if s.log != nil {
		s.log.RecordSolved(result.confidence, result.consensusAchieved)
	}
	span.SetAttribute("solver.confidence", fmt.Sprintf("%.4f", result.confidence))

	solution := Solution{
		ProblemID:         problem.ID,
		Approach:          approach,
		Result:            result.payload,
		Confidence:        result.confidence,
		QualityScore:      result.quality,
		VoteResult:        result.voteResult,
		ConsensusAchieved: result.consensusAchieved,
		AgentsUsed:        result.agentsUsed,
		SwarmsUsed:        result.swarmsUsed,
		CrewsUsed:         result.crewsUsed,
		Duration:          duration,
		Iterations:        result.iterations,
	}
	s.recordHistory(problem, solution)
	return &solution, nil
}

// classify scores a problem's complexity from its stated requirements
// and description length.
func classify(p Problem) Complexity {
	score := len(p.RequiredCapabilities) + 2*len(p.RequiredAgentTypes) + len(p.Description)/200
	switch {
	case score <= 2:
		return Simple
	case score <= 5:
		return Moderate
	case score <= 10:
		return Complex
	default:
		return HighlyComplex
	}
}

// selectApproach maps a complexity/type pair onto a solution
// approach.
func selectApproach(c Complexity, t ProblemType) Approach {
	switch c {
	case Simple:
		return SingleAgent
	case Moderate:
		if t == Creative || t == Analysis {
			return SwarmApproach
		}
		return CrewApproach
	case Complex:
		if t == Development || t == Design {
			return Hybrid
		}
		return MultiSwarm
	default: // HighlyComplex
		return Hybrid
	}
}

// decompose splits a problem into one SubProblem per required agent
// type, or the fixed analysis/implementation/testing phases when no
// types are named.
func decompose(p Problem) []SubProblem {
	if len(p.RequiredAgentTypes) > 0 {
		subs := make([]SubProblem, len(p.RequiredAgentTypes))
		for i, t := range p.RequiredAgentTypes {
			subs[i] = SubProblem{
				ID:                 fmt.Sprintf("%s-%d", p.ID, i+1),
				ParentID:           p.ID,
				Title:              fmt.Sprintf("%s — %s phase", p.Title, t),
				Description:        fmt.Sprintf("phase %d: %s work for %s", i+1, t, p.Title),
				RequiredAgentTypes: []AgentType{t},
				Priority:           p.Priority,
			}
		}
		return subs
	}
	subs := make([]SubProblem, len(defaultPhases))
	for i, phase := range defaultPhases {
		subs[i] = SubProblem{
			ID:          fmt.Sprintf("%s-%d", p.ID, i+1),
			ParentID:    p.ID,
			Title:       fmt.Sprintf("%s — %s", p.Title, phase),
			Description: fmt.Sprintf("phase %d: %s for %s", i+1, phase, p.Title),
			Priority:    p.Priority,
		}
	}
	return subs
}

// solveSingleAgent hands the whole problem to one agent. Confidence
// is pinned at 0.85: the one fixed constant this pipeline allows,
// since a single unverified response has no independent signal to
// derive a confidence from. QualityScore still comes from the
// agent's own self-reported outcome.
func (s *Solver) solveSingleAgent(ctx context.Context, problem Problem) (approachResult, error) {
	ra, ok := s.selectAgent(problem.RequiredAgentTypes)
	if !ok {
		return approachResult{}, ErrNoSuitableAgent
	}
	outcome, err := ra.exec.ExecuteTask(ctx, agent.TaskInput{ID: problem.ID, Description: problem.Description})
	if err != nil {
		return approachResult{}, err
	}
	return approachResult{
		payload:           outcome.Payload,
		confidence:        0.85,
		quality:           outcome.QualityScore,
		consensusAchieved: true,
		agentsUsed:        []string{ra.id},
		iterations:        1,
	}, nil
}

// solveSwarm runs the democratic swarm task mode over up to maxAgents
// candidates matching types, and reports the winning ballot's own
// tallied confidence rather than a fixed consensus/no-consensus split.
func (s *Solver) solveSwarm(ctx context.Context, taskID, description string, types []AgentType, maxAgents int, strategy vote.Strategy) (approachResult, error) {
	candidates := s.selectAgents(types, maxAgents)
	if len(candidates) == 0 {
		return approachResult{}, ErrNoSuitableAgent
	}

	coord := swarm.New(swarm.ParticleSwarm, swarm.WithTracer(s.tracer))
	swarmCandidates := make([]swarm.CandidateAgent, len(candidates))
	agentsUsed := make([]string, len(candidates))
	for i, ra := range candidates {
		swarmCandidates[i] = swarm.CandidateAgent{ID: ra.id, Agent: ra.exec}
		agentsUsed[i] = ra.id
	}

	taskResult, err := coord.RunTask(ctx, swarm.Task{ID: taskID, Description: description}, swarmCandidates, vote.Config{Strategy: strategy})
	if err != nil {
		return approachResult{}, err
	}
	if s.log != nil {
		s.log.RecordSwarmIteration(taskResult.RunID, string(swarm.ParticleSwarm))
	}

	var payload string
	var quality float64
	for _, c := range taskResult.Candidates {
		if c.AgentID == taskResult.Winner {
			payload = c.Outcome.Payload
			quality = c.Outcome.QualityScore
			break
		}
	}

	return approachResult{
		payload:           payload,
		confidence:        taskResult.Vote.Confidence,
		quality:           quality,
		voteResult:        &taskResult.Vote,
		consensusAchieved: taskResult.Vote.Consensus,
		agentsUsed:        agentsUsed,
		swarmsUsed:        1,
		iterations:        1,
	}, nil
}

// solveCrew runs a sequential crew workflow with one task per
// sub-problem, the first selected agent as Leader and the rest as
// Specialist.
func (s *Solver) solveCrew(ctx context.Context, types []AgentType, subproblems []SubProblem) (approachResult, error) {
	candidates := s.selectAgents(types, 5)
	if len(candidates) == 0 {
		return approachResult{}, ErrNoSuitableAgent
	}

	cw := crew.New(crew.Config{Name: "solver-crew", Process: crew.Sequential, QualityThreshold: 0.5}, crew.WithMetricsLog(s.log), crew.WithTracer(s.tracer))
	agentsUsed := make([]string, len(candidates))
	for i, ra := range candidates {
		role := crew.Specialist
		if i == 0 {
			role = crew.Leader
		}
		if err := cw.AddMember(crew.Member{AgentID: ra.id, Role: role, Agent: ra.exec}); err != nil {
			return approachResult{}, err
		}
		agentsUsed[i] = ra.id
	}

	for i, sp := range subproblems {
		agentID := candidates[i%len(candidates)].id
		if err := cw.AssignTask(&crew.Task{ID: sp.ID, Description: sp.Description}, agentID, ""); err != nil {
			return approachResult{}, err
		}
	}

	wfResult, err := cw.ExecuteWorkflow(ctx)
	if err != nil {
		return approachResult{}, err
	}

	var payload string
	var qualitySum float64
	for i, t := range wfResult.Tasks {
		if i > 0 {
			payload += "\n"
		}
		payload += t.Result
		qualitySum += t.QualityScore
	}
	quality := 0.0
	if len(wfResult.Tasks) > 0 {
		quality = qualitySum / float64(len(wfResult.Tasks))
	}

	return approachResult{
		payload:           payload,
		confidence:        quality,
		quality:           quality,
		consensusAchieved: wfResult.Failed == 0,
		agentsUsed:        agentsUsed,
		crewsUsed:         1,
		iterations:        1,
	}, nil
}

// solveMultiSwarm runs an independent swarm per sub-problem
// concurrently, then aggregates the winners by a second vote.
func (s *Solver) solveMultiSwarm(ctx context.Context, subproblems []SubProblem, strategy vote.Strategy) (approachResult, error) {
	if len(subproblems) == 0 {
		return approachResult{}, errors.New("solver: no sub-problems to solve")
	}

	results := make([]approachResult, len(subproblems))
	ids := make([]string, len(subproblems))
	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range subproblems {
		i, sp := i, sp
		ids[i] = sp.ID
		g.Go(func() error {
			r, err := s.solveSwarm(gctx, sp.ID, sp.Description, sp.RequiredAgentTypes, 4, strategy)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return approachResult{}, err
	}

	return aggregate(results, ids, strategy), nil
}

// solveHybrid routes each sub-problem to a crew when it names more
// than two required agent types, and to a swarm otherwise, then
// aggregates identically to solveMultiSwarm.
func (s *Solver) solveHybrid(ctx context.Context, subproblems []SubProblem, strategy vote.Strategy) (approachResult, error) {
	if len(subproblems) == 0 {
		return approachResult{}, errors.New("solver: no sub-problems to solve")
	}

	results := make([]approachResult, len(subproblems))
	ids := make([]string, len(subproblems))
	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range subproblems {
		i, sp := i, sp
		ids[i] = sp.ID
		g.Go(func() error {
			var r approachResult
			var err error
			if len(sp.RequiredAgentTypes) > 2 {
				r, err = s.solveCrew(gctx, sp.RequiredAgentTypes, []SubProblem{sp})
			} else {
				r, err = s.solveSwarm(gctx, sp.ID, sp.Description, sp.RequiredAgentTypes, 4, strategy)
			}
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return approachResult{}, err
	}

	return aggregate(results, ids, strategy), nil
}

// aggregate tallies one ballot per sub-result (keyed by sub-problem
// ID, weighted by that sub-result's own confidence) and returns the
// winner's payload, reporting the tally's own computed confidence
// rather than a fabricated constant.
func aggregate(results []approachResult, ids []string, strategy vote.Strategy) approachResult {
	byID := make(map[string]approachResult, len(results))
	var ballots []vote.Vote
	var agentsUsed []string
	swarmsUsed, crewsUsed := 0, 0

	for i, r := range results {
		swarmsUsed += r.swarmsUsed
		crewsUsed += r.crewsUsed
		agentsUsed = append(agentsUsed, r.agentsUsed...)
		if r.payload == nil {
			continue
		}
		byID[ids[i]] = r
		ballots = append(ballots, vote.Vote{VoterID: ids[i], Choice: ids[i], Weight: r.confidence, Confidence: r.confidence})
	}

	tally := vote.Tally(ballots, vote.Config{Strategy: strategy, TotalAgents: len(results)})
	winner, ok := byID[tally.Winner]
	if !ok {
		return approachResult{voteResult: &tally, agentsUsed: agentsUsed, swarmsUsed: swarmsUsed, crewsUsed: crewsUsed, iterations: 1}
	}

	return approachResult{
		payload:           winner.payload,
		confidence:        tally.Confidence,
		quality:           winner.quality,
		voteResult:        &tally,
		consensusAchieved: tally.Consensus,
		agentsUsed:        agentsUsed,
		swarmsUsed:        swarmsUsed,
		crewsUsed:         crewsUsed,
		iterations:        1,
	}
}

// refineConsensus re-asks every contributing agent to refine its
// proposal against the previous round's leading answer, running the
// pkg/consensus iterative-refinement loop until consensus is reached,
// rounds are exhausted, or improvement stagnates. On success it raises
// confidence by a bounded increment capped at 0.95; on failure it
// returns the original, unmodified result.
func (s *Solver) refineConsensus(ctx context.Context, problem Problem, result approachResult, opts SolveOptions) (approachResult, error) {
	if len(result.agentsUsed) == 0 {
		return result, errors.New("solver: no contributing agents to refine with")
	}

	proposal := s.builder.NewProposal(problem.ID, problem.Title, problem.Description, nil)

	nextRound := func(ctx context.Context, prev *vote.Result) ([]vote.Vote, error) {
		var ballots []vote.Vote
		for _, aid := range result.agentsUsed {
			ra, ok := s.agentByID(aid)
			if !ok {
				continue
			}
			desc := problem.Description
			if prev != nil && prev.HasWinner {
				desc = fmt.Sprintf("%s\n\nrefine the leading proposal (confidence %.2f); improve or confirm it.", desc, prev.Confidence)
			}
			outcome, err := ra.exec.ExecuteTask(ctx, agent.TaskInput{ID: problem.ID, Description: desc})
			if err != nil || outcome.Status != agent.TaskCompleted {
				continue
			}
			ballots = append(ballots, vote.Vote{VoterID: aid, Choice: outcome.Payload, Weight: outcome.QualityScore, Confidence: outcome.QualityScore})
		}
		if len(ballots) == 0 {
			return nil, errors.New("solver: no agent produced a refinable proposal")
		}
		return ballots, nil
	}

	final, err := s.builder.Refine(ctx, proposal.ID, consensus.RefineConfig{
		Strategy:    opts.VotingStrategy,
		MaxRounds:   opts.MaxConsensusRounds,
		TotalAgents: len(result.agentsUsed),
	}, nextRound)
	if err != nil || !final.HasWinner {
		return result, errors.New("solver: consensus refinement did not converge")
	}

	refined := result
	refined.payload = final.Winner
	refined.confidence = math.Min(0.95, result.confidence+0.1)
	refined.consensusAchieved = true
	refined.voteResult = final
	refined.iterations = final.Rounds
	return refined, nil
}
