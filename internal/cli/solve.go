package cli

import (
	"context"
	"flag"

	"github.com/lonestarx1/orcgrid/internal/config"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/solver"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

func (a *App) runSolve(args []string) int {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")
	orchestrationPath := fs.String("orchestration-config", "", "path to an orchestration.yaml overriding voting/consensus defaults (disabled if empty)")
	title := fs.String("title", "", "problem title")
	description := fs.String("description", "", "problem description")
	problemType := fs.String("type", string(solver.General), "problem type")
	complexity := fs.String("complexity", "", "problem complexity (simple, moderate, complex, highly_complex); auto-classified if empty")
	votingStrategy := fs.String("voting-strategy", string(vote.Majority), "consensus voting strategy")
	useConsensus := fs.Bool("consensus", false, "refine the result through a consensus vote")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP HTTP endpoint to export solver spans to (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *title == "" {
		a.errf("Error: -title is required\n")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(cfg.Agents) == 0 {
		a.errf("Error: no agents defined in %s\n", *configPath)
		return 1
	}

	// Register one agent per config entry.
	ctx := context.Background()
	s := solver.New(solver.WithTracer(tracerFromFlag(*otelEndpoint)))
	for name, agentCfg := range cfg.Agents {
		provider, err := a.providerFactory(ctx, agentCfg.Provider)
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		ag := agent.New(name,
			agent.WithModel(agentCfg.Model),
			agent.WithProvider(provider),
			agent.WithInstructions(agentCfg.Instructions),
			agent.WithConfig(agent.Config{
				MaxTurns:    agentCfg.Config.MaxTurns,
				MaxTokens:   agentCfg.Config.MaxTokens,
				Temperature: agentCfg.Config.Temperature,
				Timeout:     agentCfg.Config.Timeout.Duration,
				CostBudget:  agentCfg.Config.CostBudget,
			}),
		)
		if err := s.RegisterAgent(name, solver.AgentType(name), nil, ag); err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
	}

	// Resolve voting/consensus options, optionally overridden by an orchestration config.
	problem := solver.Problem{
		Title:       *title,
		Description: *description,
		Type:        solver.ProblemType(*problemType),
	}
	if *complexity != "" {
		c := solver.Complexity(*complexity)
		problem.Complexity = &c
	}

	solveOpts := solver.SolveOptions{
		VotingStrategy: vote.Strategy(*votingStrategy),
		UseConsensus:   *useConsensus,
	}
	if *orchestrationPath != "" {
		orch, err := config.LoadOrchestration(*orchestrationPath)
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		solveOpts.VotingStrategy = vote.Strategy(orch.Voter.Strategy)
		solveOpts.MaxConsensusRounds = orch.Consensus.MaxRounds
	}

	// Solve and print the result.
	sol, err := s.Solve(ctx, problem, solveOpts)
	if err != nil && sol == nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	a.outf("Approach:   %s\n", sol.Approach)
	a.outf("Confidence: %.2f\n", sol.Confidence)
	a.outf("Duration:   %s\n", sol.Duration)
	if sol.Partial {
		a.outf("Partial:    true (%s)\n", sol.Err)
	}
	if sol.Result != nil {
		a.outf("\n%v\n", sol.Result)
	}
	return 0
}
