package cli

import (
	"context"
	"flag"

	"github.com/lonestarx1/orcgrid/internal/config"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/swarm"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

func (a *App) runSwarm(args []string) int {
	fs := flag.NewFlagSet("swarm", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")
	orchestrationPath := fs.String("orchestration-config", "", "path to an orchestration.yaml overriding swarm defaults (disabled if empty)")
	strategy := fs.String("strategy", string(swarm.ParticleSwarm), "swarm strategy (particle_swarm, ant_colony, bee_colony)")
	taskDescription := fs.String("task-description", "", "task description (required)")
	votingStrategy := fs.String("voting-strategy", string(vote.Weighted), "strategy used to pick the winning proposal")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP HTTP endpoint to export swarm spans to (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *taskDescription == "" {
		a.errf("Error: -task-description is required\n")
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

	ctx := context.Background()
	var candidates []swarm.CandidateAgent
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
		candidates = append(candidates, swarm.CandidateAgent{ID: name, Agent: ag})
	}

	effectiveStrategy := swarm.Strategy(*strategy)
	opts := []swarm.Option{swarm.WithTracer(tracerFromFlag(*otelEndpoint))}
	if *orchestrationPath != "" {
		orch, err := config.LoadOrchestration(*orchestrationPath)
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		effectiveStrategy = swarm.Strategy(orch.Swarm.Strategy)
		opts = append(opts, swarm.WithConfig(swarm.Config{MaxIterations: orch.Swarm.MaxIterations}))
	}

	c := swarm.New(effectiveStrategy, opts...)
	result, err := c.RunTask(ctx, swarm.Task{
		ID:          "task-1",
		Description: *taskDescription,
	}, candidates, vote.Config{Strategy: vote.Strategy(*votingStrategy)})
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	a.outf("Winner: %s\n", result.Winner)
	a.outf("Vote:   %s (%s)\n", result.Vote.Kind, result.Vote.Strategy)
	for _, cand := range result.Candidates {
		if cand.Err != nil {
			a.outf("  [%s] error: %v\n", cand.AgentID, cand.Err)
			continue
		}
		a.outf("  [%s] %s (quality %.2f)\n", cand.AgentID, cand.Outcome.Status, cand.Outcome.QualityScore)
	}
	return 0
}
