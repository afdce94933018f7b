package cli

import (
	"context"
	"flag"

	"github.com/lonestarx1/orcgrid/internal/config"
	"github.com/lonestarx1/orcgrid/pkg/agent"
	"github.com/lonestarx1/orcgrid/pkg/crew"
	"github.com/lonestarx1/orcgrid/pkg/vote"
)

func (a *App) runCrew(args []string) int {
	fs := flag.NewFlagSet("crew", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")
	orchestrationPath := fs.String("orchestration-config", "", "path to an orchestration.yaml overriding crew defaults (disabled if empty)")
	process := fs.String("process", string(crew.Sequential), "process mode (sequential, parallel, hierarchical, democratic_consensus)")
	taskTitle := fs.String("task-title", "", "task title")
	taskDescription := fs.String("task-description", "", "task description")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP HTTP endpoint to export crew spans to (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *taskTitle == "" {
		a.errf("Error: -task-title is required\n")
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

	crewCfg := crew.Config{
		Name:          "cli-crew",
		Process:       crew.ProcessMode(*process),
		RequiredRoles: map[crew.Role]int{crew.Executor: 1},
	}
	if *orchestrationPath != "" {
		orch, err := config.LoadOrchestration(*orchestrationPath)
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		crewCfg.Name = orch.Crew.Name
		crewCfg.Process = crew.ProcessMode(orch.Crew.Process)
		crewCfg.AllowDelegation = orch.Crew.AllowDelegation
		crewCfg.RequireReview = orch.Crew.RequireReview
		crewCfg.VotingEnabled = orch.Crew.VotingEnabled
		crewCfg.VotingStrategy = vote.Strategy(orch.Crew.VotingStrategy)
		crewCfg.QualityThreshold = orch.Crew.QualityThreshold
		crewCfg.MaxRetries = orch.Crew.MaxRetries
		crewCfg.Timeout = orch.Crew.Timeout.Duration
		// Every member this command adds holds the Executor role (there
		// is no per-agent role field in ProjectConfig to assign from),
		// so Executor stays required regardless of what the
		// orchestration config additionally asks for.
		crewCfg.RequiredRoles = map[crew.Role]int{crew.Executor: 1}
		for _, role := range orch.Crew.RequiredRoles {
			crewCfg.RequiredRoles[crew.Role(role)]++
		}
	}

	ctx := context.Background()
	c := crew.New(crewCfg, crew.WithTracer(tracerFromFlag(*otelEndpoint)))

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
		if err := c.AddMember(crew.Member{AgentID: name, Name: name, Role: crew.Executor, Agent: ag}); err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
	}

	if err := c.AssignTask(&crew.Task{
		ID:          "task-1",
		Title:       *taskTitle,
		Description: *taskDescription,
	}, "", crew.Executor); err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	result, err := c.ExecuteWorkflow(ctx)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	a.outf("Process:   %s\n", result.Process)
	a.outf("Completed: %d\n", result.Completed)
	a.outf("Failed:    %d\n", result.Failed)
	for _, t := range result.Tasks {
		a.outf("  [%s] %s -> %s\n", t.Status, t.ID, t.AssignedTo)
		if t.Result != "" {
			a.outf("    %s\n", t.Result)
		}
	}
	return 0
}
