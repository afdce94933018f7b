package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lonestarx1/orcgrid/internal/id"
	"github.com/lonestarx1/orcgrid/pkg/cost"
	"github.com/lonestarx1/orcgrid/pkg/llm"
	"github.com/lonestarx1/orcgrid/pkg/memory"
	"github.com/lonestarx1/orcgrid/pkg/tool"
)

// Run executes the agent with the given user input.
//
// The agent loop:
//  1. Builds initial messages from system prompt, memory, and user input.
//  2. Calls the LLM with messages and tool definitions.
//  3. If the LLM responds with tool calls, executes them and loops.
//  4. If the LLM responds with a final message, returns the result.
//  5. Respects max turns, timeout, and cost budget.
func (a *Agent) Run(ctx context.Context, input string) (*Result, error) {
	if a.provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if a.model == "" {
		return nil, errors.New("agent: model is required")
	}

	// Apply timeout if configured.
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	runID := id.New()

	// Start run span.
	ctx, runSpan := a.tracer.StartSpan(ctx, "agent.run")
	runSpan.SetAttribute("agent.name", a.name)
	runSpan.SetAttribute("agent.run_id", runID)
	runSpan.SetAttribute("agent.model", a.model)
	defer a.tracer.EndSpan(runSpan)

	// Build initial messages.
	var messages []llm.Message
	if a.instructions != "" {
		messages = append(messages, llm.NewSystemMessage(a.instructions))
	}

	// Load conversation history from memory.
	if a.memory != nil {
		_, memSpan := a.tracer.StartSpan(ctx, "memory.load")
		history, err := a.memory.Load(ctx, a.name)
		if err != nil {
			memSpan.SetError(err)
			a.tracer.EndSpan(memSpan)
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: load memory: %w", err)
		}
		a.tracer.EndSpan(memSpan)
		messages = append(messages, history...)
	}

	messages = append(messages, llm.NewUserMessage(input))

	// Convert tools to LLM definitions.
	toolDefs, err := toolsToDefinitions(a.tools)
	if err != nil {
		runSpan.SetError(err)
		return nil, fmt.Errorf("agent: %w", err)
	}

	// Build tool lookup map.
	toolMap := make(map[string]tool.Tool)
	for _, t := range a.tools {
		toolMap[t.Name()] = t
	}

	// Cost tracking.
	tracker := cost.NewTracker()
	var totalCost float64
	turns := 0

	// Agent loop.
	for {
		if a.config.MaxTurns > 0 && turns >= a.config.MaxTurns {
			break
		}
		if err := ctx.Err(); err != nil {
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: %w", err)
		}
		if a.config.CostBudget > 0 && totalCost >= a.config.CostBudget {
			break
		}

		// Call LLM.
		params := llm.Params{
			Model:    a.model,
			Messages: messages,
			Tools:    toolDefs,
		}
		if a.config.Temperature != nil {
			params.Temperature = a.config.Temperature
		}
		if a.config.MaxTokens > 0 {
			params.MaxTokens = a.config.MaxTokens
		}

		_, llmSpan := a.tracer.StartSpan(ctx, "llm.complete")
		llmSpan.SetAttribute("llm.model", a.model)
		llmSpan.SetAttribute("llm.turn", strconv.Itoa(turns+1))

		resp, err := a.provider.Complete(ctx, params)
		if err != nil {
			llmSpan.SetError(err)
			a.tracer.EndSpan(llmSpan)
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: llm complete (turn %d): %w", turns+1, err)
		}

		llmSpan.SetAttribute("llm.prompt_tokens", strconv.Itoa(resp.Usage.PromptTokens))
		llmSpan.SetAttribute("llm.completion_tokens", strconv.Itoa(resp.Usage.CompletionTokens))
		a.tracer.EndSpan(llmSpan)

		// Track cost: prefer the configured pricing override when set,
		// falling back to the shared tracker's known-model table.
		var callCostUSD float64
		if a.hasPricing {
			callCostUSD = callCost(a.pricing, resp.Usage)
		} else {
			callCostUSD = tracker.Add(resp.Model, resp.Usage)
		}
		totalCost += callCostUSD
		turns++

		// Append assistant message.
		messages = append(messages, resp.Message)

		// If no tool calls, we're done.
		if len(resp.Message.ToolCalls) == 0 {
			break
		}

		// Execute tool calls.
		for _, tc := range resp.Message.ToolCalls {
			_, toolSpan := a.tracer.StartSpan(ctx, "tool.execute")
			toolSpan.SetAttribute("tool.name", tc.Function)
			toolSpan.SetAttribute("tool.call_id", tc.ID)

			t, ok := toolMap[tc.Function]
			if !ok {
				errMsg := fmt.Sprintf("tool %q not found", tc.Function)
				toolSpan.SetAttribute("tool.error", errMsg)
				a.tracer.EndSpan(toolSpan)
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+errMsg))
				continue
			}

			output, err := t.Execute(ctx, tc.Arguments)
			if err != nil {
				toolSpan.SetError(err)
				a.tracer.EndSpan(toolSpan)
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+err.Error()))
				continue
			}

			toolSpan.SetAttribute("tool.output_len", strconv.Itoa(len(output)))
			a.tracer.EndSpan(toolSpan)
			messages = append(messages, llm.NewToolMessage(tc.ID, output))
		}
	}

	// Determine final message.
	var finalMessage llm.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant {
			finalMessage = messages[i]
			break
		}
	}

	// Save to memory.
	var memStats *memory.Stats
	if a.memory != nil {
		_, memSpan := a.tracer.StartSpan(ctx, "memory.save")
		if err := a.memory.Save(ctx, a.name, messages); err != nil {
			memSpan.SetError(err)
			a.tracer.EndSpan(memSpan)
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: save memory: %w", err)
		}
		a.tracer.EndSpan(memSpan)

		if sm, ok := a.memory.(memory.StatsMemory); ok {
			if stats, err := sm.Stats(ctx); err == nil {
				memStats = stats
			}
		}
	}

	runSpan.SetAttribute("agent.turns", strconv.Itoa(turns))
	runSpan.SetAttribute("agent.cost_usd", fmt.Sprintf("%.6f", totalCost))

	return &Result{
		RunID:       runID,
		Message:     finalMessage,
		History:     messages,
		Usage:       tracker.TotalUsage(),
		Cost:        totalCost,
		Turns:       turns,
		MemoryStats: memStats,
	}, nil
}

func toolsToDefinitions(tools []tool.Tool) ([]llm.ToolDefinition, error) {
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		raw, err := t.Schema().ToRawJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %q: %w", t.Name(), err)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  raw,
		})
	}
	return defs, nil
}

// TaskInput is the unit of work an orchestration component hands to an
// Agent via ExecuteTask — the agent callback contract shared by the
// swarm, crew, and solver packages. It is deliberately decoupled from
// pkg/crew.Task and pkg/swarm's candidate types to avoid an import
// cycle; callers adapt their richer task types down to TaskInput at
// the call site.
type TaskInput struct {
	ID          string
	Description string
	Context     map[string]string
}

// TaskOutcome is ExecuteTask's result: a status, a free-form payload,
// and a quality score. QualityScore comes from qualityScore below — it
// is never a fabricated constant.
type TaskOutcome struct {
	Status       string
	Payload      string
	QualityScore float64
}

const (
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// ExecuteTask adapts Run to the orchestration-wide agent callback
// contract: it runs the task description as a single input, and
// derives a QualityScore from the LLM's own self-reported confidence
// when the response carries one in Metadata["confidence"], falling
// back to a content-based heuristic when it doesn't.
func (a *Agent) ExecuteTask(ctx context.Context, task TaskInput) (TaskOutcome, error) {
	prompt := task.Description
	if len(task.Context) > 0 {
		ctxJSON, _ := json.Marshal(task.Context)
		prompt = fmt.Sprintf("%s\n\ncontext: %s", task.Description, ctxJSON)
	}

	result, err := a.Run(ctx, prompt)
	if err != nil {
		return TaskOutcome{Status: TaskFailed}, err
	}

	return TaskOutcome{
		Status:       TaskCompleted,
		Payload:      result.Message.Content,
		QualityScore: qualityScore(result),
	}, nil
}

// qualityScore derives a quality score from the run's own outcome: an
// agent that reports an explicit confidence in its final message's
// metadata is trusted directly; otherwise the score reflects whether
// the agent produced any substantive content at all.
func qualityScore(r *Result) float64 {
	if v, ok := r.Message.Metadata["confidence"]; ok {
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	if r.Message.Content == "" {
		return 0
	}
	return 0.7
}
