// Package algorithm implements the Algorithm Orchestrator: a registry
// of typed problem-solver descriptors plus an ordered, keyword-match
// recommendation table that picks the best-suited one for a given
// task, executes it, and keeps per-algorithm metrics and a rolling
// execution history.
package algorithm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lonestarx1/orcgrid/pkg/metrics"
)

// Family classifies an algorithm's underlying approach.
type Family string

const (
	TemplateBased          Family = "template_based"
	ASTBased               Family = "ast_based"
	PatternBased           Family = "pattern_based"
	AIAssisted             Family = "ai_assisted"
	DivideConquer          Family = "divide_conquer"
	Backtracking           Family = "backtracking"
	DynamicProgramming     Family = "dynamic_programming"
	Greedy                 Family = "greedy"
	ConstraintSatisfaction Family = "constraint_satisfaction"
)

// Descriptor identifies one registered algorithm. InputSchema and
// OutputShape are free-form documentation strings, not enforced
// schemas — the orchestrator dispatches by Key, not by validating
// shape.
type Descriptor struct {
	Key         string
	Name        string
	Family      Family
	InputSchema string
	OutputShape string
}

// TaskDescriptor is the input to a recommendation or execution call: a
// task type plus free-form requirements, mirroring the keyword-driven
// classification the recommendation rules match against.
type TaskDescriptor struct {
	Task         string
	Requirements map[string]any
	Input        any
}

// Recommendation is Recommend's verdict: which algorithm to use, how
// confident the rule that matched is, and why.
type Recommendation struct {
	Key        string
	Name       string
	Confidence float64
	Reason     string
}

// Result is one algorithm execution's outcome.
type Result struct {
	AlgorithmKey  string
	AlgorithmName string
	Success       bool
	Data          any
	Err           string
	Duration      time.Duration
}

// Record is one entry in the orchestrator's execution history.
type Record struct {
	Task           TaskDescriptor
	Recommendation *Recommendation
	Result         Result
	Timestamp      time.Time
}

// Exec is the function a registered algorithm runs against a task.
type Exec func(ctx context.Context, task TaskDescriptor) (any, error)

// Sentinel errors.
var (
	ErrAlgorithmNotFound      = errors.New("algorithm: not found")
	ErrAlgorithmAlreadyExists = errors.New("algorithm: already registered")
)

type entry struct {
	descriptor Descriptor
	exec       Exec

	mu          sync.Mutex
	executions  int
	successes   int
	failures    int
	avgDuration time.Duration
}

func (e *entry) recordRun(d time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executions++
	if ok {
		e.successes++
	} else {
		e.failures++
	}
	if e.executions == 1 {
		e.avgDuration = d
	} else {
		e.avgDuration = (e.avgDuration*time.Duration(e.executions-1) + d) / time.Duration(e.executions)
	}
}

// Metrics is an algorithm's accumulated performance record.
type Metrics struct {
	Key               string
	Name              string
	Executions        int
	Successes         int
	Failures          int
	SuccessRate       float64
	AverageDurationMS float64
}

func (e *entry) metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate := 0.0
	if e.executions > 0 {
		rate = float64(e.successes) / float64(e.executions)
	}
	return Metrics{
		Key:               e.descriptor.Key,
		Name:              e.descriptor.Name,
		Executions:        e.executions,
		Successes:         e.successes,
		Failures:          e.failures,
		SuccessRate:       rate,
		AverageDurationMS: float64(e.avgDuration.Microseconds()) / 1000.0,
	}
}

// rule is one ordered entry in the recommendation cascade: the first
// rule whose predicate matches the task wins.
type rule struct {
	predicate func(TaskDescriptor) bool
	recommend Recommendation
}

// Orchestrator is a registry of algorithms plus the ordered
// recommendation rules, execution dispatch, and history tracking.
type Orchestrator struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	history []Record
	rules   []rule

	log *metrics.Log
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithMetricsLog attaches a Metrics & Event Log so every execution
// updates the rolling per-algorithm counters.
func WithMetricsLog(l *metrics.Log) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an Orchestrator with the standard recommendation
// cascade and no registered algorithms.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{entries: make(map[string]*entry)}
	o.rules = defaultRules()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func hasAnyRequirement(reqs map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := reqs[k]; ok {
			return true
		}
	}
	return false
}

func taskContains(t TaskDescriptor, subs ...string) bool {
	lower := strings.ToLower(t.Task)
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// defaultRules builds the ordered keyword-match cascade. Each
// confidence value is a documented constant, not a computed score —
// the recommendation strength of a keyword-match rule is itself a
// fixed judgment call, not a quantity that varies at runtime.
func defaultRules() []rule {
	isCodeTask := func(t TaskDescriptor) bool { return taskContains(t, "code", "generate") }

	return []rule{
		{
			predicate: func(t TaskDescriptor) bool {
				return isCodeTask(t) && hasAnyRequirement(t.Requirements, "pattern", "design_pattern")
			},
			recommend: Recommendation{Key: "pattern", Name: "Pattern-Based Code Generator", Confidence: 0.95, Reason: "design pattern specified"},
		},
		{
			predicate: func(t TaskDescriptor) bool {
				return isCodeTask(t) && hasAnyRequirement(t.Requirements, "ast", "syntax_tree")
			},
			recommend: Recommendation{Key: "ast", Name: "AST-Based Code Generator", Confidence: 0.90, Reason: "AST manipulation required"},
		},
		{
			predicate: func(t TaskDescriptor) bool {
				return isCodeTask(t) && hasAnyRequirement(t.Requirements, "template", "boilerplate")
			},
			recommend: Recommendation{Key: "template", Name: "Template-Based Code Generator", Confidence: 0.85, Reason: "template-based generation"},
		},
		{
			predicate: isCodeTask,
			recommend: Recommendation{Key: "ai", Name: "AI-Assisted Code Generator", Confidence: 0.80, Reason: "AI for flexible generation"},
		},
		{
			predicate: func(t TaskDescriptor) bool { return taskContains(t, "sort", "search") },
			recommend: Recommendation{Key: "divide_conquer", Name: "Divide and Conquer Solver", Confidence: 0.90, Reason: "efficient for sorting/searching"},
		},
		{
			predicate: func(t TaskDescriptor) bool { return taskContains(t, "constraint", "csp") },
			recommend: Recommendation{Key: "constraint_satisfaction", Name: "Constraint Satisfaction Solver", Confidence: 0.95, Reason: "CSP problem detected"},
		},
		{
			predicate: func(t TaskDescriptor) bool {
				return taskContains(t, "optimize", "knapsack") && taskContains(t, "fraction")
			},
			recommend: Recommendation{Key: "greedy", Name: "Greedy Algorithm Solver", Confidence: 0.85, Reason: "fractional optimization"},
		},
		{
			predicate: func(t TaskDescriptor) bool { return taskContains(t, "optimize", "knapsack") },
			recommend: Recommendation{Key: "dynamic_programming", Name: "Dynamic Programming Solver", Confidence: 0.90, Reason: "optimization problem"},
		},
		{
			predicate: func(t TaskDescriptor) bool { return taskContains(t, "permutation", "combination") },
			recommend: Recommendation{Key: "backtracking", Name: "Backtracking Solver", Confidence: 0.90, Reason: "combinatorial problem"},
		},
		{
			predicate: func(TaskDescriptor) bool { return true },
			recommend: Recommendation{Key: "ai", Name: "AI-Assisted Code Generator", Confidence: 0.60, Reason: "general purpose algorithm"},
		},
	}
}

// Register adds an algorithm under d.Key. Returns
// ErrAlgorithmAlreadyExists if the key is already registered.
func (o *Orchestrator) Register(d Descriptor, exec Exec) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.entries[d.Key]; exists {
		return fmt.Errorf("%w: %s", ErrAlgorithmAlreadyExists, d.Key)
	}
	o.entries[d.Key] = &entry{descriptor: d, exec: exec}
	o.order = append(o.order, d.Key)
	return nil
}

// Recommend returns the first recommendation rule matching task.
func (o *Orchestrator) Recommend(task TaskDescriptor) Recommendation {
	for _, r := range o.rules {
		if r.predicate(task) {
			return r.recommend
		}
	}
	return o.rules[len(o.rules)-1].recommend
}

func (o *Orchestrator) lookup(key string) (*entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[key]
	return e, ok
}

func (o *Orchestrator) run(ctx context.Context, e *entry, task TaskDescriptor) Result {
	start := time.Now()
	data, err := e.exec(ctx, task)
	duration := time.Since(start)

	result := Result{AlgorithmKey: e.descriptor.Key, AlgorithmName: e.descriptor.Name, Duration: duration}
	if err != nil {
		result.Err = err.Error()
	} else {
		result.Success = true
		result.Data = data
	}

	e.recordRun(duration, result.Success)
	if o.log != nil {
		o.log.RecordAlgorithmExecution(e.descriptor.Key, result.Success, duration)
	}
	return result
}

func (o *Orchestrator) appendHistory(task TaskDescriptor, rec *Recommendation, result Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, Record{Task: task, Recommendation: rec, Result: result, Timestamp: time.Now()})
}

// ExecuteWithBest recommends an algorithm for task and runs it.
func (o *Orchestrator) ExecuteWithBest(ctx context.Context, task TaskDescriptor) (Result, error) {
	rec := o.Recommend(task)
	e, ok := o.lookup(rec.Key)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrAlgorithmNotFound, rec.Key)
	}
	result := o.run(ctx, e, task)
	o.appendHistory(task, &rec, result)
	return result, nil
}

// ExecuteWith runs task through the specifically named algorithm,
// bypassing recommendation.
func (o *Orchestrator) ExecuteWith(ctx context.Context, key string, task TaskDescriptor) (Result, error) {
	e, ok := o.lookup(key)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrAlgorithmNotFound, key)
	}
	result := o.run(ctx, e, task)
	o.appendHistory(task, nil, result)
	return result, nil
}

// Compare runs task through every named algorithm and returns each
// one's result keyed by its algorithm key. Unknown keys are silently
// skipped, matching compare_algorithms' behavior of ignoring keys not
// present in its registry.
func (o *Orchestrator) Compare(ctx context.Context, task TaskDescriptor, keys []string) map[string]Result {
	results := make(map[string]Result, len(keys))
	for _, key := range keys {
		e, ok := o.lookup(key)
		if !ok {
			continue
		}
		result := o.run(ctx, e, task)
		results[key] = result
		o.appendHistory(task, nil, result)
	}
	return results
}

// History returns the last limit execution records, oldest first. A
// non-positive limit returns the full history.
func (o *Orchestrator) History(limit int) []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limit <= 0 || limit >= len(o.history) {
		return append([]Record(nil), o.history...)
	}
	return append([]Record(nil), o.history[len(o.history)-limit:]...)
}

// ClearHistory discards all recorded execution history.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}

// ListAlgorithms returns every registered algorithm's descriptor and
// accumulated metrics, optionally filtered to the given families.
func (o *Orchestrator) ListAlgorithms(families ...Family) map[string]Metrics {
	o.mu.Lock()
	keys := append([]string(nil), o.order...)
	o.mu.Unlock()

	want := make(map[Family]bool, len(families))
	for _, f := range families {
		want[f] = true
	}

	out := make(map[string]Metrics, len(keys))
	for _, key := range keys {
		e, ok := o.lookup(key)
		if !ok {
			continue
		}
		if len(want) > 0 && !want[e.descriptor.Family] {
			continue
		}
		out[key] = e.metrics()
	}
	return out
}
