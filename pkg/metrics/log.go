// Package metrics implements the Metrics & Event Log component: a
// bounded, queryable event log plus the named counters/gauges/
// histograms that the algorithm/crew/swarm/solver packages report
// through.
package metrics

import (
	"sync"
	"time"

	tm "github.com/lonestarx1/orcgrid/pkg/trace/metrics"
)

// Event is a single lifecycle transition recorded by a component.
type Event struct {
	Timestamp time.Time
	Component string
	Type      string
	Payload   any
}

// Log is a bounded ring buffer of Events plus the shared metrics
// registry every component reports counters/gauges/histograms
// through.
type Log struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	start    int
	size     int

	registry *tm.Registry

	algoExecutions  *tm.Counter
	algoSuccesses   *tm.Counter
	algoFailures    *tm.Counter
	algoDuration    *tm.Histogram
	crewTasksDone   *tm.Counter
	crewTasksFailed *tm.Counter
	crewVotes       *tm.Counter
	crewConsensus   *tm.Counter
	crewTaskSecs    *tm.Histogram
	swarmIterations *tm.Counter
	solverSolved    *tm.Counter
	solverConf      *tm.Gauge
	solverConsRate  *tm.Gauge
}

// DefaultCapacity bounds an un-configured Log to 10,000 events.
const DefaultCapacity = 10000

// New creates a Log with DefaultCapacity.
func New() *Log {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a Log holding at most capacity events,
// oldest evicted first.
func NewWithCapacity(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := tm.NewRegistry()
	return &Log{
		events:   make([]Event, capacity),
		capacity: capacity,
		registry: r,

		algoExecutions:  r.Counter("orcgrid_algorithm_executions_total", "total algorithm executions"),
		algoSuccesses:   r.Counter("orcgrid_algorithm_successes_total", "successful algorithm executions"),
		algoFailures:    r.Counter("orcgrid_algorithm_failures_total", "failed algorithm executions"),
		algoDuration:    r.Histogram("orcgrid_algorithm_duration_seconds", "algorithm execution duration"),
		crewTasksDone:   r.Counter("orcgrid_crew_tasks_completed_total", "crew tasks completed"),
		crewTasksFailed: r.Counter("orcgrid_crew_tasks_failed_total", "crew tasks failed"),
		crewVotes:       r.Counter("orcgrid_crew_votes_conducted_total", "crew votes conducted"),
		crewConsensus:   r.Counter("orcgrid_crew_consensus_reached_total", "crew votes that reached consensus"),
		crewTaskSecs:    r.Histogram("orcgrid_crew_task_duration_seconds", "crew task duration"),
		swarmIterations: r.Counter("orcgrid_swarm_iterations_total", "swarm optimization iterations run"),
		solverSolved:    r.Counter("orcgrid_solver_problems_solved_total", "problems solved"),
		solverConf:      r.Gauge("orcgrid_solver_avg_confidence", "average solution confidence"),
		solverConsRate:  r.Gauge("orcgrid_solver_consensus_rate", "share of solutions that reached consensus"),
	}
}

// Record appends an event, evicting the oldest if the log is full.
func (l *Log) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.size) % l.capacity
	l.events[idx] = e
	if l.size < l.capacity {
		l.size++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
}

// Events returns up to limit events for component, newest last.
// component == "" matches all components. limit <= 0 means unlimited.
func (l *Log) Events(component string, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for i := 0; i < l.size; i++ {
		e := l.events[(l.start+i)%l.capacity]
		if component != "" && e.Component != component {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Export returns every counter/gauge/histogram in Prometheus
// exposition format.
func (l *Log) Export() string { return l.registry.Export() }

// --- algorithm orchestrator counters ---

// RecordAlgorithmExecution reports one algorithm execution's outcome
// and duration, labeled by algorithm key.
func (l *Log) RecordAlgorithmExecution(algorithmKey string, ok bool, d time.Duration) {
	labels := map[string]string{"algorithm": algorithmKey}
	l.algoExecutions.Inc(labels)
	if ok {
		l.algoSuccesses.Inc(labels)
	} else {
		l.algoFailures.Inc(labels)
	}
	l.algoDuration.Observe(d.Seconds(), labels)
}

// --- crew scheduler counters ---

// RecordCrewTask reports a task's terminal outcome and duration for
// the given crew.
func (l *Log) RecordCrewTask(crewID string, ok bool, d time.Duration) {
	labels := map[string]string{"crew": crewID}
	if ok {
		l.crewTasksDone.Inc(labels)
	} else {
		l.crewTasksFailed.Inc(labels)
	}
	l.crewTaskSecs.Observe(d.Seconds(), labels)
}

// RecordCrewVote reports that a vote was conducted for the given
// crew, and whether it reached consensus.
func (l *Log) RecordCrewVote(crewID string, consensus bool) {
	labels := map[string]string{"crew": crewID}
	l.crewVotes.Inc(labels)
	if consensus {
		l.crewConsensus.Inc(labels)
	}
}

// --- swarm coordinator counters ---

// RecordSwarmIteration reports one optimization iteration for the
// given swarm/algorithm.
func (l *Log) RecordSwarmIteration(swarmID, algorithm string) {
	l.swarmIterations.Inc(map[string]string{"swarm": swarmID, "algorithm": algorithm})
}

// --- problem solver gauges ---

// RecordSolved reports a solved problem's confidence and whether
// consensus was achieved, updating the rolling average/rate gauges.
func (l *Log) RecordSolved(confidence float64, consensusAchieved bool) {
	l.solverSolved.Inc(nil)
	n := l.solverSolved.Value(nil)

	prevAvg := l.solverConf.Value(nil)
	l.solverConf.Set(prevAvg+(confidence-prevAvg)/n, nil)

	prevRate := l.solverConsRate.Value(nil)
	achieved := 0.0
	if consensusAchieved {
		achieved = 1.0
	}
	l.solverConsRate.Set(prevRate+(achieved-prevRate)/n, nil)
}
