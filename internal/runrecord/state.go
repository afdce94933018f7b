package runrecord

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lonestarx1/orcgrid/pkg/solver"
)

// Snapshot serializes a solver.SolverState to YAML. It captures only
// static bookkeeping — problems, solutions, open consensus sessions,
// and the agent roster — never in-flight work, matching
// solver.Solver.State's own documented scope.
func Snapshot(s *solver.SolverState) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("runrecord: marshal snapshot: %w", err)
	}
	return data, nil
}

// Restore parses a snapshot produced by Snapshot. The returned state
// is inert data: restoring it does not re-register agents with a live
// Solver or resume any interrupted consensus session, since active
// work is never captured in the first place.
func Restore(data []byte) (*solver.SolverState, error) {
	var s solver.SolverState
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("runrecord: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
