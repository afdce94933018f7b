package cli

import (
	"github.com/lonestarx1/orcgrid/pkg/trace"
	"github.com/lonestarx1/orcgrid/pkg/trace/otel"
)

// tracerFromFlag builds the trace.Tracer an orchestration subcommand
// hands to its solver.Solver/crew.Crew/swarm.Coordinator. An empty
// endpoint means no span export; otherwise spans are batched and
// shipped as OTLP JSON to the given collector endpoint.
func tracerFromFlag(endpoint string) trace.Tracer {
	if endpoint == "" {
		return trace.Noop{}
	}
	return otel.NewExporter(otel.WithEndpoint(endpoint), otel.WithServiceName("orcgrid"))
}
