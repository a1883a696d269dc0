// Package runner implements the top-level convenience entry point: it
// iterates a flow's top-level steps, requires each to be a LoadGen block,
// and dispatches each to the load generator in sequence.
package runner

import (
	"context"
	"fmt"

	"github.com/wesleyorama2/flowgen/internal/flowgen/executor"
	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
	"github.com/wesleyorama2/flowgen/internal/flowgen/loadgen"
)

// Run executes every top-level step of f in order. Any step that is not a
// LoadGen block is a configuration error and stops the run immediately.
func Run(ctx context.Context, host executor.ScriptHost, client executor.HTTPClient, f *flow.Flow, globalKV *kv.Store, report loadgen.Reporter) (flow.FunctionStatus, error) {
	finalStatus := flow.Passed

	for i, step := range f.Functions {
		if step.Kind != flow.KindLoadGen {
			return flow.Failed, fmt.Errorf("runner: top-level step #%d is %q, only LoadGen is permitted at the top level", i, step.Kind)
		}

		status, err := loadgen.Run(ctx, host, client, step.LoadGen, globalKV, report)
		if err != nil {
			return flow.Failed, fmt.Errorf("runner: load generator #%d: %w", i, err)
		}
		if status == flow.Failed {
			finalStatus = flow.Failed
		}
	}

	return finalStatus, nil
}
