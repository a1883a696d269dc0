package steps

import (
	"context"
	"fmt"

	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
)

// ScriptHost is the capability RunScript needs from the embedded scripting
// engine: run code against an environment and get the mutated environment
// back.
type ScriptHost interface {
	Run(code string, env map[string]any) (map[string]any, error)
}

// RunScript snapshots localKV, executes params.Code against that
// environment, then reconciles localKV with the returned environment:
// keys present before but absent after are deleted, every returned key is
// set (overwritten).
func RunScript(ctx context.Context, host ScriptHost, params *flow.ScriptParams, localKV *kv.Store) (flow.FunctionStatus, error) {
	before, err := localKV.Snapshot(ctx)
	if err != nil {
		return flow.Failed, fmt.Errorf("steps: snapshotting local KV: %w", err)
	}

	after, err := host.Run(params.Code, before)
	if err != nil {
		return flow.Failed, fmt.Errorf("steps: running script: %w", err)
	}

	for key := range before {
		if _, stillPresent := after[key]; !stillPresent {
			if err := localKV.Delete(ctx, key); err != nil {
				return flow.Failed, fmt.Errorf("steps: deleting stale key %q: %w", key, err)
			}
		}
	}
	for key, value := range after {
		if err := localKV.Set(ctx, key, value); err != nil {
			return flow.Failed, fmt.Errorf("steps: setting key %q: %w", key, err)
		}
	}

	return flow.Passed, nil
}
