// Package executor drives one virtual user: a deadline-bounded, strictly
// sequential walk over a step list, interpolating and dispatching one step
// at a time against a private local KV and a shared global KV.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/interpolate"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
	"github.com/wesleyorama2/flowgen/internal/flowgen/steps"
)

// HTTPClient is the capability the executor needs to dispatch HttpRequest
// steps, re-exported so callers outside this package (the load generator)
// don't need to import steps directly just to name the type.
type HTTPClient = steps.HttpClient

// ScriptHost is the capability the executor needs from the embedded
// scripting engine, for both interpolation and RunScript steps.
type ScriptHost interface {
	Eval(expr string, env map[string]any) (any, error)
	Run(code string, env map[string]any) (map[string]any, error)
}

// nestedLoadGenPanic is the distinguishable fatal value used to unwind a
// virtual user's goroutine when its step list contains a LoadGen step,
// which is only legal at the top level. It is always recovered inside
// RunFunctions; it never escapes as a process-wide abort.
type nestedLoadGenPanic struct{}

// RunFunctions executes steps in order against globalKV, bounded by a
// deadline timeoutSeconds from now. The first failing step stops the run and
// makes the result Failed. Once the deadline has passed no further step is
// started; steps skipped that way do not change the result, so a run cut
// short by the deadline with no failed step returns Passed.
func RunFunctions(ctx context.Context, host ScriptHost, client steps.HttpClient, stepList []flow.Step, globalKV *kv.Store, timeoutSeconds uint64) (status flow.FunctionStatus, err error) {
	localKV := kv.New()
	defer localKV.Close()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(nestedLoadGenPanic); ok {
				status = flow.Failed
				err = fmt.Errorf("executor: nested LoadGen step is not permitted below the top level")
				return
			}
			panic(r)
		}
	}()

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	finalStatus := flow.Passed

	for i, step := range stepList {
		if !time.Now().Before(deadline) {
			break
		}

		remaining := time.Until(deadline)
		hasRemaining := remaining > 0

		resolved, stepErr := resolveStep(host, step, localKV, ctx)
		if stepErr != nil {
			return flow.Failed, fmt.Errorf("executor: step #%d: %w", i, stepErr)
		}

		var result flow.FunctionStatus
		switch resolved.Kind {
		case flow.KindSleep:
			result, stepErr = steps.Sleep(ctx, resolved.Sleep, remaining, hasRemaining)

		case flow.KindHttpRequest:
			result, stepErr = steps.HttpRequest(ctx, client, resolved.HttpRequest, remaining, hasRemaining, globalKV, localKV)

		case flow.KindRunScript:
			result, stepErr = steps.RunScript(ctx, host, resolved.RunScript, localKV)

		case flow.KindLoadGen:
			panic(nestedLoadGenPanic{})

		default:
			stepErr = fmt.Errorf("executor: step has unrecognized kind %q", resolved.Kind)
		}

		if stepErr != nil {
			return flow.Failed, fmt.Errorf("executor: step #%d failed: %w", i, stepErr)
		}
		if result == flow.Failed {
			finalStatus = flow.Failed
			break
		}
	}

	return finalStatus, nil
}

// resolveStep serializes step, interpolates it against localKV's current
// scope, and re-deserializes into a concrete step ready to dispatch.
func resolveStep(host ScriptHost, step flow.Step, localKV *kv.Store, ctx context.Context) (flow.Step, error) {
	serialized, err := json.Marshal(step)
	if err != nil {
		return flow.Step{}, fmt.Errorf("serializing step: %w", err)
	}

	env, err := localKV.Snapshot(ctx)
	if err != nil {
		return flow.Step{}, fmt.Errorf("snapshotting local KV: %w", err)
	}

	var resolved flow.Step
	if err := interpolate.Step(host, serialized, env, &resolved); err != nil {
		return flow.Step{}, fmt.Errorf("interpolating step: %w", err)
	}

	return resolved, nil
}
