// Package loadgen implements the ramp-controlled spawn scheduler: given a
// LoadGenParams block, it spawns virtual users at a rate dictated by a
// per-tick arithmetic expression, joins them all, and persists the
// collected HTTP metrics to disk.
package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wesleyorama2/flowgen/internal/flowgen/executor"
	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
)

const (
	metricsKey           = "load_gen_metrics"
	metricsOutputPathKey = "metrics_output_path"
)

// ScriptHost is the capability the ramp loop needs to evaluate spawn_rate
// expressions, and that each spawned virtual user needs for interpolation
// and RunScript steps.
type ScriptHost = executor.ScriptHost

// Reporter is the capability used to print the human-readable run summary.
// *console.Reporter satisfies this.
type Reporter interface {
	RecordLatency(elapsedMs int64)
	Progress(completed, total int)
	Summary(total, passed, failed int)
	Error(format string, args ...any)
}

// vuOutcome is the classification of one joined virtual user.
type vuOutcome struct {
	status flow.FunctionStatus
	err    error
}

// Run executes one LoadGen block: validates max_tasks, enables metrics
// collection on globalKV, spawns virtual users in ramp order, joins them
// all, prints the pass/fail summary, and writes the collected metrics to
// the path recorded under metrics_output_path in globalKV (if any).
func Run(ctx context.Context, host ScriptHost, client executor.HTTPClient, params *flow.LoadGenParams, globalKV *kv.Store, report Reporter) (flow.FunctionStatus, error) {
	if params.MaxTasks == nil || *params.MaxTasks == 0 {
		report.Error("load generator configuration error: max_tasks must be greater than zero")
		return flow.Failed, nil
	}
	maxTasks := *params.MaxTasks

	if err := globalKV.SetArray(ctx, metricsKey, []any{}); err != nil {
		return flow.Failed, fmt.Errorf("loadgen: initializing metrics collection: %w", err)
	}

	outcomes := make(chan vuOutcome, maxTasks)
	var wg sync.WaitGroup

	tick := int64(0)
	for i := uint64(0); i < maxTasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := executor.RunFunctions(ctx, host, client, params.FunctionsToExecute, globalKV, params.Timeout)
			outcomes <- vuOutcome{status: status, err: err}
		}()

		rate, err := evalSpawnRate(host, params.SpawnRate, tick)
		if err != nil {
			wg.Wait()
			close(outcomes)
			return flow.Failed, fmt.Errorf("loadgen: evaluating spawn_rate at tick %d: %w", tick, err)
		}

		if (i+1)%uint64(rate) == 0 {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			tick++
		}
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	finalStatus := flow.Passed
	passed, failed := 0, 0
	for outcome := range outcomes {
		if outcome.err != nil {
			report.Error("virtual user scheduling error: %v", outcome.err)
			finalStatus = flow.Failed
			failed++
		} else if outcome.status == flow.Passed {
			passed++
		} else {
			finalStatus = flow.Failed
			failed++
		}
		report.Progress(passed+failed, int(maxTasks))
	}

	if value, ok, err := globalKV.Get(ctx, metricsKey); err == nil && ok {
		if entries, isArray := value.Interface().([]any); isArray {
			for _, entry := range entries {
				if metric, isMetric := entry.(flow.HttpMetric); isMetric {
					report.RecordLatency(metric.ElapsedTimeMs)
				}
			}
		}
	}

	report.Summary(passed+failed, passed, failed)

	if err := persistMetrics(ctx, globalKV); err != nil {
		return finalStatus, err
	}

	return finalStatus, nil
}

// evalSpawnRate evaluates expr against {TICK: tick} and clamps the result to
// at least 1, never stalling the ramp at zero throughput.
func evalSpawnRate(host ScriptHost, expr string, tick int64) (int64, error) {
	value, err := host.Eval(expr, map[string]any{"TICK": float64(tick)})
	if err != nil {
		return 0, err
	}

	rate, ok := asInt64(value)
	if !ok {
		return 0, fmt.Errorf("spawn_rate expression %q did not produce a number", expr)
	}
	if rate < 1 {
		rate = 1
	}
	return rate, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func persistMetrics(ctx context.Context, globalKV *kv.Store) error {
	value, ok, err := globalKV.Get(ctx, metricsKey)
	if err != nil {
		return fmt.Errorf("loadgen: reading collected metrics: %w", err)
	}
	if !ok {
		return nil
	}

	raw, isArray := value.Interface().([]any)
	if !isArray {
		return nil
	}

	metrics := make([]flow.HttpMetric, 0, len(raw))
	for _, entry := range raw {
		metric, ok := entry.(flow.HttpMetric)
		if !ok {
			continue
		}
		metrics = append(metrics, metric)
	}

	encoded, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("loadgen: encoding metrics: %w", err)
	}

	pathValue, ok, err := globalKV.Get(ctx, metricsOutputPathKey)
	if err != nil {
		return fmt.Errorf("loadgen: reading metrics_output_path: %w", err)
	}
	if !ok {
		return nil
	}
	path, _ := pathValue.Interface().(string)
	if path == "" {
		return nil
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("loadgen: writing metrics to %q: %w", path, err)
	}
	return nil
}
