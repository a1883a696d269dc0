// Package steps implements the three leaf step primitives a flow executor
// dispatches to: Sleep, HttpRequest, and RunScript.
package steps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
)

// Sleep pauses for the parsed duration in seconds, or for remainingTime if
// that is shorter and hasRemaining is true; hasRemaining false means no bound
// is in effect. A malformed or negative duration is a step error.
func Sleep(ctx context.Context, params *flow.SleepParams, remainingTime time.Duration, hasRemaining bool) (flow.FunctionStatus, error) {
	seconds, err := strconv.ParseInt(params.Duration, 10, 64)
	if err != nil || seconds < 0 {
		return flow.Failed, fmt.Errorf("steps: invalid sleep duration %q", params.Duration)
	}

	d := time.Duration(seconds) * time.Second
	if hasRemaining && remainingTime < d {
		d = remainingTime
	}
	if d < 0 {
		d = 0
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return flow.Failed, ctx.Err()
	}
	return flow.Passed, nil
}
