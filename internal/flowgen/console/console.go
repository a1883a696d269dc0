// Package console renders the load generator's human-readable progress and
// pass/fail summary, colorized when standard output is a terminal.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Reporter accumulates per-request latency samples and prints the
// TOTAL/PASSED/FAILED summary the load generator emits once all virtual
// users have joined.
type Reporter struct {
	out             io.Writer
	disableProgress bool
	success         *color.Color
	failure         *color.Color
	info            *color.Color
	latencies       *hdrhistogram.Histogram
}

// Options controls a Reporter's verbosity. The zero value prints both live
// progress and the final summary.
type Options struct {
	// Quiet suppresses progress and the final summary. Error lines still go
	// to stderr.
	Quiet bool
	// DisableProgress suppresses only the live per-VU progress line,
	// leaving the final summary intact. Implied by Quiet.
	DisableProgress bool
}

// latencyLowestMs/latencyHighestMs/latencySigFigs bound the histogram's
// tracked range: 1ms floor, one minute ceiling, three significant figures
// of precision — generous enough for interactive load-test feedback
// without needing persistent storage.
const (
	latencyLowestMs  = 1
	latencyHighestMs = 60_000
	latencySigFigs   = 3
)

// New builds a Reporter writing to os.Stdout, auto-detecting whether colors
// should be enabled based on whether stdout is a terminal. An optional
// Options tunes verbosity; omitting it prints both progress and summary.
func New(opts ...Options) *Reporter {
	noColor := !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())

	success := color.New(color.FgGreen, color.Bold)
	failure := color.New(color.FgRed, color.Bold)
	info := color.New(color.FgCyan)
	if noColor {
		success.DisableColor()
		failure.DisableColor()
		info.DisableColor()
	}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	out := io.Writer(os.Stdout)
	if o.Quiet {
		out = io.Discard
	}

	return &Reporter{
		out:             out,
		disableProgress: o.DisableProgress || o.Quiet,
		success:         success,
		failure:         failure,
		info:            info,
		latencies:       hdrhistogram.New(latencyLowestMs, latencyHighestMs, latencySigFigs),
	}
}

// NewForTest builds a Reporter writing to an arbitrary writer with colors
// disabled, for deterministic output in tests.
func NewForTest(out io.Writer) *Reporter {
	return NewForTestWithOptions(out, Options{})
}

// NewForTestWithOptions builds a Reporter writing to an arbitrary writer
// with colors disabled, honoring Quiet/DisableProgress, for deterministic
// verbosity tests.
func NewForTestWithOptions(out io.Writer, opts Options) *Reporter {
	success := color.New(color.FgGreen, color.Bold)
	failure := color.New(color.FgRed, color.Bold)
	info := color.New(color.FgCyan)
	success.DisableColor()
	failure.DisableColor()
	info.DisableColor()

	if opts.Quiet {
		out = io.Discard
	}

	return &Reporter{
		out:             out,
		disableProgress: opts.DisableProgress || opts.Quiet,
		success:         success,
		failure:         failure,
		info:            info,
		latencies:       hdrhistogram.New(latencyLowestMs, latencyHighestMs, latencySigFigs),
	}
}

// Progress prints a running completed/total line as virtual users join.
// Suppressed when the Reporter was built with DisableProgress or Quiet.
func (r *Reporter) Progress(completed, total int) {
	if r.disableProgress {
		return
	}
	r.info.Fprintf(r.out, "progress: %d/%d virtual users complete\n", completed, total)
}

// RecordLatency folds one completed request's elapsed time into the live
// percentile histogram. Values outside the tracked range are rejected by the
// underlying histogram and that error is ignored, so such samples are dropped.
func (r *Reporter) RecordLatency(elapsedMs int64) {
	_ = r.latencies.RecordValue(elapsedMs)
}

// Summary prints the final TOTAL/PASSED/FAILED line together with p50/p99
// latency if any requests were recorded.
func (r *Reporter) Summary(total, passed, failed int) {
	fmt.Fprintf(r.out, "TOTAL TASKS: %d\n", total)
	r.success.Fprintf(r.out, "PASSED: %d\n", passed)
	if failed > 0 {
		r.failure.Fprintf(r.out, "FAILED: %d\n", failed)
	} else {
		fmt.Fprintf(r.out, "FAILED: %d\n", failed)
	}

	if r.latencies.TotalCount() == 0 {
		return
	}
	r.info.Fprintf(r.out, "latency p50=%dms p99=%dms max=%dms\n",
		r.latencies.ValueAtQuantile(50),
		r.latencies.ValueAtQuantile(99),
		r.latencies.Max(),
	)
}

// Error prints a human-readable error line, used for configuration errors
// surfaced before any virtual user starts.
func (r *Reporter) Error(format string, args ...any) {
	r.failure.Fprintf(os.Stderr, format+"\n", args...)
}
