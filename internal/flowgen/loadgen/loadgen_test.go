package loadgen_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/flowgen/internal/flowgen/console"
	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/httpclient"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
	"github.com/wesleyorama2/flowgen/internal/flowgen/loadgen"
	"github.com/wesleyorama2/flowgen/internal/flowgen/script"
)

func init() {
	color.NoColor = true
}

func outputPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "metrics.json")
}

func TestLoadGen_S5_ConstantRateCompletesAllUsers(t *testing.T) {
	ctx := context.Background()
	global := kv.New()
	defer global.Close()

	path := outputPath(t)
	require.NoError(t, global.Set(ctx, "metrics_output_path", path))

	host := script.NewHost()
	client := httpclient.New()
	report := console.NewForTest(&bytes.Buffer{})

	maxTasks := uint64(4)
	params := &flow.LoadGenParams{
		SpawnRate: "2",
		Timeout:   5,
		MaxTasks:  &maxTasks,
		FunctionsToExecute: []flow.Step{
			{Kind: flow.KindSleep, Sleep: &flow.SleepParams{Duration: "0"}},
		},
	}

	status, err := loadgen.Run(ctx, host, client, params, global, report)
	require.NoError(t, err)
	assert.Equal(t, flow.Passed, status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var metrics []flow.HttpMetric
	require.NoError(t, json.Unmarshal(data, &metrics))
	assert.Empty(t, metrics)
}

func TestLoadGen_S6_ZeroMaxTasksFailsImmediately(t *testing.T) {
	ctx := context.Background()
	global := kv.New()
	defer global.Close()

	path := outputPath(t)
	require.NoError(t, global.Set(ctx, "metrics_output_path", path))

	host := script.NewHost()
	client := httpclient.New()
	report := console.NewForTest(&bytes.Buffer{})

	zero := uint64(0)
	params := &flow.LoadGenParams{SpawnRate: "1", Timeout: 5, MaxTasks: &zero}

	status, err := loadgen.Run(ctx, host, client, params, global, report)
	require.NoError(t, err)
	assert.Equal(t, flow.Failed, status)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no metrics file should be written")
}

func TestLoadGen_S1_SingleSuccessfulRequestWritesMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hi"))
	}))
	defer srv.Close()

	ctx := context.Background()
	global := kv.New()
	defer global.Close()

	path := outputPath(t)
	require.NoError(t, global.Set(ctx, "metrics_output_path", path))

	host := script.NewHost()
	client := httpclient.New()
	report := console.NewForTest(&bytes.Buffer{})

	maxTasks := uint64(1)
	params := &flow.LoadGenParams{
		SpawnRate: "1",
		Timeout:   5,
		MaxTasks:  &maxTasks,
		FunctionsToExecute: []flow.Step{
			{Kind: flow.KindHttpRequest, HttpRequest: &flow.HttpParams{URL: srv.URL, Method: "GET"}},
		},
	}

	status, err := loadgen.Run(ctx, host, client, params, global, report)
	require.NoError(t, err)
	assert.Equal(t, flow.Passed, status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var metrics []flow.HttpMetric
	require.NoError(t, json.Unmarshal(data, &metrics))
	require.Len(t, metrics, 1)
	assert.Equal(t, 200, metrics[0].StatusCode)
	assert.Equal(t, 2, metrics[0].ResponseBodySize)
}

// TestRamp_TickDependentRateAllUsersPass runs a ramp whose spawn_rate
// expression depends on TICK and checks that every spawned user passes. It
// does not assert how many users are spawned per tick.
func TestRamp_TickDependentRateAllUsersPass(t *testing.T) {
	ctx := context.Background()
	global := kv.New()
	defer global.Close()

	path := outputPath(t)
	require.NoError(t, global.Set(ctx, "metrics_output_path", path))

	host := script.NewHost()
	client := httpclient.New()
	report := console.NewForTest(&bytes.Buffer{})

	maxTasks := uint64(3)
	params := &flow.LoadGenParams{
		// TICK starts at 0; max(1, TICK) keeps the first tick's rate at 1.
		SpawnRate: "max(1, TICK)",
		Timeout:   5,
		MaxTasks:  &maxTasks,
		FunctionsToExecute: []flow.Step{
			{Kind: flow.KindSleep, Sleep: &flow.SleepParams{Duration: "0"}},
		},
	}

	status, err := loadgen.Run(ctx, host, client, params, global, report)
	require.NoError(t, err)
	assert.Equal(t, flow.Passed, status)
}
