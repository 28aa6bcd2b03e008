package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/store"
)

func decodeReport(t *testing.T, out string) ReportData {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   ReportData `json:"data"`
		RunID  string     `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, resp.Data.RunID, resp.RunID)
	return resp.Data
}

func TestExplore_BuiltinJSON(t *testing.T) {
	out, err := execute(t, "explore", "ring", "--param", "size=7", "--workers", "2", "--format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, "ring(size=7)", r.Model)
	assert.Equal(t, int64(7), r.States)
	assert.Equal(t, int64(7), r.Transitions)
	assert.Equal(t, 2, r.Workers)
	assert.Equal(t, "pooled", r.Strategy)
	assert.False(t, r.Truncated)
	assert.NotEmpty(t, r.RunID)
}

func TestExplore_TextReport(t *testing.T) {
	out, err := execute(t, "explore", "torus", "-p", "width=3", "-p", "height=4",
		"--strategy", "level", "--workers", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "states       12\n")
	assert.Contains(t, out, "transitions  24\n")
	assert.Contains(t, out, "depth        6\n")
	assert.Contains(t, out, "status       complete\n")
}

func TestExplore_MaxStatesTruncates(t *testing.T) {
	out, err := execute(t, "explore", "torus", "--max-states", "10", "--workers", "1", "--format", "json")
	require.NoError(t, err, "a capped run is not a failure")
	r := decodeReport(t, out)
	assert.True(t, r.Truncated)
	assert.Equal(t, int64(10), r.States)
}

func TestExplore_ConfigFileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "explore.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
workers: 3
strategy: level
frontier: locked
store:
  backend: map
  chunk_kinds: 1
`), 0644))

	out, err := execute(t, "explore", "stack", "--config", cfgPath, "--workers", "2", "--format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, 2, r.Workers, "flag overrides file")
	assert.Equal(t, "level", r.Strategy)
	assert.Equal(t, "locked", r.Frontier)
	assert.Equal(t, "map", r.Backend)
	assert.Equal(t, 4, r.Depth)
	assert.Equal(t, map[string]int{"root": 15, "sub": 14, "chunk0": 0}, r.Partitions)
}

func TestExplore_HistoryRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "explore", "ring", "--db", db, "--backend", "sqlite", "--workers", "2")
	require.NoError(t, err)
	_, err = execute(t, "explore", "torus", "--db", db, "--backend", "pebble", "--workers", "2")
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []RunRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "ring(size=10)", resp.Data[0].Model)
	assert.Equal(t, "sqlite", resp.Data[0].Backend)
	assert.Equal(t, int64(10), resp.Data[0].States)
	assert.Equal(t, "pebble", resp.Data[1].Backend)
	assert.Equal(t, int64(64), resp.Data[1].States)

	out, err = execute(t, "history", "--db", db, "--model", "torus(width=8,height=8)")
	require.NoError(t, err)
	assert.Contains(t, out, "torus(width=8,height=8)")
	assert.NotContains(t, out, "ring(size=10)")
	assert.Contains(t, out, "128")
}

func TestExplore_RuleFile(t *testing.T) {
	path := filepath.Join("..", "modelspec", "testdata", "ring.cue")
	out, err := execute(t, "explore", path+"#ring", "-p", "size=4", "--format", "json", "--workers", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), decodeReport(t, out).States)
}

func TestExplore_ModelErrorExitsWithFailure(t *testing.T) {
	out, err := execute(t, "explore", "testdata/underflow.cue", "--workers", "1", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, explore.IsModelError(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeExplore, resp.Error.Code)
}

func TestExplore_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown model", []string{"explore", "petri"}},
		{"unknown param", []string{"explore", "ring", "-p", "width=3"}},
		{"bad strategy", []string{"explore", "ring", "--strategy", "dfs"}},
		{"bad backend", []string{"explore", "ring", "--backend", "redis"}},
		{"missing config", []string{"explore", "ring", "--config", "testdata/absent.yaml"}},
		{"bad metrics addr", []string{"explore", "ring", "--metrics-addr", "not-an-address"}},
		{"no model", []string{"explore"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.name != "no model" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
			}
		})
	}
}

func TestExplore_MetricsServedDuringRun(t *testing.T) {
	_, err := execute(t, "explore", "ring", "--metrics-addr", "127.0.0.1:0", "--workers", "1")
	require.NoError(t, err)
}

func TestExplore_MetricsRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	opts := &ExploreOptions{
		RootOptions: &RootOptions{Format: "json"},
		RunIDs:      explore.NewFixedGenerator("run-metrics"),
		Registerer:  reg,
	}
	cmd := NewExploreCommand(opts.RootOptions)
	cmd.SetOut(&buf)

	require.NoError(t, runExplore(opts, "ring", cmd))

	r := decodeReport(t, buf.String())
	assert.Equal(t, "run-metrics", r.RunID)

	count, err := promtest.GatherAndCount(reg, "statespace_states_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunRecord(t *testing.T) {
	rec := runRecord(&explore.Report{RunID: "x", Model: "m", Strategy: explore.StrategyLevel, Depth: 3})
	assert.Equal(t, store.Run{ID: "x", Model: "m", Strategy: "level", Depth: 3}, rec)
}
