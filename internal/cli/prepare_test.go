package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execPrepare(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewPrepareCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodePrepareSummary(t *testing.T, out string) PrepareSummary {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   PrepareSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestPrepareCatGraph(t *testing.T) {
	out, err := execPrepare(t, "json", filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)

	summary := decodePrepareSummary(t, out)
	assert.NotEmpty(t, summary.RunID)
	assert.NotEmpty(t, summary.GraphHash)
	assert.False(t, summary.Training)
	assert.Equal(t, 7, summary.NodesBefore)
	assert.Equal(t, 12, summary.NodesAfter)
	assert.Len(t, summary.Groups, 8)
	assert.Len(t, summary.Observers, 1)
	assert.False(t, summary.Stored, "no database given")

	sources := make([]string, 0, len(summary.Inserted))
	for _, in := range summary.Inserted {
		sources = append(sources, in.Source)
	}
	assert.Equal(t, []string{"op1", "op2", "cat1", "op3", "cat2"}, sources)
}

func TestPrepareTextOutput(t *testing.T) {
	out, err := execPrepare(t, "text", filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)

	assert.Contains(t, out, "nodes: 7 -> 12")
	assert.Contains(t, out, "groups (8 positions):")
	assert.Contains(t, out, "mode: eval")
	assert.Contains(t, out, "inserted (5):")
}

func TestPrepareTrainingMode(t *testing.T) {
	out, err := execPrepare(t, "json", "--training", filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)

	summary := decodePrepareSummary(t, out)
	assert.True(t, summary.Training)
	require.Len(t, summary.Observers, 1)
	assert.Equal(t, "fake_quant", summary.Observers[0].Kind)
}

func TestPrepareStoresRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provenance.db")

	out, err := execPrepare(t, "json", "--db", db, filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)
	first := decodePrepareSummary(t, out)
	assert.True(t, first.Stored)

	// Same graph, mode, and tool version: content-addressed, stored once.
	out, err = execPrepare(t, "json", "--db", db, filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)
	second := decodePrepareSummary(t, out)
	assert.Equal(t, first.RunID, second.RunID)
	assert.False(t, second.Stored)
}

func TestPrepareDumpGraph(t *testing.T) {
	out, err := execPrepare(t, "json", "--dump", filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)

	summary := decodePrepareSummary(t, out)
	assert.Contains(t, summary.Graph, "observer")
	assert.Contains(t, summary.Graph, "cat2")
}

func TestPrepareInvalidGraph(t *testing.T) {
	out, err := execPrepare(t, "text", filepath.Join("testdata", "invalid.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E102")
}

func TestPrepareNotFound(t *testing.T) {
	_, err := execPrepare(t, "text", "/nonexistent/graph.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
