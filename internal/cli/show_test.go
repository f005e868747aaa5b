package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execShow(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewShowCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestShowStoredRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provenance.db")
	out, err := execPrepare(t, "json", "--db", db, filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)
	prepared := decodePrepareSummary(t, out)

	out, err = execShow(t, "json", "--db", db, prepared.RunID)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   PrepareSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)

	shown := resp.Data
	assert.Equal(t, prepared.RunID, shown.RunID)
	assert.Equal(t, prepared.GraphHash, shown.GraphHash)
	assert.Equal(t, prepared.Groups, shown.Groups)
	assert.Equal(t, prepared.Observers, shown.Observers)
	assert.Equal(t, prepared.Inserted, shown.Inserted)
}

func TestShowTextOutput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provenance.db")
	out, err := execPrepare(t, "json", "--db", db, filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)
	prepared := decodePrepareSummary(t, out)

	out, err = execShow(t, "text", "--db", db, prepared.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, prepared.RunID)
	assert.Contains(t, out, "groups (8 positions):")
	assert.Contains(t, out, "tool: ")
	assert.Contains(t, out, "created: ")
}

func TestShowUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provenance.db")
	_, err := execPrepare(t, "json", "--db", db, filepath.Join("testdata", "cat.cue"))
	require.NoError(t, err)

	out, err := execShow(t, "text", "--db", db, "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: ghost")
}

func TestShowMissingDatabase(t *testing.T) {
	_, err := execShow(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"), "any")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
