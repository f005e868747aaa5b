package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
)

// openTestStore creates a store backed by a temp-dir database.
// Closed automatically when the test finishes.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "provenance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

var testCreatedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// sampleReport builds a small two-group report keyed by the given run id.
func sampleReport(runID string) *prepare.Report {
	return &prepare.Report{
		RunID:       runID,
		GraphHash:   "graph-hash-" + runID,
		Training:    false,
		NodesBefore: 4,
		NodesAfter:  6,
		Groups: []prepare.GroupAssignment{
			{Position: ir.NodeOutput("a"), GroupID: 0, ObserverID: "obs-1"},
			{Position: ir.InputEdge("a", "n"), GroupID: 0, ObserverID: "obs-1"},
			{Position: ir.InputEdge("b", "n"), GroupID: 1, ObserverID: "obs-2"},
		},
		Observers: []prepare.ObserverRecord{
			{GroupID: 0, ObserverID: "obs-1", Kind: ir.KindMinMax, DType: ir.DTypeInt8},
			{GroupID: 1, ObserverID: "obs-2", Kind: ir.KindPlaceholder, DType: ir.DTypeFloat32, Dynamic: true},
		},
		Inserted: []prepare.Insertion{
			{ObserverNode: "obs_0", Source: "a", ObserverID: "obs-1"},
			{ObserverNode: "obs_1", Source: "b", ObserverID: "obs-2"},
		},
	}
}
