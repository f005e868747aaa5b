package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
)

func intPtr(n int) *int { return &n }

func reluReport() *prepare.Report {
	return &prepare.Report{
		NodesBefore: 3,
		NodesAfter:  4,
		Groups: []prepare.GroupAssignment{
			{Position: ir.NodeOutput("relu"), GroupID: 0, ObserverID: "obs-0"},
		},
		Observers: []prepare.ObserverRecord{
			{GroupID: 0, ObserverID: "obs-0", Kind: ir.KindMinMax, DType: ir.DTypeInt8},
		},
		Inserted: []prepare.Insertion{
			{ObserverNode: "obs_0", Source: "relu", ObserverID: "obs-0"},
		},
	}
}

func TestEvaluateExpectationsAllPass(t *testing.T) {
	exp := Expectations{
		Groups:     intPtr(1),
		Insertions: intPtr(1),
		NodesAfter: intPtr(4),
		Sources:    []string{"relu"},
		Positions: []PositionExpectation{
			{Position: "node:relu", Group: 0},
		},
	}
	assert.Empty(t, EvaluateExpectations(reluReport(), exp))
}

func TestEvaluateExpectationsFailures(t *testing.T) {
	tests := []struct {
		name string
		exp  Expectations
		want string
	}{
		{
			name: "group count",
			exp:  Expectations{Groups: intPtr(2)},
			want: "expected 2 groups, got 1",
		},
		{
			name: "insertion count",
			exp:  Expectations{Insertions: intPtr(0)},
			want: "expected 0 insertions, got 1",
		},
		{
			name: "node count",
			exp:  Expectations{NodesAfter: intPtr(9)},
			want: "expected 9 nodes after preparation, got 4",
		},
		{
			name: "source order",
			exp:  Expectations{Sources: []string{"conv"}},
			want: "expected insertion sources [conv], got [relu]",
		},
		{
			name: "wrong group",
			exp:  Expectations{Positions: []PositionExpectation{{Position: "node:relu", Group: 1}}},
			want: "position node:relu: expected group 1, got 0",
		},
		{
			name: "ungrouped position",
			exp:  Expectations{Positions: []PositionExpectation{{Position: "node:ghost", Group: 0}}},
			want: "position node:ghost was not grouped",
		},
		{
			name: "malformed position",
			exp:  Expectations{Positions: []PositionExpectation{{Position: "relu", Group: 0}}},
			want: `bad position expectation "relu"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateExpectations(reluReport(), tt.exp)
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.want)
		})
	}
}

func TestEvaluateExpectationsEmpty(t *testing.T) {
	assert.Empty(t, EvaluateExpectations(reluReport(), Expectations{}))
}
