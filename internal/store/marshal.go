package store

import (
	"fmt"
	"time"

	"github.com/quantprep/quantprep/internal/ir"
)

// marshalPosition converts a position to its TEXT column form.
// Uses the canonical "node:name" / "edge:producer->consumer" encoding.
func marshalPosition(pos ir.Position) string {
	return pos.String()
}

// unmarshalPosition parses a TEXT column back into a position.
func unmarshalPosition(s string) (ir.Position, error) {
	pos, err := ir.ParsePosition(s)
	if err != nil {
		return ir.Position{}, fmt.Errorf("unmarshal position: %w", err)
	}
	return pos, nil
}

// marshalBool converts a bool to its INTEGER column form.
// SQLite has no bool type; 0/1 with a CHECK constraint is used instead.
func marshalBool(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unmarshalBool(i int) bool { return i != 0 }

// marshalTime converts a timestamp to its TEXT column form.
// Always UTC RFC 3339, so lexical order equals chronological order.
func marshalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func unmarshalTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unmarshal time: %w", err)
	}
	return t, nil
}
