package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quantprep/quantprep/internal/prepare"
)

// WriteRun atomically persists one preparation run: the run record plus
// its group assignments, observer instances, and insertions, in a
// single transaction.
//
// Run IDs are content-addressed, so writing the same run twice is a
// no-op: ON CONFLICT(id) DO NOTHING claims the slot, and when the run
// already exists none of the child rows are written either. Returns
// whether a new record was inserted.
func (s *Store) WriteRun(ctx context.Context, rep *prepare.Report, toolVersion string, createdAt time.Time) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Claim the run slot atomically via the primary key.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, graph_hash, training, tool_version, nodes_before, nodes_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rep.RunID,
		rep.GraphHash,
		marshalBool(rep.Training),
		toolVersion,
		rep.NodesBefore,
		rep.NodesAfter,
		marshalTime(createdAt),
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already recorded - the content address guarantees the
		// existing child rows match this report.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("write run: commit (existing): %w", err)
		}
		return false, nil
	}

	for seq, ga := range rep.Groups {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_groups
			(run_id, seq, position, group_id, observer_id)
			VALUES (?, ?, ?, ?, ?)
		`,
			rep.RunID,
			seq,
			marshalPosition(ga.Position),
			ga.GroupID,
			ga.ObserverID,
		)
		if err != nil {
			return false, fmt.Errorf("write run: insert group %s: %w", ga.Position, err)
		}
	}

	for _, rec := range rep.Observers {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_observers
			(run_id, group_id, observer_id, kind, dtype, dynamic)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			rep.RunID,
			rec.GroupID,
			rec.ObserverID,
			string(rec.Kind),
			string(rec.DType),
			marshalBool(rec.Dynamic),
		)
		if err != nil {
			return false, fmt.Errorf("write run: insert observer group %d: %w", rec.GroupID, err)
		}
	}

	for seq, ins := range rep.Inserted {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_insertions
			(run_id, seq, observer_node, source, observer_id)
			VALUES (?, ?, ?, ?, ?)
		`,
			rep.RunID,
			seq,
			ins.ObserverNode,
			ins.Source,
			ins.ObserverID,
		)
		if err != nil {
			return false, fmt.Errorf("write run: insert insertion %s: %w", ins.ObserverNode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

// HasRun checks whether a run is already recorded.
func (s *Store) HasRun(ctx context.Context, runID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM runs WHERE id = ?
	`, runID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check run: %w", err)
	}
	return count > 0, nil
}
