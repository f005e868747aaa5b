package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("store: run not found")

// RunRecord is one persisted run row.
type RunRecord struct {
	ID          string
	GraphHash   string
	Training    bool
	ToolVersion string
	NodesBefore int
	NodesAfter  int
	CreatedAt   time.Time
}

// GetRun reads a single run record by ID.
// Returns ErrNotFound if no such run is recorded.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph_hash, training, tool_version, nodes_before, nodes_after, created_at
		FROM runs
		WHERE id = ?
	`, runID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

// ListRuns reads run records, newest first. The created_at column is
// RFC 3339 UTC, so lexical DESC is chronological DESC; ties break on id
// for determinism. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, graph_hash, training, tool_version, nodes_before, nodes_after, created_at
		FROM runs
		ORDER BY created_at DESC, id ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// ReadGroups reads a run's group assignments in registration order.
func (s *Store) ReadGroups(ctx context.Context, runID string) ([]prepare.GroupAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, group_id, observer_id
		FROM run_groups
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	defer rows.Close()

	var groups []prepare.GroupAssignment
	for rows.Next() {
		var posStr string
		var ga prepare.GroupAssignment
		if err := rows.Scan(&posStr, &ga.GroupID, &ga.ObserverID); err != nil {
			return nil, fmt.Errorf("read groups: scan: %w", err)
		}
		ga.Position, err = unmarshalPosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("read groups: %w", err)
		}
		groups = append(groups, ga)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	return groups, nil
}

// ReadObservers reads a run's materialized instances ordered by group id.
func (s *Store) ReadObservers(ctx context.Context, runID string) ([]prepare.ObserverRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, observer_id, kind, dtype, dynamic
		FROM run_observers
		WHERE run_id = ?
		ORDER BY group_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read observers: %w", err)
	}
	defer rows.Close()

	var records []prepare.ObserverRecord
	for rows.Next() {
		var rec prepare.ObserverRecord
		var kind, dtype string
		var dynamic int
		if err := rows.Scan(&rec.GroupID, &rec.ObserverID, &kind, &dtype, &dynamic); err != nil {
			return nil, fmt.Errorf("read observers: scan: %w", err)
		}
		rec.Kind = ir.ObserverKind(kind)
		rec.DType = ir.DType(dtype)
		rec.Dynamic = unmarshalBool(dynamic)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observers: %w", err)
	}
	return records, nil
}

// ReadInsertions reads a run's inserted observer nodes in insertion order.
func (s *Store) ReadInsertions(ctx context.Context, runID string) ([]prepare.Insertion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observer_node, source, observer_id
		FROM run_insertions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read insertions: %w", err)
	}
	defer rows.Close()

	var insertions []prepare.Insertion
	for rows.Next() {
		var ins prepare.Insertion
		if err := rows.Scan(&ins.ObserverNode, &ins.Source, &ins.ObserverID); err != nil {
			return nil, fmt.Errorf("read insertions: scan: %w", err)
		}
		insertions = append(insertions, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read insertions: %w", err)
	}
	return insertions, nil
}

// ReadReport reassembles the full report persisted for a run.
// Returns ErrNotFound if no such run is recorded.
func (s *Store) ReadReport(ctx context.Context, runID string) (*prepare.Report, error) {
	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rep := &prepare.Report{
		RunID:       rec.ID,
		GraphHash:   rec.GraphHash,
		Training:    rec.Training,
		NodesBefore: rec.NodesBefore,
		NodesAfter:  rec.NodesAfter,
	}
	if rep.Groups, err = s.ReadGroups(ctx, runID); err != nil {
		return nil, err
	}
	if rep.Observers, err = s.ReadObservers(ctx, runID); err != nil {
		return nil, err
	}
	if rep.Inserted, err = s.ReadInsertions(ctx, runID); err != nil {
		return nil, err
	}
	return rep, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var training int
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.GraphHash, &training, &rec.ToolVersion,
		&rec.NodesBefore, &rec.NodesAfter, &createdAt); err != nil {
		return nil, err
	}
	rec.Training = unmarshalBool(training)

	t, err := unmarshalTime(createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = t
	return &rec, nil
}
