package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yangwenmai/readtrack/internal/model"
)

const readStateColumns = `doc_key, domain, slug, status, last_read_at, completed_at, updated_at`

// GetReadState returns the record for docKey, or nil when the document has
// never been opened.
func (s *Store) GetReadState(ctx context.Context, docKey string) (*model.ReadState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+readStateColumns+` FROM read_state WHERE doc_key = ?`, docKey)
	rs, err := scanReadState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get read state %s: %w", docKey, err)
	}
	return rs, nil
}

// UpdateReadState reads the current record for docKey and upserts the record
// returned by apply, all inside one transaction. A concurrent writer can
// therefore never slip in between the read and the write.
func (s *Store) UpdateReadState(ctx context.Context, docKey string, apply ReadStateApplyFunc) (model.ReadState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ReadState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+readStateColumns+` FROM read_state WHERE doc_key = ?`, docKey)
	cur, err := scanReadState(row)
	if errors.Is(err, sql.ErrNoRows) {
		cur = nil
	} else if err != nil {
		return model.ReadState{}, fmt.Errorf("read %s: %w", docKey, err)
	}

	next := apply(cur)
	if next.DocKey != docKey {
		return model.ReadState{}, fmt.Errorf("%w: apply changed doc key %q to %q", model.ErrValidation, docKey, next.DocKey)
	}
	if !next.Status.Valid() {
		return model.ReadState{}, fmt.Errorf("%w: invalid status %q", model.ErrValidation, next.Status)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO read_state (`+readStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			status       = excluded.status,
			last_read_at = excluded.last_read_at,
			completed_at = excluded.completed_at,
			updated_at   = excluded.updated_at`,
		next.DocKey, next.Domain, next.Slug, next.Status,
		next.LastReadAt, next.CompletedAt, next.UpdatedAt,
	); err != nil {
		return model.ReadState{}, fmt.Errorf("upsert %s: %w", docKey, err)
	}

	if err := tx.Commit(); err != nil {
		return model.ReadState{}, fmt.Errorf("commit %s: %w", docKey, err)
	}
	s.changed(TableReadState)
	return next, nil
}

// ListReadStates returns every read state in domain, most recently updated first.
func (s *Store) ListReadStates(ctx context.Context, domain string) ([]model.ReadState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readStateColumns+` FROM read_state WHERE domain = ? ORDER BY updated_at DESC, doc_key ASC`, domain)
	if err != nil {
		return nil, fmt.Errorf("list read states: %w", err)
	}
	defer rows.Close()

	var states []model.ReadState
	for rows.Next() {
		rs, err := scanReadState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *rs)
	}
	return states, rows.Err()
}

// CountReadStates returns per-status counts of recorded documents in domain.
// Documents never opened have no row and are not counted as unread here.
func (s *Store) CountReadStates(ctx context.Context, domain string) (model.StatusCounts, error) {
	var counts model.StatusCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM read_state WHERE domain = ?`,
		model.StatusUnread, model.StatusInProgress, model.StatusDone, domain)
	if err := row.Scan(&counts.Unread, &counts.InProgress, &counts.Done); err != nil {
		return counts, fmt.Errorf("count read states: %w", err)
	}
	return counts, nil
}

func scanReadState(row scanner) (*model.ReadState, error) {
	var rs model.ReadState
	err := row.Scan(&rs.DocKey, &rs.Domain, &rs.Slug, &rs.Status, &rs.LastReadAt, &rs.CompletedAt, &rs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}
