package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"monthcal/internal/model"
)

// RecordRepo stores model.Record rows.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Upsert inserts or replaces records. Records without an id get a new uuid;
// records with invalid timestamps are rejected.
func (r *RecordRepo) Upsert(ctx context.Context, records []model.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertRecords(ctx, tx, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// ReplaceGroup atomically swaps every record of groupID for records.
func (r *RecordRepo) ReplaceGroup(ctx context.Context, groupID string, records []model.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clearing group %s: %w", groupID, err)
	}
	if err := upsertRecords(ctx, tx, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group %s: %w", groupID, err)
	}
	return nil
}

func upsertRecords(ctx context.Context, tx *sql.Tx, records []model.Record) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(id, group_id, kind, title, started_at, ended_at, group_color, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			kind = excluded.kind,
			title = excluded.title,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			group_color = excluded.group_color,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing record upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if !rec.StartedAt.Valid() || !rec.EndedAt.Valid() {
			return fmt.Errorf("record %q: invalid timestamp", rec.ID)
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			rec.GroupID,
			rec.Kind.String(),
			rec.Title,
			int64(rec.StartedAt),
			int64(rec.EndedAt),
			rec.GroupColor,
			now,
		); err != nil {
			return fmt.Errorf("upserting record %s: %w", id, err)
		}
	}
	return nil
}

func (r *RecordRepo) GetByID(ctx context.Context, id string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, group_id, kind, title, started_at, ended_at, group_color
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListBetween returns records overlapping [from, to], ordered by start then id.
func (r *RecordRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, group_id, kind, title, started_at, ended_at, group_color
		FROM records
		WHERE ended_at >= ? AND started_at <= ?
		ORDER BY started_at, id`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	out := make([]model.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return out, nil
}

func (r *RecordRepo) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE group_id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("deleting records of %s: %w", groupID, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var (
		rec        model.Record
		kind       string
		start, end int64
	)
	if err := s.Scan(&rec.ID, &rec.GroupID, &kind, &rec.Title, &start, &end, &rec.GroupColor); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	k, err := model.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Kind = k
	rec.StartedAt = model.Timestamp(start)
	rec.EndedAt = model.Timestamp(end)
	return &rec, nil
}
