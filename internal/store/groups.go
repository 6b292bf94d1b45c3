package store

import (
	"context"
	"database/sql"
	"fmt"

	"monthcal/internal/model"
)

// GroupRepo stores the visibility groups.
type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Upsert(ctx context.Context, g model.Group) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO groups (id, name, color, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			active = excluded.active`,
		g.ID, g.Name, g.Color, boolToInt(g.Active))
	if err != nil {
		return fmt.Errorf("upserting group %s: %w", g.ID, err)
	}
	return nil
}

func (r *GroupRepo) List(ctx context.Context) ([]model.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, active FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	out := make([]model.Group, 0)
	for rows.Next() {
		var (
			g      model.Group
			active int
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Color, &active); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.Active = active != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
