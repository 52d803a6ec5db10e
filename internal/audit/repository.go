package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit_logs table written by shared.AuditLogger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TimelineWindow fetches one window of events, newest first.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	appendFilter := func(clause string, value interface{}) {
		argCount++
		query += ` AND ` + clause + `$` + strconv.Itoa(argCount)
		args = append(args, value)
	}
	if filters.Entity != "" {
		appendFilter(`entity = `, filters.Entity)
	}
	if filters.Action != "" {
		appendFilter(`action = `, filters.Action)
	}
	if filters.ActorID != 0 {
		appendFilter(`actor_id = `, filters.ActorID)
	}
	if !filters.From.IsZero() {
		appendFilter(`occurred_at >= `, filters.From)
	}
	if !filters.To.IsZero() {
		appendFilter(`occurred_at <= `, filters.To)
	}

	argCount++
	query += ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
