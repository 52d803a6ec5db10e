package requisitions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-hq/procura/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const requisitionColumns = `id, number, status, priority, requestor_id, notes, remarks, created_at, updated_at`

// Get returns the requisition with its item and service lines.
func (r *Repository) Get(ctx context.Context, id int64) (Requisition, []ItemLine, []ServiceLine, error) {
	var req Requisition
	err := r.pool.QueryRow(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id).Scan(
		&req.ID, &req.Number, &req.Status, &req.Priority, &req.RequestorID, &req.Notes, &req.Remarks, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, nil, nil, ErrNotFound
		}
		return Requisition{}, nil, nil, err
	}

	itemRows, err := r.pool.Query(ctx, `SELECT id, requisition_id, item_id, quantity FROM requisition_items WHERE requisition_id = $1 ORDER BY id`, id)
	if err != nil {
		return Requisition{}, nil, nil, err
	}
	defer itemRows.Close()
	var itemLines []ItemLine
	for itemRows.Next() {
		var line ItemLine
		if err := itemRows.Scan(&line.ID, &line.RequisitionID, &line.ItemID, &line.Quantity); err != nil {
			return Requisition{}, nil, nil, err
		}
		itemLines = append(itemLines, line)
	}
	if err := itemRows.Err(); err != nil {
		return Requisition{}, nil, nil, err
	}

	serviceRows, err := r.pool.Query(ctx, `SELECT id, requisition_id, service_id, COALESCE(item_id, 0) FROM requisition_services WHERE requisition_id = $1 ORDER BY id`, id)
	if err != nil {
		return Requisition{}, nil, nil, err
	}
	defer serviceRows.Close()
	var serviceLines []ServiceLine
	for serviceRows.Next() {
		var line ServiceLine
		if err := serviceRows.Scan(&line.ID, &line.RequisitionID, &line.ServiceID, &line.ItemID); err != nil {
			return Requisition{}, nil, nil, err
		}
		serviceLines = append(serviceLines, line)
	}
	return req, itemLines, serviceLines, serviceRows.Err()
}

// List returns requisitions matching filters with a total count.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM requisitions WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	appendFilter := func(clause string, value interface{}) {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		query += ` AND ` + clause + placeholder
		countQuery += ` AND ` + clause + placeholder
		args = append(args, value)
	}
	if filters.Status != "" {
		appendFilter(`status = `, filters.Status)
	}
	if filters.Priority != "" {
		appendFilter(`priority = `, filters.Priority)
	}
	if filters.RequestorID != 0 {
		appendFilter(`requestor_id = `, filters.RequestorID)
	}
	if filters.Search != "" {
		appendFilter(`number ILIKE `, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Requisition
	for rows.Next() {
		var req Requisition
		if err := rows.Scan(&req.ID, &req.Number, &req.Status, &req.Priority, &req.RequestorID, &req.Notes, &req.Remarks, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, req)
	}
	return list, total, rows.Err()
}

func (t *txRepo) Create(ctx context.Context, req Requisition) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx,
		`INSERT INTO requisitions (number, status, priority, requestor_id, notes, remarks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, '', $6, $7) RETURNING id`,
		req.Number, req.Status, req.Priority, req.RequestorID, req.Notes, now, now,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItemLine(ctx context.Context, line ItemLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO requisition_items (requisition_id, item_id, quantity) VALUES ($1, $2, $3)`, line.RequisitionID, line.ItemID, line.Quantity)
	return err
}

func (t *txRepo) InsertServiceLine(ctx context.Context, line ServiceLine) error {
	var itemID interface{}
	if line.ItemID != 0 {
		itemID = line.ItemID
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO requisition_services (requisition_id, service_id, item_id) VALUES ($1, $2, $3)`, line.RequisitionID, line.ServiceID, itemID)
	return err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE requisitions SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetRemarks(ctx context.Context, id int64, remarks string) error {
	_, err := t.tx.Exec(ctx, `UPDATE requisitions SET remarks = $1, updated_at = $2 WHERE id = $3`, remarks, time.Now(), id)
	return err
}
