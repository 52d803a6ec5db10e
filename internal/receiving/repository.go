package receiving

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-hq/procura/internal/catalog/items"
	"github.com/procura-hq/procura/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for receiving.
type Repository struct {
	pool  *pgxpool.Pool
	items items.Repository
}

// NewRepository constructs a repository. The items repository performs
// stock adjustments inside receiving transactions.
func NewRepository(pool *pgxpool.Pool, itemRepo items.Repository) *Repository {
	return &Repository{pool: pool, items: itemRepo}
}

type txRepo struct {
	tx    pgx.Tx
	items items.Repository
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, items: r.items})
	})
}

const deliveryColumns = `id, number, order_id, requisition_id, status, notes, received_by, COALESCE(posted_at, 'epoch'::timestamptz), created_at, updated_at`

// GetDelivery returns the delivery with its lines.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, nil, ErrNotFound
		}
		return Delivery{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, delivery_id, item_id, quantity FROM delivery_lines WHERE delivery_id = $1 ORDER BY id`, id)
	if err != nil {
		return Delivery{}, nil, err
	}
	defer rows.Close()
	var lines []DeliveryLine
	for rows.Next() {
		var line DeliveryLine
		if err := rows.Scan(&line.ID, &line.DeliveryID, &line.ItemID, &line.Quantity); err != nil {
			return Delivery{}, nil, err
		}
		lines = append(lines, line)
	}
	return d, lines, rows.Err()
}

// ListDeliveries returns deliveries matching filters with a total count.
func (r *Repository) ListDeliveries(ctx context.Context, limit, offset int, filters ListFilters) ([]Delivery, int, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM deliveries WHERE 1=1`
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
	if filters.OrderID != 0 {
		appendFilter(`order_id = `, filters.OrderID)
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

	var list []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, d)
	}
	return list, total, rows.Err()
}

// PostedQuantities sums posted delivery quantities per item for an order.
func (r *Repository) PostedQuantities(ctx context.Context, orderID int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.item_id, SUM(l.quantity)
		 FROM delivery_lines l
		 JOIN deliveries d ON d.id = l.delivery_id
		 WHERE d.order_id = $1 AND d.status = $2
		 GROUP BY l.item_id`,
		orderID, DeliveryStatusPosted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posted := make(map[int64]int)
	for rows.Next() {
		var itemID int64
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		posted[itemID] = qty
	}
	return posted, rows.Err()
}

// GetReturn returns the return with its lines.
func (r *Repository) GetReturn(ctx context.Context, id int64) (Return, []ReturnLine, error) {
	var ret Return
	err := r.pool.QueryRow(ctx, `SELECT id, number, delivery_id, reason, created_by, created_at FROM delivery_returns WHERE id = $1`, id).
		Scan(&ret.ID, &ret.Number, &ret.DeliveryID, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, nil, ErrNotFound
		}
		return Return{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, return_id, item_id, quantity FROM return_lines WHERE return_id = $1 ORDER BY id`, id)
	if err != nil {
		return Return{}, nil, err
	}
	defer rows.Close()
	var lines []ReturnLine
	for rows.Next() {
		var line ReturnLine
		if err := rows.Scan(&line.ID, &line.ReturnID, &line.ItemID, &line.Quantity); err != nil {
			return Return{}, nil, err
		}
		lines = append(lines, line)
	}
	return ret, lines, rows.Err()
}

// GetRework loads a rework by ID.
func (r *Repository) GetRework(ctx context.Context, id int64) (Rework, error) {
	var rw Rework
	err := r.pool.QueryRow(ctx, `SELECT id, number, return_id, status, notes, created_at, updated_at FROM reworks WHERE id = $1`, id).
		Scan(&rw.ID, &rw.Number, &rw.ReturnID, &rw.Status, &rw.Notes, &rw.CreatedAt, &rw.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rework{}, ErrNotFound
	}
	return rw, err
}

func (t *txRepo) CreateDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx,
		`INSERT INTO deliveries (number, order_id, requisition_id, status, notes, received_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		d.Number, d.OrderID, d.RequisitionID, d.Status, d.Notes, d.ReceivedBy, now, now,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertDeliveryLine(ctx context.Context, line DeliveryLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO delivery_lines (delivery_id, item_id, quantity) VALUES ($1, $2, $3)`, line.DeliveryID, line.ItemID, line.Quantity)
	return err
}

func (t *txRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus, postedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE deliveries SET status = $1, posted_at = $2, updated_at = $2 WHERE id = $3`, status, postedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) CreateReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO delivery_returns (number, delivery_id, reason, created_by, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ret.Number, ret.DeliveryID, ret.Reason, ret.CreatedBy, time.Now(),
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReturnLine(ctx context.Context, line ReturnLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO return_lines (return_id, item_id, quantity) VALUES ($1, $2, $3)`, line.ReturnID, line.ItemID, line.Quantity)
	return err
}

func (t *txRepo) CreateRework(ctx context.Context, rw Rework) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx,
		`INSERT INTO reworks (number, return_id, status, notes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rw.Number, rw.ReturnID, rw.Status, rw.Notes, now, now,
	).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateReworkStatus(ctx context.Context, id int64, status ReworkStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE reworks SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AdjustStock(ctx context.Context, itemID int64, delta int) error {
	return t.items.AdjustStock(ctx, t.tx, itemID, delta)
}

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.Number, &d.OrderID, &d.RequisitionID, &d.Status, &d.Notes, &d.ReceivedBy, &d.PostedAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
