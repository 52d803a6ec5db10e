package purchasing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-hq/procura/internal/platform/db"
)

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Status        string
	VendorID      int64
	RequisitionID int64
	Search        string
}

// Repository provides PostgreSQL backed persistence for submitted orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertOrderItem(ctx context.Context, line OrderItem) error
	InsertOrderService(ctx context.Context, line OrderService) error
	UpdatePOStatus(ctx context.Context, id int64, status POStatus) error
	SetPOApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error
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

const poColumns = `id, reference_no, order_type, payment_type, vendor_id, requisition_id, status, remarks, total, created_by, COALESCE(approved_by, 0), COALESCE(approved_at, 'epoch'::timestamptz), created_at, updated_at`

// GetPO returns the purchase order with its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, []OrderService, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanPO(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, nil, err
	}

	itemRows, err := r.pool.Query(ctx, `SELECT id, order_id, item_id, quantity, unit_price FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, nil, err
	}
	defer itemRows.Close()
	var itemLines []OrderItem
	for itemRows.Next() {
		var line OrderItem
		if err := itemRows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &line.UnitPrice); err != nil {
			return PurchaseOrder{}, nil, nil, err
		}
		itemLines = append(itemLines, line)
	}
	if err := itemRows.Err(); err != nil {
		return PurchaseOrder{}, nil, nil, err
	}

	serviceRows, err := r.pool.Query(ctx, `SELECT id, order_id, service_id, hourly_rate FROM purchase_order_services WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, nil, err
	}
	defer serviceRows.Close()
	var serviceLines []OrderService
	for serviceRows.Next() {
		var line OrderService
		if err := serviceRows.Scan(&line.ID, &line.OrderID, &line.ServiceID, &line.HourlyRate); err != nil {
			return PurchaseOrder{}, nil, nil, err
		}
		serviceLines = append(serviceLines, line)
	}
	return po, itemLines, serviceLines, serviceRows.Err()
}

// ListPOs returns purchase orders matching filters with a total count.
func (r *Repository) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM purchase_orders WHERE 1=1`
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
	if filters.VendorID != 0 {
		appendFilter(`vendor_id = `, filters.VendorID)
	}
	if filters.RequisitionID != 0 {
		appendFilter(`requisition_id = `, filters.RequisitionID)
	}
	if filters.Search != "" {
		appendFilter(`reference_no ILIKE `, "%"+filters.Search+"%")
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

	var list []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, po)
	}
	return list, total, rows.Err()
}

func (t *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	now := time.Now()
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (reference_no, order_type, payment_type, vendor_id, requisition_id, status, remarks, total, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		po.ReferenceNo, po.OrderType, po.PaymentType, po.VendorID, po.RequisitionID, po.Status, po.Remarks, po.Total, po.CreatedBy, now, now,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertOrderItem(ctx context.Context, line OrderItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_items (order_id, item_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`, line.OrderID, line.ItemID, line.Quantity, line.UnitPrice)
	return err
}

func (t *txRepo) InsertOrderService(ctx context.Context, line OrderService) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_services (order_id, service_id, hourly_rate) VALUES ($1, $2, $3)`, line.OrderID, line.ServiceID, line.HourlyRate)
	return err
}

func (t *txRepo) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetPOApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET approved_by = $1, approved_at = $2, updated_at = $2 WHERE id = $3`, approvedBy, approvedAt, id)
	return err
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(
		&po.ID, &po.ReferenceNo, &po.OrderType, &po.PaymentType, &po.VendorID, &po.RequisitionID,
		&po.Status, &po.Remarks, &po.Total, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt,
		&po.CreatedAt, &po.UpdatedAt,
	)
	return po, err
}
