package items

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-hq/procura/internal/catalog/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	GetMany(ctx context.Context, ids []int64) ([]Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) error
	AdjustStock(ctx context.Context, tx pgx.Tx, id int64, delta int) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const itemColumns = `id, name, category_id, unit_price, current_stock, barcode, make, supplier_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR barcode = $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		query += ` AND category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
	}

	countQuery := `SELECT COUNT(*) FROM items WHERE 1=1`
	countArgs := []interface{}{}
	countN := 0
	if filters.Search != "" {
		countN++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countN) + ` OR barcode = $` + strconv.Itoa(countN) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		countN++
		countQuery += ` AND category_id = $` + strconv.Itoa(countN)
		countArgs = append(countArgs, *filters.CategoryID)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrNotFound
	}
	return item, err
}

func (r *repository) GetMany(ctx context.Context, ids []int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO items (name, category_id, unit_price, current_stock, barcode, make, supplier_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		item.Name, item.CategoryID, item.UnitPrice, item.CurrentStock, item.Barcode, item.Make, item.SupplierID, now, now,
	).Scan(&item.ID)
	if err != nil {
		return Item{}, err
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET name = $1, category_id = $2, unit_price = $3, barcode = $4, make = $5, supplier_id = $6, updated_at = $7 WHERE id = $8`,
		item.Name, item.CategoryID, item.UnitPrice, item.Barcode, item.Make, item.SupplierID, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AdjustStock changes current_stock inside the caller's transaction.
func (r *repository) AdjustStock(ctx context.Context, tx pgx.Tx, id int64, delta int) error {
	tag, err := tx.Exec(ctx, `UPDATE items SET current_stock = current_stock + $1, updated_at = $2 WHERE id = $3`, delta, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.Name, &i.CategoryID, &i.UnitPrice, &i.CurrentStock, &i.Barcode, &i.Make, &i.SupplierID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
