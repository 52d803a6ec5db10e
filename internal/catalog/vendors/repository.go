package vendors

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
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	ListActive(ctx context.Context) ([]Vendor, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) error
	SetActive(ctx context.Context, id int64, active bool) error
	ListLinks(ctx context.Context) ([]CategoryLink, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const vendorColumns = `id, name, email, phone, address, allows_cash, allows_disbursement, allows_store_credit, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR email ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM vendors WHERE 1=1`
	countArgs := []interface{}{}
	countN := 0
	if filters.Search != "" {
		countN++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countN) + ` OR email ILIKE $` + strconv.Itoa(countN) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		countN++
		countQuery += ` AND is_active = $` + strconv.Itoa(countN)
		countArgs = append(countArgs, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	vendors, err := scanVendors(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachCategories(ctx, vendors); err != nil {
		return nil, 0, err
	}
	return vendors, total, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Vendor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vendors, err := scanVendors(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id).Scan(
		&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address,
		&v.AllowsCash, &v.AllowsDisbursement, &v.AllowsStoreCredit,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, shared.ErrNotFound
	}
	if err != nil {
		return Vendor{}, err
	}
	list := []Vendor{v}
	if err := r.attachCategories(ctx, list); err != nil {
		return Vendor{}, err
	}
	return list[0], nil
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	now := time.Now()
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Vendor{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO vendors (name, email, phone, address, allows_cash, allows_disbursement, allows_store_credit, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		vendor.Name, vendor.Email, vendor.Phone, vendor.Address,
		vendor.AllowsCash, vendor.AllowsDisbursement, vendor.AllowsStoreCredit,
		vendor.IsActive, now, now,
	).Scan(&vendor.ID)
	if err != nil {
		return Vendor{}, err
	}
	if err := replaceLinks(ctx, tx, vendor.ID, vendor.CategoryIDs); err != nil {
		return Vendor{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Vendor{}, err
	}
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	return vendor, nil
}

func (r *repository) Update(ctx context.Context, id int64, vendor Vendor) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE vendors SET name = $1, email = $2, phone = $3, address = $4,
		 allows_cash = $5, allows_disbursement = $6, allows_store_credit = $7, updated_at = $8
		 WHERE id = $9`,
		vendor.Name, vendor.Email, vendor.Phone, vendor.Address,
		vendor.AllowsCash, vendor.AllowsDisbursement, vendor.AllowsStoreCredit,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if err := replaceLinks(ctx, tx, id, vendor.CategoryIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE vendors SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListLinks(ctx context.Context) ([]CategoryLink, error) {
	rows, err := r.db.Query(ctx, `SELECT vendor_id, category_id FROM vendor_categories ORDER BY vendor_id, category_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []CategoryLink
	for rows.Next() {
		var l CategoryLink
		if err := rows.Scan(&l.VendorID, &l.CategoryID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanVendors(rows pgx.Rows) ([]Vendor, error) {
	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		err := rows.Scan(
			&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address,
			&v.AllowsCash, &v.AllowsDisbursement, &v.AllowsStoreCredit,
			&v.IsActive, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (r *repository) attachCategories(ctx context.Context, vendors []Vendor) error {
	if len(vendors) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(vendors))
	index := make(map[int64]int, len(vendors))
	for i, v := range vendors {
		ids = append(ids, v.ID)
		index[v.ID] = i
	}
	rows, err := r.db.Query(ctx, `SELECT vendor_id, category_id FROM vendor_categories WHERE vendor_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var vendorID, categoryID int64
		if err := rows.Scan(&vendorID, &categoryID); err != nil {
			return err
		}
		if i, ok := index[vendorID]; ok {
			vendors[i].CategoryIDs = append(vendors[i].CategoryIDs, categoryID)
		}
	}
	return rows.Err()
}

func replaceLinks(ctx context.Context, tx pgx.Tx, vendorID int64, categoryIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM vendor_categories WHERE vendor_id = $1`, vendorID); err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO vendor_categories (vendor_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, vendorID, categoryID); err != nil {
			return err
		}
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "email":
		return "email " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
