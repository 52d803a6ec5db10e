package services

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
	List(ctx context.Context, filters shared.ListFilters) ([]Service, int, error)
	Get(ctx context.Context, id int64) (Service, error)
	GetMany(ctx context.Context, ids []int64) ([]Service, error)
	Create(ctx context.Context, svc Service) (Service, error)
	Update(ctx context.Context, id int64, svc Service) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const serviceColumns = `id, name, description, hourly_rate, category_id, vendor_id, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Service, int, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.VendorID != nil {
		argCount++
		query += ` AND vendor_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.VendorID)
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM services WHERE 1=1`
	countArgs := []interface{}{}
	countN := 0
	if filters.Search != "" {
		countN++
		countQuery += ` AND name ILIKE $` + strconv.Itoa(countN)
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.VendorID != nil {
		countN++
		countQuery += ` AND vendor_id = $` + strconv.Itoa(countN)
		countArgs = append(countArgs, *filters.VendorID)
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

	var list []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, svc)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Service, error) {
	row := r.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, shared.ErrNotFound
	}
	return svc, err
}

func (r *repository) GetMany(ctx context.Context, ids []int64) ([]Service, error) {
	rows, err := r.db.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, svc)
	}
	return list, rows.Err()
}

func (r *repository) Create(ctx context.Context, svc Service) (Service, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO services (name, description, hourly_rate, category_id, vendor_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		svc.Name, svc.Description, svc.HourlyRate, svc.CategoryID, svc.VendorID, svc.IsActive, now, now,
	).Scan(&svc.ID)
	if err != nil {
		return Service{}, err
	}
	svc.CreatedAt = now
	svc.UpdatedAt = now
	return svc, nil
}

func (r *repository) Update(ctx context.Context, id int64, svc Service) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE services SET name = $1, description = $2, hourly_rate = $3, category_id = $4, vendor_id = $5, is_active = $6, updated_at = $7 WHERE id = $8`,
		svc.Name, svc.Description, svc.HourlyRate, svc.CategoryID, svc.VendorID, svc.IsActive, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanService(row pgx.Row) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.HourlyRate, &s.CategoryID, &s.VendorID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
