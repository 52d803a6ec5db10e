package services

import (
	"context"
	"errors"
	"strings"

	"github.com/procura-hq/procura/internal/catalog/shared"
)

// Manager wraps business rules over the service catalog. The entity itself
// is named Service, so the application layer takes a different name.
type Manager struct {
	repo Repository
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

func (m *Manager) List(ctx context.Context, filters shared.ListFilters) ([]Service, int, error) {
	return m.repo.List(ctx, filters)
}

func (m *Manager) Get(ctx context.Context, id int64) (Service, error) {
	if id <= 0 {
		return Service{}, shared.ErrInvalidID
	}
	return m.repo.Get(ctx, id)
}

func (m *Manager) GetMany(ctx context.Context, ids []int64) ([]Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return m.repo.GetMany(ctx, ids)
}

func (m *Manager) Create(ctx context.Context, svc Service) (Service, error) {
	if err := validate(svc); err != nil {
		return Service{}, err
	}
	svc.IsActive = true
	return m.repo.Create(ctx, svc)
}

func (m *Manager) Update(ctx context.Context, id int64, svc Service) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validate(svc); err != nil {
		return err
	}
	return m.repo.Update(ctx, id, svc)
}

func validate(s Service) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("service name is required")
	}
	if s.CategoryID <= 0 {
		return errors.New("service category is required")
	}
	if s.HourlyRate < 0 {
		return errors.New("service hourly rate cannot be negative")
	}
	return nil
}
