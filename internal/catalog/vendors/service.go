package vendors

import (
	"context"

	"github.com/procura-hq/procura/internal/catalog/shared"
)

type Service struct {
	repo      Repository
	onChanged func(context.Context)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetChangeListener registers a callback fired after any write, used to
// invalidate derived caches such as the vendor-type index.
func (s *Service) SetChangeListener(fn func(context.Context)) {
	s.onChanged = fn
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.onChanged != nil {
		s.onChanged(ctx)
	}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) ListActive(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	if err := s.validate(vendor); err != nil {
		return Vendor{}, err
	}
	vendor.IsActive = true
	created, err := s.repo.Create(ctx, vendor)
	if err != nil {
		return Vendor{}, err
	}
	s.notifyChanged(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(vendor); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, vendor); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

func (s *Service) ListLinks(ctx context.Context) ([]CategoryLink, error) {
	return s.repo.ListLinks(ctx)
}
