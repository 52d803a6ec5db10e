package categories

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) ListAll(ctx context.Context) ([]Category, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	created, err := s.repo.Create(ctx, category)
	if err != nil {
		return Category{}, err
	}
	s.notifyChanged(ctx)
	return created, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}
