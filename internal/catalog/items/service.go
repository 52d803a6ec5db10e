package items

import (
	"context"
	"errors"
	"strings"

	"github.com/procura-hq/procura/internal/catalog/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.GetMany(ctx, ids)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

func (s *Service) Update(ctx context.Context, id int64, item Item) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validate(item); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, item)
}

func validate(i Item) error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("item name is required")
	}
	if i.CategoryID <= 0 {
		return errors.New("item category is required")
	}
	if i.UnitPrice < 0 {
		return errors.New("item unit price cannot be negative")
	}
	return nil
}
