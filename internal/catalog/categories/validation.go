package categories

import (
	"errors"
	"strings"
)

func (s *Service) validate(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	if !c.Type.Valid() {
		return errors.New("category type must be Items or Services")
	}
	return nil
}
