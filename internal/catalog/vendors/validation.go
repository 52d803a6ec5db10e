package vendors

import (
	"errors"
	"strings"
)

func (s *Service) validate(v Vendor) error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("vendor name is required")
	}
	if strings.TrimSpace(v.Email) == "" {
		return errors.New("vendor email is required")
	}
	if !strings.Contains(v.Email, "@") {
		return errors.New("vendor email is malformed")
	}
	if !v.AllowsCash && !v.AllowsDisbursement && !v.AllowsStoreCredit {
		return errors.New("vendor must accept at least one payment method")
	}
	return nil
}
