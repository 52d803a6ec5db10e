package services

import "time"

// Service is a billable unit of work offered by a vendor.
type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	HourlyRate  float64   `json:"hourly_rate"`
	CategoryID  int64     `json:"category_id"`
	VendorID    int64     `json:"vendor_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
