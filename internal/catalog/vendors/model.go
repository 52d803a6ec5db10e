package vendors

import "time"

// Vendor represents an external supplier of items and/or services.
type Vendor struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Address            string    `json:"address"`
	AllowsCash         bool      `json:"allows_cash"`
	AllowsDisbursement bool      `json:"allows_disbursement"`
	AllowsStoreCredit  bool      `json:"allows_store_credit"`
	IsActive           bool      `json:"is_active"`
	CategoryIDs        []int64   `json:"category_ids"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CategoryLink is a row in the vendor_categories join table.
type CategoryLink struct {
	VendorID   int64 `json:"vendor_id"`
	CategoryID int64 `json:"category_id"`
}
