package items

import "time"

// Item is a purchasable good tracked in stock.
type Item struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CategoryID   int64     `json:"category_id"`
	UnitPrice    float64   `json:"unit_price"`
	CurrentStock int       `json:"current_stock"`
	Barcode      string    `json:"barcode,omitempty"`
	Make         string    `json:"make,omitempty"`
	SupplierID   int64     `json:"supplier_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
