package shared

// ListFilters represents standard list filters for catalog endpoints.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	IsActive *bool

	// Entity specific filters
	CategoryID *int64
	VendorID   *int64
}
