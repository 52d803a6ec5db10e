package categories

// CategoryType partitions categories between goods and services.
type CategoryType string

const (
	TypeItems    CategoryType = "Items"
	TypeServices CategoryType = "Services"
)

// Valid reports whether the type is one of the two known variants.
func (t CategoryType) Valid() bool {
	return t == TypeItems || t == TypeServices
}

// Category is immutable reference data grouping items or services.
type Category struct {
	ID   int64        `json:"id"`
	Name string       `json:"name"`
	Type CategoryType `json:"type"`
}
