package purchasing

import (
	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/vendors"
)

// ComputeVendorType classifies a vendor by the categories it is linked to.
// A vendor linked to both Items-typed and Services-typed categories is
// Mixed; a vendor with no links at all is Unclassified rather than being
// silently treated as an item vendor.
func ComputeVendorType(vendorID int64, links []vendors.CategoryLink, cats []categories.Category) VendorType {
	typeByCategory := make(map[int64]categories.CategoryType, len(cats))
	for _, c := range cats {
		typeByCategory[c.ID] = c.Type
	}

	var hasItems, hasServices, linked bool
	for _, link := range links {
		if link.VendorID != vendorID {
			continue
		}
		linked = true
		switch typeByCategory[link.CategoryID] {
		case categories.TypeItems:
			hasItems = true
		case categories.TypeServices:
			hasServices = true
		}
	}

	switch {
	case hasItems && hasServices:
		return VendorTypeMixed
	case hasServices:
		return VendorTypeService
	case hasItems:
		return VendorTypeItem
	case linked:
		// Linked only to categories of unknown type; treat as item vendor,
		// matching the permissive default for goods.
		return VendorTypeItem
	default:
		return VendorTypeUnclassified
	}
}

// TypeIndex memoizes vendorID -> VendorType for one catalog snapshot, so
// ranking does not rescan the link table per vendor.
type TypeIndex map[int64]VendorType

// BuildTypeIndex computes the index for every vendor present in links.
func BuildTypeIndex(links []vendors.CategoryLink, cats []categories.Category) TypeIndex {
	typeByCategory := make(map[int64]categories.CategoryType, len(cats))
	for _, c := range cats {
		typeByCategory[c.ID] = c.Type
	}

	type flags struct{ items, services bool }
	byVendor := make(map[int64]*flags)
	for _, link := range links {
		f := byVendor[link.VendorID]
		if f == nil {
			f = &flags{}
			byVendor[link.VendorID] = f
		}
		switch typeByCategory[link.CategoryID] {
		case categories.TypeItems:
			f.items = true
		case categories.TypeServices:
			f.services = true
		}
	}

	index := make(TypeIndex, len(byVendor))
	for vendorID, f := range byVendor {
		switch {
		case f.items && f.services:
			index[vendorID] = VendorTypeMixed
		case f.services:
			index[vendorID] = VendorTypeService
		default:
			index[vendorID] = VendorTypeItem
		}
	}
	return index
}

// Of returns the vendor's derived type, Unclassified when the vendor has
// no category links.
func (idx TypeIndex) Of(vendorID int64) VendorType {
	if t, ok := idx[vendorID]; ok {
		return t
	}
	return VendorTypeUnclassified
}

// preferenceRank orders vendor types for a given order type: pure matches
// first, then mixed, then the opposite domain. Unclassified always sorts
// last.
func preferenceRank(t VendorType, orderType OrderType) int {
	if orderType == OrderTypeServices {
		switch t {
		case VendorTypeService:
			return 1
		case VendorTypeMixed:
			return 2
		case VendorTypeItem:
			return 3
		}
		return 4
	}
	switch t {
	case VendorTypeItem:
		return 1
	case VendorTypeMixed:
		return 2
	case VendorTypeService:
		return 3
	}
	return 4
}

// eligible reports whether a vendor type may serve an order type.
func eligible(t VendorType, orderType OrderType) bool {
	if t == VendorTypeMixed {
		return true
	}
	if orderType == OrderTypeServices {
		return t == VendorTypeService
	}
	return t == VendorTypeItem
}
