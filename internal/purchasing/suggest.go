package purchasing

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/procura-hq/procura/internal/catalog/vendors"
)

// Suggestion scores one vendor against the categories represented by the
// selected requisition lines.
type Suggestion struct {
	Vendor             vendors.Vendor `json:"vendor"`
	VendorType         VendorType     `json:"vendor_type"`
	MatchPercentage    int            `json:"match_percentage"`
	MatchingCategories []int64        `json:"matching_categories"`
	FullMatch          bool           `json:"full_match"`
	BestMatch          bool           `json:"best_match"`
}

// FilterVendorsByOrderType keeps vendors whose derived type can serve the
// order type and orders them pure-match first, mixed second.
func FilterVendorsByOrderType(list []vendors.Vendor, index TypeIndex, orderType OrderType) []vendors.Vendor {
	filtered := make([]vendors.Vendor, 0, len(list))
	for _, v := range list {
		if !v.IsActive {
			continue
		}
		if eligible(index.Of(v.ID), orderType) {
			filtered = append(filtered, v)
		}
	}
	collator := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(filtered, func(i, j int) bool {
		ri := preferenceRank(index.Of(filtered[i].ID), orderType)
		rj := preferenceRank(index.Of(filtered[j].ID), orderType)
		if ri != rj {
			return ri < rj
		}
		return collator.CompareString(filtered[i].Name, filtered[j].Name) < 0
	})
	return filtered
}

// SuggestVendors ranks vendors by the share of selected-line categories
// they are linked to. Only vendors eligible for the order type are scored;
// the top-ranked 100% match is flagged as best match. An empty selection
// yields an empty result.
func SuggestVendors(selectedCategoryIDs []int64, list []vendors.Vendor, index TypeIndex, links []vendors.CategoryLink, orderType OrderType) []Suggestion {
	wanted := distinct(selectedCategoryIDs)
	if len(wanted) == 0 {
		return nil
	}

	linksByVendor := make(map[int64]map[int64]struct{})
	for _, link := range links {
		set := linksByVendor[link.VendorID]
		if set == nil {
			set = make(map[int64]struct{})
			linksByVendor[link.VendorID] = set
		}
		set[link.CategoryID] = struct{}{}
	}

	suggestions := make([]Suggestion, 0, len(list))
	for _, v := range list {
		if !v.IsActive {
			continue
		}
		vendorType := index.Of(v.ID)
		if !eligible(vendorType, orderType) {
			continue
		}
		var matching []int64
		for _, categoryID := range wanted {
			if _, ok := linksByVendor[v.ID][categoryID]; ok {
				matching = append(matching, categoryID)
			}
		}
		pct := int(math.Round(float64(len(matching)) / float64(len(wanted)) * 100))
		suggestions = append(suggestions, Suggestion{
			Vendor:             v,
			VendorType:         vendorType,
			MatchPercentage:    pct,
			MatchingCategories: matching,
			FullMatch:          pct == 100,
		})
	}

	collator := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].MatchPercentage != suggestions[j].MatchPercentage {
			return suggestions[i].MatchPercentage > suggestions[j].MatchPercentage
		}
		ri := preferenceRank(suggestions[i].VendorType, orderType)
		rj := preferenceRank(suggestions[j].VendorType, orderType)
		if ri != rj {
			return ri < rj
		}
		return collator.CompareString(suggestions[i].Vendor.Name, suggestions[j].Vendor.Name) < 0
	})

	if len(suggestions) > 0 && suggestions[0].FullMatch {
		suggestions[0].BestMatch = true
	}
	return suggestions
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
