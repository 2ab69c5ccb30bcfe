// rank.go - Pure, network-free ordering of result lists for display.
//
// Result slices coming out of the pipeline are never mutated; sorting always
// returns a fresh slice so the session's stored results stay in the model's
// original "best match" order.

package rank

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/snapfind/product_scout_gemini/internal/model"
)

// Shop sort modes
const (
	ShopSortChances  = "chances" // descending availability score
	ShopSortRating   = "rating"
	ShopSortDistance = "distance"
)

// Online store sort modes
const (
	StoreSortPriceAsc  = "price_asc"
	StoreSortPriceDesc = "price_desc"
	StoreSortBestMatch = "best_match"
)

// ParsePrice converts a free-text price string to a comparable float by
// stripping every non-numeric, non-dot character. Unparsable prices (empty,
// "Free", "Contact seller") sort to the end by becoming +Inf.
func ParsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return math.Inf(1)
	}
	return v
}

// ParseDistance applies the same policy to locale-formatted distance strings
// like "1.2 km"; unparsable distances sort last.
func ParseDistance(s string) float64 {
	return ParsePrice(s)
}

// SortShops returns a copy of shops ordered by the given mode. Unknown modes
// leave the original order. Sorting is stable so equal keys keep the model's
// ranking.
func SortShops(shops []model.Shop, mode string) []model.Shop {
	sorted := make([]model.Shop, len(shops))
	copy(sorted, shops)

	switch mode {
	case ShopSortChances:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].AvailabilityScore > sorted[j].AvailabilityScore
		})
	case ShopSortRating:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Rating > sorted[j].Rating
		})
	case ShopSortDistance:
		sort.SliceStable(sorted, func(i, j int) bool {
			return ParseDistance(sorted[i].Distance) < ParseDistance(sorted[j].Distance)
		})
	}
	return sorted
}

// SortStores returns a copy of stores ordered by the given mode. Best-match
// (or any unknown mode) keeps the original order.
func SortStores(stores []model.OnlineStore, mode string) []model.OnlineStore {
	sorted := make([]model.OnlineStore, len(stores))
	copy(sorted, stores)

	switch mode {
	case StoreSortPriceAsc:
		sort.SliceStable(sorted, func(i, j int) bool {
			return ParsePrice(sorted[i].Price) < ParsePrice(sorted[j].Price)
		})
	case StoreSortPriceDesc:
		sort.SliceStable(sorted, func(i, j int) bool {
			pi, pj := ParsePrice(sorted[i].Price), ParsePrice(sorted[j].Price)
			// Unparsable prices stay at the end in both directions.
			if math.IsInf(pi, 1) || math.IsInf(pj, 1) {
				return pj > pi
			}
			return pi > pj
		})
	}
	return sorted
}
