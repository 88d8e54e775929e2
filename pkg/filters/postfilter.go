package filters

import (
	"github.com/noshhq/nosh/pkg/models"
)

// PostFilterResult is the output of ApplyPostFilters.
type PostFilterResult struct {
	Filtered []models.Place
	Applied  models.AppliedFilters
	Relaxed  models.RelaxedFilters
}

// ApplyPostFilters applies open-state, price and rating filters in order,
// with an auto-relax policy: if a step would reduce a non-empty set to
// empty, that single filter is dropped (earlier ones stay enforced), the
// relaxation is recorded, and the applied field is cleared. Unknown
// values always pass (conservative keep). Pure function.
func ApplyPostFilters(results []models.Place, final models.FinalFilters) PostFilterResult {
	out := PostFilterResult{Filtered: results}

	if final.OpenState != nil {
		next := filter(out.Filtered, openStateKeeper(*final.OpenState))
		if len(next) == 0 && len(out.Filtered) > 0 {
			out.Relaxed.OpenState = true
		} else {
			out.Filtered = next
			out.Applied.OpenState = final.OpenState
		}
	}

	if final.PriceIntent != nil {
		allowed := models.PriceMatrix[*final.PriceIntent]
		next := filter(out.Filtered, func(p models.Place) bool {
			if p.PriceLevel == nil {
				return true
			}
			for _, lvl := range allowed {
				if *p.PriceLevel == lvl {
					return true
				}
			}
			return false
		})
		if len(next) == 0 && len(out.Filtered) > 0 {
			out.Relaxed.Price = true
		} else {
			out.Filtered = next
			out.Applied.PriceIntent = final.PriceIntent
		}
	}

	if final.MinRatingBucket != nil {
		threshold := models.RatingMatrix[*final.MinRatingBucket]
		next := filter(out.Filtered, func(p models.Place) bool {
			return p.Rating == nil || *p.Rating >= threshold
		})
		if len(next) == 0 && len(out.Filtered) > 0 {
			out.Relaxed.MinRating = true
		} else {
			out.Filtered = next
			out.Applied.MinRatingBucket = final.MinRatingBucket
		}
	}

	return out
}

// openStateKeeper returns the keep predicate for an open-state filter.
// OPEN_AT and OPEN_BETWEEN need opening-hours data the normalized place
// does not carry, so those fall back to keep-unknown.
func openStateKeeper(state models.OpenState) func(models.Place) bool {
	switch state {
	case models.OpenNow:
		return func(p models.Place) bool {
			return p.OpenNow == nil || *p.OpenNow
		}
	default:
		return func(models.Place) bool { return true }
	}
}

func filter(in []models.Place, keep func(models.Place) bool) []models.Place {
	out := make([]models.Place, 0, len(in))
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
