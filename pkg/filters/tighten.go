package filters

import (
	"strings"

	"github.com/noshhq/nosh/pkg/models"
)

// TightenInput carries the request context needed to resolve the final
// filters deterministically.
type TightenInput struct {
	UILanguage    string // "he"|"en" or empty
	GateLanguage  string // gate classifier language, may be empty
	DefaultRegion string // fallback region code
}

// Tighten resolves PreGoogleBaseFilters into FinalFilters. Pure function:
// language resolves with priority uiLanguage > base.language(non-auto) >
// gateLanguage, region from base.regionHint > defaultRegion, and the
// disclaimers are always set.
func Tighten(base models.PreGoogleBaseFilters, in TightenInput) models.FinalFilters {
	return models.FinalFilters{
		Language:        resolveLanguage(base.Language, in),
		OpenState:       base.OpenState,
		OpenAt:          base.OpenAt,
		OpenBetween:     base.OpenBetween,
		RegionCode:      resolveRegion(base.RegionHint, in.DefaultRegion),
		PriceIntent:     base.PriceIntent,
		MinRatingBucket: base.MinRatingBucket,
		Disclaimers:     models.Disclaimers{Hours: true, Dietary: true},
	}
}

func resolveLanguage(baseLang string, in TightenInput) string {
	if in.UILanguage == "he" || in.UILanguage == "en" {
		return in.UILanguage
	}
	if baseLang == "he" || baseLang == "en" {
		return baseLang
	}
	if in.GateLanguage == "he" {
		return "he"
	}
	return "en"
}

func resolveRegion(hint, fallback string) string {
	if len(hint) == 2 {
		return strings.ToUpper(hint)
	}
	if len(fallback) == 2 {
		return strings.ToUpper(fallback)
	}
	return "IL"
}
