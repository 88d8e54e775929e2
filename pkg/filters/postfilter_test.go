package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noshhq/nosh/pkg/models"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }
func bptr(b bool) *bool       { return &b }

func openState(s models.OpenState) *models.OpenState    { return &s }
func price(p models.PriceIntent) *models.PriceIntent    { return &p }
func bucket(b models.RatingBucket) *models.RatingBucket { return &b }

func place(id string, rating *float64, priceLevel *int, openNow *bool) models.Place {
	return models.Place{ID: id, Name: id, Rating: rating, PriceLevel: priceLevel, OpenNow: openNow}
}

func TestApplyPostFilters_OpenNowKeepsUnknown(t *testing.T) {
	results := []models.Place{
		place("open", nil, nil, bptr(true)),
		place("closed", nil, nil, bptr(false)),
		place("unknown", nil, nil, nil),
	}

	got := ApplyPostFilters(results, models.FinalFilters{OpenState: openState(models.OpenNow)})

	require.Len(t, got.Filtered, 2)
	assert.Equal(t, "open", got.Filtered[0].ID)
	assert.Equal(t, "unknown", got.Filtered[1].ID)
	require.NotNil(t, got.Applied.OpenState)
	assert.Equal(t, models.OpenNow, *got.Applied.OpenState)
	assert.False(t, got.Relaxed.OpenState)
}

func TestApplyPostFilters_PriceMatrix(t *testing.T) {
	tests := []struct {
		intent models.PriceIntent
		keep   []int
	}{
		{models.PriceCheap, []int{1}},
		{models.PriceMid, []int{2}},
		{models.PriceExpensive, []int{3, 4}},
	}

	all := []models.Place{
		place("p1", nil, iptr(1), nil),
		place("p2", nil, iptr(2), nil),
		place("p3", nil, iptr(3), nil),
		place("p4", nil, iptr(4), nil),
		place("pn", nil, nil, nil),
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			got := ApplyPostFilters(all, models.FinalFilters{PriceIntent: price(tt.intent)})
			assert.Len(t, got.Filtered, len(tt.keep)+1, "allowed levels plus the unknown")
			for _, p := range got.Filtered {
				if p.PriceLevel == nil {
					continue
				}
				assert.Contains(t, tt.keep, *p.PriceLevel)
			}
		})
	}
}

func TestApplyPostFilters_RatingThreshold(t *testing.T) {
	results := []models.Place{
		place("low", fptr(3.2), nil, nil),
		place("mid", fptr(4.1), nil, nil),
		place("unknown", nil, nil, nil),
	}

	got := ApplyPostFilters(results, models.FinalFilters{MinRatingBucket: bucket(models.Rating40)})

	require.Len(t, got.Filtered, 2)
	for _, p := range got.Filtered {
		assert.True(t, p.Rating == nil || *p.Rating >= 4.0)
	}
}

func TestApplyPostFilters_AutoRelaxDropsOnlyEmptyingFilter(t *testing.T) {
	// 15 places all open, 10 rated 4.0+, none rated 4.5+.
	var results []models.Place
	for i := 0; i < 15; i++ {
		r := 4.2
		if i >= 10 {
			r = 3.8
		}
		results = append(results, place(string(rune('a'+i)), fptr(r), nil, bptr(true)))
	}

	got := ApplyPostFilters(results, models.FinalFilters{
		OpenState:       openState(models.OpenNow),
		MinRatingBucket: bucket(models.Rating45),
	})

	assert.Len(t, got.Filtered, 15, "rating filter relaxed, open filter kept")
	require.NotNil(t, got.Applied.OpenState)
	assert.Nil(t, got.Applied.MinRatingBucket)
	assert.True(t, got.Relaxed.MinRating)
	assert.False(t, got.Relaxed.OpenState)
}

func TestApplyPostFilters_RelaxedSetEqualsWithoutThatFilter(t *testing.T) {
	results := []models.Place{
		place("cheap-open", nil, iptr(1), bptr(true)),
		place("pricey-open", nil, iptr(4), bptr(true)),
	}

	withBoth := ApplyPostFilters(results, models.FinalFilters{
		OpenState:   openState(models.OpenNow),
		PriceIntent: price(models.PriceMid),
	})
	withoutPrice := ApplyPostFilters(results, models.FinalFilters{
		OpenState: openState(models.OpenNow),
	})

	assert.True(t, withBoth.Relaxed.Price)
	assert.Nil(t, withBoth.Applied.PriceIntent)
	assert.Equal(t, withoutPrice.Filtered, withBoth.Filtered)
}

func TestApplyPostFilters_EmptyInputDoesNotRelax(t *testing.T) {
	got := ApplyPostFilters(nil, models.FinalFilters{
		OpenState:   openState(models.OpenNow),
		PriceIntent: price(models.PriceCheap),
	})

	assert.Empty(t, got.Filtered)
	assert.False(t, got.Relaxed.OpenState)
	assert.False(t, got.Relaxed.Price)
}

func TestTighten_LanguagePriority(t *testing.T) {
	tests := []struct {
		name string
		base string
		in   TightenInput
		want string
	}{
		{"ui wins", "he", TightenInput{UILanguage: "en", GateLanguage: "he"}, "en"},
		{"base beats gate", "he", TightenInput{GateLanguage: "en"}, "he"},
		{"auto defers to gate", "auto", TightenInput{GateLanguage: "he"}, "he"},
		{"hard fallback en", "auto", TightenInput{}, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tighten(models.PreGoogleBaseFilters{Language: tt.base}, tt.in)
			assert.Equal(t, tt.want, got.Language)
		})
	}
}

func TestTighten_RegionAndDisclaimers(t *testing.T) {
	got := Tighten(models.PreGoogleBaseFilters{Language: "en", RegionHint: "fr"}, TightenInput{DefaultRegion: "IL"})
	assert.Equal(t, "FR", got.RegionCode, "hint beats default, uppercased")
	assert.True(t, got.Disclaimers.Hours)
	assert.True(t, got.Disclaimers.Dietary)

	got = Tighten(models.SafeFallbackFilters(), TightenInput{DefaultRegion: "il"})
	assert.Equal(t, "IL", got.RegionCode)
}
