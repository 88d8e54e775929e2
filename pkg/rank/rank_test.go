package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noshhq/nosh/pkg/models"
)

func fptr(f float64) *float64 { return &f }
func bptr(b bool) *bool       { return &b }

func TestFinalizeWeights(t *testing.T) {
	tests := []struct {
		name             string
		hasLocation      bool
		openNowApplied   bool
		hasCuisineScores bool
		check            func(t *testing.T, w Weights)
	}{
		{"no location zeroes distance", false, false, true, func(t *testing.T, w Weights) {
			assert.Zero(t, w.Distance)
			assert.Equal(t, DefaultWeights.Rating, w.Rating)
		}},
		{"open-now applied zeroes open", true, true, true, func(t *testing.T, w Weights) {
			assert.Zero(t, w.Open)
			assert.Equal(t, DefaultWeights.Distance, w.Distance)
		}},
		{"no cuisine scores zeroes cuisine", true, false, false, func(t *testing.T, w Weights) {
			assert.Zero(t, w.Cuisine)
		}},
		{"nothing changes", true, false, true, func(t *testing.T, w Weights) {
			assert.Equal(t, DefaultWeights, w)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, FinalizeWeights(DefaultWeights, tt.hasLocation, tt.openNowApplied, tt.hasCuisineScores))
		})
	}
}

func TestRank_RatingDominatesWithoutLocation(t *testing.T) {
	places := []models.Place{
		{ID: "a", Name: "a", Rating: fptr(3.5)},
		{ID: "b", Name: "b", Rating: fptr(4.8)},
		{ID: "c", Name: "c", Rating: fptr(4.2)},
	}

	got := Rank(Input{
		Places:  places,
		Weights: FinalizeWeights(DefaultWeights, false, false, false),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, "a", got[2].ID)
}

func TestRank_DistanceMatters(t *testing.T) {
	user := models.LatLng{Lat: 32.07, Lng: 34.78}
	places := []models.Place{
		{ID: "far", Name: "far", Rating: fptr(4.0), Location: models.LatLng{Lat: 32.2, Lng: 34.9}},
		{ID: "close", Name: "close", Rating: fptr(4.0), Location: models.LatLng{Lat: 32.071, Lng: 34.781}},
	}

	got := Rank(Input{
		Places:       places,
		Weights:      FinalizeWeights(DefaultWeights, true, false, false),
		UserLocation: &user,
	})

	assert.Equal(t, "close", got[0].ID)
}

func TestRank_OpenBonusIgnoredWhenWeightZero(t *testing.T) {
	places := []models.Place{
		{ID: "open-low", Name: "open-low", Rating: fptr(4.0), OpenNow: bptr(true)},
		{ID: "closed-high", Name: "closed-high", Rating: fptr(4.6), OpenNow: bptr(false)},
	}

	w := FinalizeWeights(DefaultWeights, false, true, false)
	got := Rank(Input{Places: places, Weights: w})

	assert.Equal(t, "closed-high", got[0].ID, "with open weight zeroed rating decides")
}

func TestRank_StableTieBreaks(t *testing.T) {
	places := []models.Place{
		{ID: "b", Name: "b", Rating: fptr(4.0)},
		{ID: "a", Name: "a", Rating: fptr(4.0)},
	}

	got := Rank(Input{Places: places, Weights: FinalizeWeights(DefaultWeights, false, false, false)})
	assert.Equal(t, "a", got[0].ID, "equal scores tie-break by name")
}

func TestHaversineMeters(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	jerusalem := models.LatLng{Lat: 31.7683, Lng: 35.2137}

	d := HaversineMeters(telAviv, jerusalem)
	assert.InDelta(t, 54000, d, 2500, "Tel Aviv to Jerusalem is ~54 km")
	assert.Zero(t, HaversineMeters(telAviv, telAviv))
}
