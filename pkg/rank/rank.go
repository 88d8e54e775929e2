// Package rank scores and sorts filtered places. The ranker is a pure
// consumer: it receives already-final weights and never adjusts them.
// Weight finalization happens once, in FinalizeWeights, which the
// orchestrator calls as its single choke point before ranking.
package rank

import (
	"log/slog"
	"math"
	"sort"

	"github.com/noshhq/nosh/pkg/models"
)

// Weights are the scoring component weights. They sum to roughly 1 but
// the ranker does not require normalization.
type Weights struct {
	Distance float64
	Rating   float64
	Open     float64
	Price    float64
	Cuisine  float64
}

// DefaultWeights is the base weight profile before finalization.
var DefaultWeights = Weights{
	Distance: 0.30,
	Rating:   0.35,
	Open:     0.15,
	Price:    0.10,
	Cuisine:  0.10,
}

// Input carries the ranking context alongside the filtered places.
type Input struct {
	Places        []models.Place
	Weights       Weights
	UserLocation  *models.LatLng
	CuisineScores map[string]float64 // placeID -> 0..1, nil when unavailable
}

// FinalizeWeights derives the final weights from the base profile and
// the request context: no user location zeroes the distance weight, an
// enforced OPEN_NOW filter zeroes the open weight (every survivor is
// open already), and missing cuisine scores zero the cuisine weight.
// Logged once, only when something changed.
func FinalizeWeights(base Weights, hasUserLocation, openNowApplied, hasCuisineScores bool) Weights {
	final := base
	if !hasUserLocation {
		final.Distance = 0
	}
	if openNowApplied {
		final.Open = 0
	}
	if !hasCuisineScores {
		final.Cuisine = 0
	}
	if final != base {
		slog.Info("ranking_weights_final",
			"distance", final.Distance,
			"rating", final.Rating,
			"open", final.Open,
			"price", final.Price,
			"cuisine", final.Cuisine)
	}
	return final
}

// Rank scores each place and returns a new slice sorted by descending
// score, ties broken by rating count then name for stable output.
func Rank(in Input) []models.Place {
	type scored struct {
		place models.Place
		score float64
	}

	maxDist := maxDistance(in.Places, in.UserLocation)
	items := make([]scored, len(in.Places))
	for i, p := range in.Places {
		items[i] = scored{place: p, score: score(p, in, maxDist)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		ri, rj := ratingCount(items[i].place), ratingCount(items[j].place)
		if ri != rj {
			return ri > rj
		}
		return items[i].place.Name < items[j].place.Name
	})

	out := make([]models.Place, len(items))
	for i, it := range items {
		out[i] = it.place
	}
	return out
}

func score(p models.Place, in Input, maxDist float64) float64 {
	var s float64
	w := in.Weights

	if w.Distance > 0 && in.UserLocation != nil && maxDist > 0 {
		d := HaversineMeters(*in.UserLocation, p.Location)
		s += w.Distance * (1 - d/maxDist)
	}
	if w.Rating > 0 && p.Rating != nil {
		s += w.Rating * (*p.Rating / 5)
	}
	if w.Open > 0 && p.OpenNow != nil && *p.OpenNow {
		s += w.Open
	}
	if w.Price > 0 && p.PriceLevel != nil {
		// Cheaper scores higher on the 0..4 provider scale.
		s += w.Price * (1 - float64(*p.PriceLevel)/4)
	}
	if w.Cuisine > 0 && in.CuisineScores != nil {
		s += w.Cuisine * in.CuisineScores[p.ID]
	}
	return s
}

func maxDistance(places []models.Place, user *models.LatLng) float64 {
	if user == nil {
		return 0
	}
	var m float64
	for _, p := range places {
		if d := HaversineMeters(*user, p.Location); d > m {
			m = d
		}
	}
	return m
}

func ratingCount(p models.Place) int {
	if p.UserRatingsTotal == nil {
		return 0
	}
	return *p.UserRatingsTotal
}

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b models.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
