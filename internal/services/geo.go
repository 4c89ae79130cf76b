package services

import (
	"math"
	"sort"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// DefaultNearbyLimit is used when a caller passes a non-positive limit.
const DefaultNearbyLimit = 5

// earthRadiusKm is the IUGG mean radius.
const earthRadiusKm = 6371.0088

// Point is a location in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidCoordinates for out-of-range or NaN values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) ||
		p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// RankedShop pairs a shop with its distance from the ranking origin.
type RankedShop struct {
	Shop       domain.Shop
	DistanceKm float64
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	const rad = math.Pi / 180
	lat1, lat2 := a.Lat*rad, b.Lat*rad
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Nearest orders candidates by ascending distance from origin and keeps the
// first limit of them. Equidistant candidates keep their input order.
// Candidates are not filtered; callers pass only the shops they want ranked.
func Nearest(origin Point, candidates []domain.Shop, limit int) ([]RankedShop, error) {
	if err := origin.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	ranked := make([]RankedShop, len(candidates))
	for i, s := range candidates {
		ranked[i] = RankedShop{Shop: s, DistanceKm: HaversineKm(origin, Point{Lat: s.Lat, Lng: s.Lng})}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
