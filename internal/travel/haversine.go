package travel

import (
	"context"
	"math"
)

const earthRadiusKm = 6371

// DistanceKm is the great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// HaversineRouter estimates travel from straight-line distance at a fixed
// average speed. Its routes are always marked Estimated.
type HaversineRouter struct {
	SpeedKmh float64
}

func NewHaversineRouter(speedKmh float64) *HaversineRouter {
	if speedKmh <= 0 {
		speedKmh = 25
	}
	return &HaversineRouter{SpeedKmh: speedKmh}
}

func (h *HaversineRouter) Route(_ context.Context, origin, destination Point) (Route, error) {
	km := DistanceKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	minutes := int(math.Ceil(km / h.SpeedKmh * 60))
	return Route{
		DurationMinutes: minutes,
		DistanceMeters:  int(math.Round(km * 1000)),
		Estimated:       true,
	}, nil
}
