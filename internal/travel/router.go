package travel

import (
	"context"
	"errors"
)

var ErrRouteUnavailable = errors.New("route unavailable")

// Point is a location with coordinates.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Router is the external routing provider consulted on a cache miss.
type Router interface {
	Route(ctx context.Context, origin, destination Point) (Route, error)
}
