package travel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRouter asks a routing service over JSON:
//
//	POST <url> {"origin":{"lat":..,"lng":..},"destination":{...}}
//	200 {"duration_minutes":12,"distance_meters":3400}
type HTTPRouter struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPRouter(url, apiKey string, timeout time.Duration) *HTTPRouter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRouter{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type routeRequest struct {
	Origin      Point `json:"origin"`
	Destination Point `json:"destination"`
}

type routeResponse struct {
	DurationMinutes *int `json:"duration_minutes"`
	DistanceMeters  int  `json:"distance_meters"`
}

func (h *HTTPRouter) Route(ctx context.Context, origin, destination Point) (Route, error) {
	const op = "travel.HTTPRouter.Route"

	body, err := json.Marshal(routeRequest{Origin: origin, Destination: destination})
	if err != nil {
		return Route{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Route{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Route{}, fmt.Errorf("%s: %w: status %d", op, ErrRouteUnavailable, resp.StatusCode)
	}

	var out routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	if out.DurationMinutes == nil || *out.DurationMinutes < 0 {
		return Route{}, fmt.Errorf("%s: %w: missing duration", op, ErrRouteUnavailable)
	}

	return Route{
		DurationMinutes: *out.DurationMinutes,
		DistanceMeters:  out.DistanceMeters,
	}, nil
}
