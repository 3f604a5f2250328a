package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	circuit "github.com/rubyist/circuitbreaker"
)

// doer is the subset of *circuit.HTTPClient the provider needs.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider queries a remote routing service:
//
//	GET {base}/route?from=<loc>&to=<loc>
//	200 {"distance_km": 310.2, "duration_minutes": 270}
//
// A location is sent as "lat,lng" when coordinates are known, else the city.
type HTTPProvider struct {
	baseURL string
	client  doer
}

// NewHTTPProvider builds a provider whose calls go through a rubyist circuit
// breaker that trips after threshold consecutive failures.
func NewHTTPProvider(baseURL string, timeout time.Duration, threshold int64) *HTTPProvider {
	cb := circuit.NewHTTPClient(timeout, threshold, &http.Client{Timeout: timeout})
	return newHTTPProvider(baseURL, cb)
}

func newHTTPProvider(baseURL string, client doer) *HTTPProvider {
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type routeResponse struct {
	DistanceKM      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// DistanceAndTime implements Provider.
func (p *HTTPProvider) DistanceAndTime(ctx context.Context, origin, destination Location) (Route, error) {
	const op = "geo.HTTPProvider.DistanceAndTime"

	// A done context must not count as a breaker failure.
	if err := ctx.Err(); err != nil {
		return Route{}, unavailable(op, err)
	}

	q := url.Values{}
	q.Set("from", queryValue(origin))
	q.Set("to", queryValue(destination))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return Route{}, unavailable(op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Route{}, unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, unavailable(op, fmt.Errorf("routing service returned %d", resp.StatusCode))
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, unavailable(op, err)
	}
	if body.DistanceKM < 0 || body.DurationMinutes < 0 {
		return Route{}, unavailable(op, fmt.Errorf("negative route %+v", body))
	}
	return Route{
		DistanceKM: body.DistanceKM,
		Duration:   time.Duration(body.DurationMinutes * float64(time.Minute)).Round(time.Minute),
	}, nil
}

func queryValue(l Location) string {
	if l.HasCoordinates() {
		return strconv.FormatFloat(*l.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(*l.Longitude, 'f', 6, 64)
	}
	return l.City
}
