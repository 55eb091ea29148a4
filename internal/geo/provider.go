package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Lookup failures are recoverable: callers fall back to the sentinel
// feature pair instead of failing the ranking pass.
var (
	ErrLookupFailed    = errors.New("travel lookup failed")
	ErrMalformedMatrix = errors.New("malformed distance matrix response")
)

// Estimate holds the travel cost between two locations
type Estimate struct {
	TravelTimeMinutes float64 `json:"travel_time_minutes"`
	DistanceKm        float64 `json:"distance_km"`
}

// Estimator defines the interface for travel-time lookups
type Estimator interface {
	// Estimate returns the travel time and distance between two
	// locations. The context bounds the lookup; errors are non-fatal
	// to the caller.
	Estimate(ctx context.Context, origin, destination string) (Estimate, error)
}

// HTTPProvider implements Estimator against a distance-matrix HTTP API
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPProvider creates a provider with a per-call timeout
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// matrixResponse mirrors the distance-matrix wire format
type matrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
			Distance struct {
				Value float64 `json:"value"` // metres
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
	Status string `json:"status"`
}

// Estimate queries the distance-matrix API for one origin/destination leg
func (p *HTTPProvider) Estimate(ctx context.Context, origin, destination string) (Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", destination)
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var matrix matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
	}

	if len(matrix.Rows) == 0 || len(matrix.Rows[0].Elements) == 0 {
		return Estimate{}, fmt.Errorf("%w: empty rows", ErrMalformedMatrix)
	}

	element := matrix.Rows[0].Elements[0]
	if element.Status != "" && element.Status != "OK" {
		return Estimate{}, fmt.Errorf("%w: element status %s", ErrLookupFailed, element.Status)
	}

	return Estimate{
		TravelTimeMinutes: element.Duration.Value / 60,
		DistanceKm:        element.Distance.Value / 1000,
	}, nil
}
