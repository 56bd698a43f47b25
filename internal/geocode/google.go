// Package geocode resolves postal addresses to coordinates through the
// Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/clientimport/internal/client"
)

// DefaultBaseURL is the Google Geocoding JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// DefaultRatePerSecond keeps well under Google's per-project quota.
const DefaultRatePerSecond = 10

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Option configures a Google client.
type Option func(*Google)

// WithHTTPClient sets the HTTP client used for lookups.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Google) { g.httpClient = hc }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(g *Google) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithRateLimit sets the number of requests allowed per second.
func WithRateLimit(rps float64) Option {
	return func(g *Google) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRegion biases results toward a ccTLD region code ("fr").
func WithRegion(region string) Option {
	return func(g *Google) { g.region = region }
}

// Google implements client.Geocoder. Results, including misses, are cached
// in memory for the lifetime of the client.
type Google struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	cache map[string]*client.Coordinates
}

var _ client.Geocoder = (*Google)(nil)

// NewGoogle creates a geocoder authenticated with apiKey.
func NewGoogle(apiKey string, opts ...Option) *Google {
	g := &Google{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		region:     "fr",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(DefaultRatePerSecond, DefaultRatePerSecond),
		cache:      make(map[string]*client.Coordinates),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve geocodes address. It returns nil, nil when Google finds no match.
func (g *Google) Resolve(ctx context.Context, address string) (*client.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	key := strings.ToLower(address)
	if c, ok := g.cached(key); ok {
		return c, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address": {address},
		"key":     {g.apiKey},
	}
	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		g.store(key, nil)
		return nil, nil
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", gr.Status, gr.ErrorMessage)
	}
	if len(gr.Results) == 0 {
		g.store(key, nil)
		return nil, nil
	}

	loc := gr.Results[0].Geometry.Location
	c := &client.Coordinates{Lat: loc.Lat, Lng: loc.Lng}
	g.store(key, c)
	return c, nil
}

func (g *Google) cached(key string) (*client.Coordinates, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.cache[key]
	if !ok || c == nil {
		return c, ok
	}
	cp := *c
	return &cp, true
}

func (g *Google) store(key string, c *client.Coordinates) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c != nil {
		cp := *c
		c = &cp
	}
	g.cache[key] = c
}
