// Package nominatim is the HTTP adapter for the OpenStreetMap
// Nominatim geocoding service.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redstick-goods/storefront/internal/shipping"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

type Client struct {
	httpc   *http.Client
	baseURL string
}

// New builds a geocoder client. baseURL may be empty to use the public
// Nominatim instance.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

var _ shipping.Geocoder = (*Client)(nil)

// searchResult is Nominatim's wire shape; lat/lon arrive as strings.
type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search resolves a freeform address. An unknown address yields an
// empty slice and a nil error; transport failures are errors.
func (c *Client) Search(ctx context.Context, freeform string) ([]shipping.LatLng, error) {
	u := fmt.Sprintf("%s/search?format=json&q=%s", c.baseURL, url.QueryEscape(freeform))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "redstick-goods-storefront/1.0")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: search returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim: decode response: %w", err)
	}

	out := make([]shipping.LatLng, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		out = append(out, shipping.LatLng{Lat: lat, Lng: lon})
	}
	return out, nil
}
