package stadiamaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"
)

const (
	defaultStadiaBaseURL = "https://api.stadiamaps.com"
	maxErrorBody         = 512
)

// Client handles communication with the Stadia Maps geocoding API. It serves
// as both lookup.GeocodingClient and lookup.AddressSearchClient.
type Client struct {
	BaseURL    *url.URL
	APIKey     string
	HTTPClient *http.Client
	// Size caps autocomplete results requested from the API.
	Size int
}

// NewClient creates a new Stadia Maps API client with default timeout.
func NewClient(apiKey string) *Client {
	baseURL, _ := url.Parse(defaultStadiaBaseURL)
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Size:    10,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// --- Geocoding Request/Response Structures ---

// GeocodeQuery represents parameters for geocoding requests.
type GeocodeQuery struct {
	Text          string   `url:"text,omitempty"`
	PointLat      *float64 `url:"point.lat,omitempty"`
	PointLon      *float64 `url:"point.lon,omitempty"`
	Size          *int     `url:"size,omitempty"`
	Layers        []string `url:"layers,omitempty,comma"`
	FocusPointLat *float64 `url:"focus.point.lat,omitempty"`
	FocusPointLon *float64 `url:"focus.point.lon,omitempty"`
	RectMinLat    *float64 `url:"boundary.rect.min_lat,omitempty"`
	RectMaxLat    *float64 `url:"boundary.rect.max_lat,omitempty"`
	RectMinLon    *float64 `url:"boundary.rect.min_lon,omitempty"`
	RectMaxLon    *float64 `url:"boundary.rect.max_lon,omitempty"`
}

// Feature is one GeoJSON result. Geometry is nil for v2 autocomplete.
type Feature struct {
	Type     string `json:"type"`
	Geometry *struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type FeatureProperties struct {
	Gid                  string `json:"gid"`
	Layer                string `json:"layer"`
	Name                 string `json:"name,omitempty"`
	Label                string `json:"label,omitempty"`
	FormattedAddressLine string `json:"formatted_address_line,omitempty"`
	CoarseLocation       string `json:"coarse_location,omitempty"`
}

// GeoJSONFeatureCollection is the response structure for geocoding APIs.
type GeoJSONFeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// coordinate returns the feature position, false when it has none.
func (f Feature) coordinate() (model.Coordinate, bool) {
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return model.Coordinate{}, false
	}
	return model.Coordinate{
		Latitude:  f.Geometry.Coordinates[1],
		Longitude: f.Geometry.Coordinates[0],
	}, true
}

// label picks the most complete human readable line.
func (p FeatureProperties) label() string {
	switch {
	case p.Label != "":
		return p.Label
	case p.FormattedAddressLine != "":
		return p.FormattedAddressLine
	case p.Name != "" && p.CoarseLocation != "":
		return p.Name + ", " + p.CoarseLocation
	default:
		return p.Name
	}
}

// buildURL constructs the API URL with query parameters.
func (c *Client) buildURL(endpoint string, queryParams interface{}) (string, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	u := c.BaseURL.ResolveReference(rel)

	q := u.Query()
	q.Set("api_key", c.APIKey)

	if queryParams != nil {
		v, err := query.Values(queryParams)
		if err != nil {
			return "", errors.Wrap(err, "encode query parameters")
		}
		for k, vals := range v {
			for _, val := range vals {
				q.Add(k, val)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, endpoint string, params interface{}, v interface{}) error {
	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return errors.Wrapf(err, "build %s URL", endpoint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrapf(err, "create %s request", endpoint)
	}
	return c.do(req, v)
}

func applyBias(params *GeocodeQuery, bias model.BiasRegion) {
	if bias.Focus != nil {
		lat, lon := bias.Focus.Latitude, bias.Focus.Longitude
		params.FocusPointLat = &lat
		params.FocusPointLon = &lon
	}
	if bias.Bounds != (model.Bounds{}) {
		b := bias.Bounds
		params.RectMinLat, params.RectMaxLat = &b.MinLatitude, &b.MaxLatitude
		params.RectMinLon, params.RectMaxLon = &b.MinLongitude, &b.MaxLongitude
	}
}

// ForwardSearch performs forward geocoding.
// Endpoint: /geocoding/v1/search
func (c *Client) ForwardSearch(ctx context.Context, text string, params *GeocodeQuery) (*GeoJSONFeatureCollection, error) {
	if params == nil {
		params = &GeocodeQuery{}
	}
	params.Text = text

	var result GeoJSONFeatureCollection
	if err := c.get(ctx, "/geocoding/v1/search", params, &result); err != nil {
		return nil, errors.Wrap(err, "execute search request")
	}
	return &result, nil
}

// Autocomplete provides address suggestions.
// Endpoint: /geocoding/v2/autocomplete
func (c *Client) Autocomplete(ctx context.Context, text string, params *GeocodeQuery) (*GeoJSONFeatureCollection, error) {
	if params == nil {
		params = &GeocodeQuery{}
	}
	params.Text = text

	var result GeoJSONFeatureCollection
	if err := c.get(ctx, "/geocoding/v2/autocomplete", params, &result); err != nil {
		return nil, errors.Wrap(err, "execute autocomplete request")
	}
	return &result, nil
}

// PlaceDetail fetches the full record for a gid.
// Endpoint: /geocoding/v2/place_details
func (c *Client) PlaceDetail(ctx context.Context, gid string) (*GeoJSONFeatureCollection, error) {
	queryParams := struct {
		IDs string `url:"ids"`
	}{IDs: gid}

	var result GeoJSONFeatureCollection
	if err := c.get(ctx, "/geocoding/v2/place_details", queryParams, &result); err != nil {
		return nil, errors.Wrap(err, "execute place detail request")
	}
	return &result, nil
}

// Reverse performs reverse geocoding.
// Endpoint: /geocoding/v1/reverse
func (c *Client) Reverse(ctx context.Context, lat, lon float64, params *GeocodeQuery) (*GeoJSONFeatureCollection, error) {
	if params == nil {
		params = &GeocodeQuery{}
	}
	params.PointLat = &lat
	params.PointLon = &lon

	var result GeoJSONFeatureCollection
	if err := c.get(ctx, "/geocoding/v1/reverse", params, &result); err != nil {
		return nil, errors.Wrap(err, "execute reverse geocode request")
	}
	return &result, nil
}

// --- lookup adapters ---

func (c *Client) ForwardGeocode(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error) {
	size := 1
	params := &GeocodeQuery{Size: &size}
	applyBias(params, bias)

	result, err := c.ForwardSearch(ctx, text, params)
	if err != nil {
		return model.Coordinate{}, err
	}
	for _, f := range result.Features {
		if coord, ok := f.coordinate(); ok {
			return coord, nil
		}
	}
	return model.Coordinate{}, errors.Wrapf(lookup.ErrNotFound, "forward geocode %q", text)
}

func (c *Client) ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error) {
	size := 1
	result, err := c.Reverse(ctx, coord.Latitude, coord.Longitude, &GeocodeQuery{Size: &size})
	if err != nil {
		return "", err
	}
	for _, f := range result.Features {
		if label := strings.TrimSpace(f.Properties.label()); label != "" {
			return label, nil
		}
	}
	return "", errors.Wrapf(lookup.ErrNotFound, "reverse geocode %s", coord)
}

// Search returns autocomplete suggestions. v2 autocomplete carries no
// geometry, so suggestions hold the placeholder coordinate and the gid as
// their handle.
func (c *Client) Search(ctx context.Context, text string, bias model.BiasRegion) ([]model.AddressSuggestion, error) {
	params := &GeocodeQuery{}
	if c.Size > 0 {
		size := c.Size
		params.Size = &size
	}
	applyBias(params, bias)

	result, err := c.Autocomplete(ctx, text, params)
	if err != nil {
		return nil, err
	}
	suggestions := make([]model.AddressSuggestion, 0, len(result.Features))
	for _, f := range result.Features {
		p := f.Properties
		if p.Gid == "" && f.Geometry == nil {
			continue
		}
		s := model.AddressSuggestion{
			ID:          p.Gid,
			DisplayText: p.Name,
			FullAddress: p.label(),
			Handle:      p.Gid,
		}
		if s.DisplayText == "" {
			s.DisplayText = s.FullAddress
		}
		if coord, ok := f.coordinate(); ok {
			s.Coordinate = coord
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

func (c *Client) Resolve(ctx context.Context, handle string) (model.Coordinate, error) {
	result, err := c.PlaceDetail(ctx, handle)
	if err != nil {
		return model.Coordinate{}, err
	}
	for _, f := range result.Features {
		if coord, ok := f.coordinate(); ok {
			return coord, nil
		}
	}
	return model.Coordinate{}, errors.Wrapf(lookup.ErrNotFound, "place details %q", handle)
}

// do executes HTTP requests and decodes JSON responses. Failures are mapped
// onto the lookup taxonomy.
func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(lookup.Classify(err), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Wrap(statusError(resp.StatusCode), fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return errors.Wrap(lookup.ErrUnavailable, "decode response: "+err.Error())
		}
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return lookup.ErrNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return lookup.ErrTimeout
	default:
		return lookup.ErrUnavailable
	}
}
