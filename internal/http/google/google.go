package googlemaps

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
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// GoogleMapsClient handles communication with the Google Geocoding and Places
// APIs. It serves as both lookup.GeocodingClient and lookup.AddressSearchClient.
type GoogleMapsClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	logger  *zap.Logger
}

// NewGoogleMapsClient creates a new client instance
func NewGoogleMapsClient(apiKey string, logger *zap.Logger) *GoogleMapsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		logger.Warn("google maps API key is empty")
	}
	return &GoogleMapsClient{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("google"),
	}
}

// --- Response Structures ---

// GeocodeResponse is returned by /geocode/json for both directions.
type GeocodeResponse struct {
	Results      []GeocodeResult `json:"results"`
	Status       string          `json:"status"` // "OK", "ZERO_RESULTS", "OVER_QUERY_LIMIT", "REQUEST_DENIED", "INVALID_REQUEST", "UNKNOWN_ERROR"
	ErrorMessage string          `json:"error_message,omitempty"`
}

type GeocodeResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types"`
}

// AutocompleteResponse is returned by /place/autocomplete/json.
type AutocompleteResponse struct {
	Predictions  []Prediction `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

type Prediction struct {
	Description          string `json:"description"`
	PlaceID              string `json:"place_id"`
	StructuredFormatting struct {
		MainText      string `json:"main_text"`
		SecondaryText string `json:"secondary_text"`
	} `json:"structured_formatting"`
}

// PlaceDetailsResponse represents the top-level response for a Place Details request
type PlaceDetailsResponse struct {
	Result       PlaceDetailsResult `json:"result"`
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// PlaceDetailsResult holds the fields this client asks for.
type PlaceDetailsResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
	Name             string   `json:"name"`
	PlaceID          string   `json:"place_id"`
}

// Geometry contains location information
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng represents latitude and longitude
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) coordinate() model.Coordinate {
	return model.Coordinate{Latitude: l.Lat, Longitude: l.Lng}
}

// statusError maps a Google API status onto the lookup taxonomy.
func statusError(status, message string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return errors.Wrap(lookup.ErrNotFound, "google maps: "+status)
	default:
		return errors.Wrapf(lookup.ErrUnavailable, "google maps API error: %s %s", status, message)
	}
}

func (gc *GoogleMapsClient) get(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	if gc.APIKey == "" {
		return errors.Wrap(lookup.ErrUnavailable, "google maps API key is not set")
	}
	params.Set("key", gc.APIKey)
	fullURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(gc.BaseURL, "/"), endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errors.Wrapf(err, "create %s request", endpoint)
	}

	resp, err := gc.Client.Do(req)
	if err != nil {
		gc.logger.Debug("google request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return errors.Wrap(lookup.Classify(err), err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(lookup.ErrUnavailable, "read response body: "+err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		gc.logger.Warn("google request failed", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
			return errors.Wrapf(lookup.ErrTimeout, "google maps status %d", resp.StatusCode)
		}
		return errors.Wrapf(lookup.ErrUnavailable, "google maps status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, v); err != nil {
		return errors.Wrap(lookup.ErrUnavailable, "decode response: "+err.Error())
	}
	return nil
}

func boundsParam(b model.Bounds) string {
	return fmt.Sprintf("%f,%f|%f,%f", b.MinLatitude, b.MinLongitude, b.MaxLatitude, b.MaxLongitude)
}

// ForwardGeocode returns the best match for text.
func (gc *GoogleMapsClient) ForwardGeocode(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error) {
	params := url.Values{}
	params.Set("address", text)
	if bias.Bounds != (model.Bounds{}) {
		params.Set("bounds", boundsParam(bias.Bounds))
	}

	var resp GeocodeResponse
	if err := gc.get(ctx, "geocode/json", params, &resp); err != nil {
		return model.Coordinate{}, err
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return model.Coordinate{}, err
	}
	if len(resp.Results) == 0 {
		return model.Coordinate{}, errors.Wrapf(lookup.ErrNotFound, "forward geocode %q", text)
	}
	return resp.Results[0].Geometry.Location.coordinate(), nil
}

func (gc *GoogleMapsClient) ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error) {
	params := url.Values{}
	params.Set("latlng", coord.String())

	var resp GeocodeResponse
	if err := gc.get(ctx, "geocode/json", params, &resp); err != nil {
		return "", err
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return "", err
	}
	for _, r := range resp.Results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", errors.Wrapf(lookup.ErrNotFound, "reverse geocode %s", coord)
}

// Search returns place predictions; each carries its place_id as handle and
// a placeholder coordinate.
func (gc *GoogleMapsClient) Search(ctx context.Context, text string, bias model.BiasRegion) ([]model.AddressSuggestion, error) {
	params := url.Values{}
	params.Set("input", text)
	if bias.Focus != nil {
		params.Set("location", bias.Focus.String())
		params.Set("radius", "50000")
	}

	var resp AutocompleteResponse
	if err := gc.get(ctx, "place/autocomplete/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	suggestions := make([]model.AddressSuggestion, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		display := p.StructuredFormatting.MainText
		if display == "" {
			display = p.Description
		}
		suggestions = append(suggestions, model.AddressSuggestion{
			ID:          p.PlaceID,
			DisplayText: display,
			FullAddress: p.Description,
			Handle:      p.PlaceID,
		})
	}
	return suggestions, nil
}

// GetPlaceDetails fetches the requested fields of a place.
func (gc *GoogleMapsClient) GetPlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetailsResult, error) {
	if placeID == "" {
		return nil, fmt.Errorf("placeID cannot be empty")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields parameter cannot be empty for Place Details request")
	}
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(fields, ","))

	var resp PlaceDetailsResponse
	if err := gc.get(ctx, "place/details/json", params, &resp); err != nil {
		return nil, err
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func (gc *GoogleMapsClient) Resolve(ctx context.Context, handle string) (model.Coordinate, error) {
	details, err := gc.GetPlaceDetails(ctx, handle, []string{"geometry"})
	if err != nil {
		return model.Coordinate{}, err
	}
	return details.Geometry.Location.coordinate(), nil
}
