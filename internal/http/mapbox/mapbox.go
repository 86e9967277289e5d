package mapbox

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

const defaultBaseURL = "https://api.mapbox.com"

// MapboxClient handles communication with the Mapbox Directions API and
// serves as a lookup.RoutingClient.
type MapboxClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	logger  *zap.Logger
}

// NewMapboxClient creates a new Mapbox client instance
func NewMapboxClient(apiKey string, logger *zap.Logger) *MapboxClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		logger.Warn("mapbox API key is empty")
	}
	return &MapboxClient{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("mapbox"),
	}
}

// --- Directions Structures for Mapbox ---

// DirectionsResponse represents the top-level response from Mapbox Directions API
type DirectionsResponse struct {
	Routes  []Route `json:"routes"`
	Code    string  `json:"code"` // "Ok", "NoRoute", "NoSegment", "ProfileNotFound", etc.
	Message string  `json:"message,omitempty"`
}

// Route is one candidate; Geometry is polyline6 encoded.
type Route struct {
	Geometry   string  `json:"geometry"`
	Legs       []Leg   `json:"legs"`
	WeightName string  `json:"weight_name"`
	Weight     float64 `json:"weight"`
	Duration   float64 `json:"duration"` // in seconds
	Distance   float64 `json:"distance"` // in meters
}

// Leg represents a section of the route between waypoints
type Leg struct {
	Summary  string  `json:"summary"`
	Weight   float64 `json:"weight"`
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
}

// profile maps a route mode onto a Mapbox routing profile.
func profile(mode string) string {
	switch strings.ToLower(mode) {
	case "", "driving", "auto", "car":
		return "driving"
	case "traffic", "driving-traffic":
		return "driving-traffic"
	case "walking", "pedestrian":
		return "walking"
	case "cycling", "bicycle":
		return "cycling"
	default:
		return mode
	}
}

// Directions fetches the overview route between waypoints.
func (mc *MapboxClient) Directions(ctx context.Context, waypoints []model.Coordinate, mode string) (*DirectionsResponse, error) {
	if mc.APIKey == "" {
		return nil, errors.Wrap(lookup.ErrUnavailable, "mapbox API key is not set")
	}
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("at least 2 coordinates (origin and destination) are required")
	}

	// "lon1,lat1;lon2,lat2;..."
	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = fmt.Sprintf("%.6f,%.6f", w.Longitude, w.Latitude)
	}
	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/%s/%s", strings.TrimRight(mc.BaseURL, "/"), profile(mode), strings.Join(parts, ";"))

	params := url.Values{}
	params.Set("access_token", mc.APIKey)
	params.Set("geometries", "polyline6")
	params.Set("overview", "full")
	params.Set("alternatives", "false")
	params.Set("steps", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create Mapbox Directions request")
	}

	resp, err := mc.Client.Do(req)
	if err != nil {
		mc.logger.Debug("mapbox directions request failed", zap.Error(err))
		return nil, errors.Wrap(lookup.Classify(err), err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(lookup.ErrUnavailable, "read Mapbox Directions response body: "+err.Error())
	}

	var dirResp DirectionsResponse
	// Mapbox reports NoRoute with a 200 and NoSegment with a 422, both in the body.
	if jsonErr := json.Unmarshal(bodyBytes, &dirResp); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, errors.Wrap(lookup.ErrUnavailable, "decode Mapbox Directions response: "+jsonErr.Error())
	}

	switch dirResp.Code {
	case "Ok":
		if resp.StatusCode == http.StatusOK {
			return &dirResp, nil
		}
	case "NoRoute", "NoSegment":
		return nil, errors.Wrap(lookup.ErrNoRoute, "mapbox directions: "+dirResp.Code)
	}

	mc.logger.Warn("mapbox directions error",
		zap.Int("status", resp.StatusCode), zap.String("code", dirResp.Code), zap.String("message", dirResp.Message))
	if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
		return nil, errors.Wrapf(lookup.ErrTimeout, "mapbox directions status %d", resp.StatusCode)
	}
	return nil, errors.Wrapf(lookup.ErrUnavailable, "mapbox directions status %d code %q", resp.StatusCode, dirResp.Code)
}

// CalculateRoute returns the first route Mapbox proposes.
func (mc *MapboxClient) CalculateRoute(ctx context.Context, from, to model.Coordinate, mode string) (model.Route, error) {
	resp, err := mc.Directions(ctx, []model.Coordinate{from, to}, mode)
	if err != nil {
		return model.Route{}, err
	}
	if len(resp.Routes) == 0 {
		return model.Route{}, errors.Wrap(lookup.ErrNoRoute, "mapbox returned no routes")
	}
	r := resp.Routes[0]
	return model.Route{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Polyline:        r.Geometry,
		Precision:       6,
	}, nil
}
