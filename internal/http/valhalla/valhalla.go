package valhalla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Valhalla error codes meaning the graph has no path between the locations.
var noRouteCodes = map[int]bool{
	170: true, // locations are in unconnected regions
	171: true, // no suitable edges near location
	442: true, // no path could be found for input
	443: true, // exact route match algorithm failed
}

// ValhallaClient handles communication with the Valhalla API and serves as a
// lookup.RoutingClient.
type ValhallaClient struct {
	BaseURL string
	Client  *http.Client
	logger  *zap.Logger
}

// NewValhallaClient creates a new client instance
func NewValhallaClient(baseURL string, logger *zap.Logger) *ValhallaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValhallaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("valhalla"),
	}
}

// --- Request Structures ---

// Location represents a point in the route request
type Location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type *string `json:"type,omitempty"` // break, through, via, break_through
}

// RouteRequest is the payload for the /route endpoint
type RouteRequest struct {
	Locations      []Location `json:"locations"`
	Costing        string     `json:"costing"` // "auto", "pedestrian", "bicycle"
	Units          *string    `json:"units,omitempty"`
	DirectionsType *string    `json:"directions_type,omitempty"`
	ID             *string    `json:"id,omitempty"`
}

// --- Response Structures ---

type RouteResponse struct {
	Trip Trip    `json:"trip"`
	ID   *string `json:"id,omitempty"`
}

type Trip struct {
	Legs          []Leg   `json:"legs"`
	Summary       Summary `json:"summary"`
	Status        int     `json:"status,omitempty"`
	StatusMessage string  `json:"status_message,omitempty"`
	Units         string  `json:"units,omitempty"`
}

// Summary provides overall details for a trip or leg
type Summary struct {
	Length float64 `json:"length"` // in Trip.Units
	Time   float64 `json:"time"`   // seconds
}

// Leg is the part of a trip between two break locations
type Leg struct {
	Shape   string  `json:"shape"` // polyline6
	Summary Summary `json:"summary"`
}

type errorResponse struct {
	ErrorCode  int    `json:"error_code"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// metersPerUnit returns the conversion factor from the Valhalla unit to meters.
func metersPerUnit(unit string) float64 {
	if unit == "miles" || unit == "mi" {
		return 1609.344
	}
	return 1000.0
}

func costing(mode string) string {
	switch strings.ToLower(mode) {
	case "", "driving", "auto", "car", "traffic", "driving-traffic":
		return "auto"
	case "walking", "pedestrian":
		return "pedestrian"
	case "cycling", "bicycle":
		return "bicycle"
	default:
		return mode
	}
}

// GetRoute posts request to /route.
func (vc *ValhallaClient) GetRoute(ctx context.Context, request RouteRequest) (*RouteResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "marshal route request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/route", vc.BaseURL), bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := vc.Client.Do(req)
	if err != nil {
		vc.logger.Debug("valhalla request failed", zap.Error(err))
		return nil, errors.Wrap(lookup.Classify(err), err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(lookup.ErrUnavailable, "read Valhalla response body: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(bodyBytes, &apiErr)
		if noRouteCodes[apiErr.ErrorCode] {
			return nil, errors.Wrapf(lookup.ErrNoRoute, "valhalla %d: %s", apiErr.ErrorCode, apiErr.Error)
		}
		vc.logger.Warn("valhalla error", zap.Int("status", resp.StatusCode), zap.Int("error_code", apiErr.ErrorCode), zap.String("error", apiErr.Error))
		if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
			return nil, errors.Wrapf(lookup.ErrTimeout, "valhalla status %d", resp.StatusCode)
		}
		return nil, errors.Wrapf(lookup.ErrUnavailable, "valhalla status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var routeResponse RouteResponse
	if err := json.Unmarshal(bodyBytes, &routeResponse); err != nil {
		return nil, errors.Wrap(lookup.ErrUnavailable, "decode Valhalla route response: "+err.Error())
	}
	return &routeResponse, nil
}

// CalculateRoute requests a single route without narrative.
func (vc *ValhallaClient) CalculateRoute(ctx context.Context, from, to model.Coordinate, mode string) (model.Route, error) {
	units := "kilometers"
	directions := "none"
	resp, err := vc.GetRoute(ctx, RouteRequest{
		Locations: []Location{
			{Lat: from.Latitude, Lon: from.Longitude},
			{Lat: to.Latitude, Lon: to.Longitude},
		},
		Costing:        costing(mode),
		Units:          &units,
		DirectionsType: &directions,
	})
	if err != nil {
		return model.Route{}, err
	}
	trip := resp.Trip
	if len(trip.Legs) == 0 {
		return model.Route{}, errors.Wrapf(lookup.ErrNoRoute, "valhalla trip has no legs (status %d: %s)", trip.Status, trip.StatusMessage)
	}

	return model.Route{
		DistanceMeters:  trip.Summary.Length * metersPerUnit(trip.Units),
		DurationSeconds: trip.Summary.Time,
		Polyline:        trip.Legs[0].Shape,
		Precision:       6,
	}, nil
}
