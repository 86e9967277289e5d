package model

import (
	"fmt"
	"strings"
)

type ServiceTier string

const (
	TierEconomy  ServiceTier = "economy"
	TierStandard ServiceTier = "standard"
	TierPremium  ServiceTier = "premium"
)

func ParseServiceTier(s string) (ServiceTier, error) {
	switch t := ServiceTier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierEconomy, TierStandard, TierPremium:
		return t, nil
	default:
		return "", fmt.Errorf("unknown service tier %q", s)
	}
}

// Route is what a routing backend returns for a pair of endpoints.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Polyline        string
	// Precision is the polyline encoding precision (5 or 6).
	Precision int
}

// RouteEstimate is derived from a Route and the active tier.
type RouteEstimate struct {
	DistanceMeters    float64      `json:"distance_meters"`
	DistanceFormatted string       `json:"distance_formatted"`
	Fare              float64      `json:"fare"`
	FareFormatted     string       `json:"fare_formatted"`
	Tier              ServiceTier  `json:"tier"`
	Path              []Coordinate `json:"path,omitempty"`
}
