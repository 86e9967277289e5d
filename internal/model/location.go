package model

import (
	"fmt"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsPlaceholder reports whether c is the (0,0) stand-in used by search
// completions whose position has not been resolved yet.
func (c Coordinate) IsPlaceholder() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// IsWGS84 reports whether c lies on the globe at all.
func (c Coordinate) IsWGS84() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Bounds is the rectangular service region.
type Bounds struct {
	MinLatitude  float64 `json:"min_latitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

func (b Bounds) Contains(c Coordinate) bool {
	if !c.IsWGS84() {
		return false
	}
	return c.Latitude >= b.MinLatitude && c.Latitude <= b.MaxLatitude &&
		c.Longitude >= b.MinLongitude && c.Longitude <= b.MaxLongitude
}

// Center returns the midpoint of the region.
func (b Bounds) Center() Coordinate {
	return Coordinate{
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
	}
}

// BiasRegion narrows forward lookups towards the rider.
type BiasRegion struct {
	Focus  *Coordinate
	Bounds Bounds
}

// LocationField identifies which logical slot an input affects.
type LocationField int

const (
	FieldNone LocationField = iota
	FieldPickup
	FieldDestination
)

func (f LocationField) String() string {
	switch f {
	case FieldPickup:
		return "pickup"
	case FieldDestination:
		return "destination"
	default:
		return "none"
	}
}

func (f LocationField) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *LocationField) UnmarshalText(b []byte) error {
	parsed, err := ParseLocationField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func ParseLocationField(s string) (LocationField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pickup":
		return FieldPickup, nil
	case "destination":
		return FieldDestination, nil
	case "none", "":
		return FieldNone, nil
	default:
		return FieldNone, fmt.Errorf("unknown location field %q", s)
	}
}

// AddressOrigin tags how a field's current value was obtained.
type AddressOrigin int

const (
	OriginNone AddressOrigin = iota
	OriginGPS
	OriginCustomText
	OriginMapDrag
	OriginSearchSelection
	OriginFallback
)

func (o AddressOrigin) String() string {
	switch o {
	case OriginGPS:
		return "gps"
	case OriginCustomText:
		return "custom_text"
	case OriginMapDrag:
		return "map_drag"
	case OriginSearchSelection:
		return "search_selection"
	case OriginFallback:
		return "fallback"
	default:
		return "none"
	}
}

func (o AddressOrigin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *AddressOrigin) UnmarshalText(b []byte) error {
	for candidate := OriginNone; candidate <= OriginFallback; candidate++ {
		if candidate.String() == string(b) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown address origin %q", b)
}

// AddressSuggestion is one search-as-you-type candidate. Handle is opaque to
// everything but the search client that produced it.
type AddressSuggestion struct {
	ID          string     `json:"id"`
	DisplayText string     `json:"display_text"`
	FullAddress string     `json:"full_address"`
	Coordinate  Coordinate `json:"coordinate"`
	Handle      string     `json:"-"`
}

// SelectionState is the per-field record owned by the controller. Whether a
// lookup is outstanding belongs to the controller's task slot and is reported
// as FieldProjection.IsResolving.
type SelectionState struct {
	Coordinate  *Coordinate
	AddressText string
	Origin      AddressOrigin
}
