package model

// FieldProjection is the read-only view of one field handed to the UI layer.
type FieldProjection struct {
	Coordinate   *Coordinate         `json:"coordinate,omitempty"`
	AddressText  string              `json:"address_text"`
	Origin       AddressOrigin       `json:"origin"`
	IsResolving  bool                `json:"is_resolving"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Suggestions  []AddressSuggestion `json:"suggestions"`
}

type EstimateProjection struct {
	DistanceFormatted string       `json:"distance_formatted"`
	FareFormatted     string       `json:"fare_formatted"`
	ShowEstimate      bool         `json:"show_estimate"`
	IsResolving       bool         `json:"is_resolving"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	Path              []Coordinate `json:"path,omitempty"`
}

type Projection struct {
	Pickup       FieldProjection    `json:"pickup"`
	Destination  FieldProjection    `json:"destination"`
	ActiveField  LocationField      `json:"active_field"`
	ServiceTier  ServiceTier        `json:"service_tier"`
	CustomPickup bool               `json:"custom_pickup"`
	Estimate     EstimateProjection `json:"estimate"`
}

// Field returns the projection for f; FieldNone yields the zero value.
func (p Projection) Field(f LocationField) FieldProjection {
	switch f {
	case FieldPickup:
		return p.Pickup
	case FieldDestination:
		return p.Destination
	default:
		return FieldProjection{}
	}
}
