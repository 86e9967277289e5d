package model

// RecentPlaceResponse is a suggestion the rider picked earlier.
type RecentPlaceResponse struct {
	ID          int64         `json:"id"`
	Field       LocationField `json:"field"`
	DisplayText string        `json:"display_text"`
	FullAddress string        `json:"full_address"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`
}
