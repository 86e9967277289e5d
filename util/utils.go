package util

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"
)

const MaxQueryLength = 200

// SanitizeQuery keeps letters, digits, whitespace and the punctuation people
// actually type into an address box, caps the result at MaxQueryLength runes
// and trims it. SanitizeQuery(SanitizeQuery(s)) == SanitizeQuery(s).
func SanitizeQuery(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == MaxQueryLength {
			break
		}
		if !allowedQueryRune(r) {
			continue
		}
		if unicode.IsSpace(r) {
			r = ' '
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

func allowedQueryRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		return true
	}
	switch r {
	case ',', '-', '.', '/', '(', ')', '#', '\'', '"', '‘', '’', '“', '”':
		return true
	}
	return false
}

// QueryLength counts runes, not bytes.
func QueryLength(s string) int {
	return len([]rune(s))
}

// DecodePolyline decodes an encoded polyline with the given precision (5 for
// Google/Mapbox "polyline", 6 for "polyline6" and Valhalla).
func DecodePolyline(shape string, precision int) ([]model.Coordinate, error) {
	if shape == "" {
		return nil, nil
	}
	scale := 1e5
	if precision == 6 {
		scale = 1e6
	}
	codec := polyline.Codec{Dim: 2, Scale: scale}
	decoded, _, err := codec.DecodeCoords([]byte(shape))
	if err != nil {
		zap.L().Debug("error decoding polyline", zap.Error(err))
		return nil, fmt.Errorf("failed to decode polyline %w", err)
	}
	coords := make([]model.Coordinate, len(decoded))
	for i, p := range decoded {
		coords[i] = model.Coordinate{Latitude: p[0], Longitude: p[1]}
	}
	return coords, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(coords []model.Coordinate, precision int) string {
	scale := 1e5
	if precision == 6 {
		scale = 1e6
	}
	codec := polyline.Codec{Dim: 2, Scale: scale}
	raw := make([][]float64, len(coords))
	for i, c := range coords {
		raw[i] = []float64{c.Latitude, c.Longitude}
	}
	return string(codec.EncodeCoords(nil, raw))
}
