// Package lookup declares the map backends the selection controller talks to
// and the error taxonomy every backend adapter maps its failures onto.
package lookup

import (
	"context"
	"errors"
	"net"

	"github.com/bwise1/ride_pinpoint/internal/model"
)

var (
	ErrInvalidCoordinate = errors.New("coordinate outside service area")
	ErrNotFound          = errors.New("no match found")
	ErrTimeout           = errors.New("lookup timed out")
	ErrUnavailable       = errors.New("lookup backend unavailable")
	ErrNoRoute           = errors.New("no route between endpoints")
	// ErrCancelled marks work superseded by a newer request. It is never shown to users.
	ErrCancelled = errors.New("lookup cancelled")
)

// GeocodingClient turns text into a position and a position into a label.
type GeocodingClient interface {
	ForwardGeocode(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error)
	ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error)
}

// AddressSearchClient backs search-as-you-type. Suggestions with a placeholder
// coordinate carry a handle that Resolve turns into a real position.
type AddressSearchClient interface {
	Search(ctx context.Context, text string, bias model.BiasRegion) ([]model.AddressSuggestion, error)
	Resolve(ctx context.Context, handle string) (model.Coordinate, error)
}

type RoutingClient interface {
	CalculateRoute(ctx context.Context, from, to model.Coordinate, mode string) (model.Route, error)
}

// Classify maps err onto the taxonomy. Errors already in the taxonomy are
// returned untouched; nil stays nil.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrInvalidCoordinate),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrNoRoute):
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}

// IsCancelled reports whether err means the caller gave up on the result.
func IsCancelled(err error) bool {
	return errors.Is(Classify(err), ErrCancelled)
}
