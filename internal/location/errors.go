package location

import (
	"errors"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
)

var (
	ErrClosed       = errors.New("location controller closed")
	ErrUnknownField = errors.New("unknown location field")
	ErrUnknownTier  = errors.New("unknown service tier")
)

const (
	MsgInvalidPosition = "invalid position"
	MsgNotFound        = "address not found"
	MsgTimeout         = "request timed out"
	MsgUnavailable     = "location services unavailable"
	MsgNoRoute         = "no route available"
)

// Message is the inline text shown for err. Cancellations have none.
func Message(err error) string {
	switch err = lookup.Classify(err); {
	case err == nil, errors.Is(err, lookup.ErrCancelled):
		return ""
	case errors.Is(err, lookup.ErrInvalidCoordinate):
		return MsgInvalidPosition
	case errors.Is(err, lookup.ErrNotFound):
		return MsgNotFound
	case errors.Is(err, lookup.ErrTimeout):
		return MsgTimeout
	case errors.Is(err, lookup.ErrNoRoute):
		return MsgNoRoute
	default:
		return MsgUnavailable
	}
}
