package lookup

import (
	"context"
	"fmt"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AddressCache stores reverse-geocode labels.
type AddressCache interface {
	GetAddress(ctx context.Context, key string) (string, bool, error)
	SetAddress(ctx context.Context, key, address string) error
}

// CachedGeocoder serves reverse lookups from an AddressCache and collapses
// concurrent lookups of the same rounded position into one backend call.
// Forward lookups pass straight through.
type CachedGeocoder struct {
	next   GeocodingClient
	cache  AddressCache
	logger *zap.Logger
	group  singleflight.Group
}

func NewCachedGeocoder(next GeocodingClient, cache AddressCache, logger *zap.Logger) *CachedGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGeocoder{next: next, cache: cache, logger: logger}
}

// CacheKey rounds to 5 decimals (about a metre) so jitter in a settled
// position still hits.
func CacheKey(coord model.Coordinate) string {
	return fmt.Sprintf("revgeo:%.5f:%.5f", coord.Latitude, coord.Longitude)
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error) {
	return c.next.ForwardGeocode(ctx, text, bias)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error) {
	key := CacheKey(coord)
	if address, ok, err := c.cache.GetAddress(ctx, key); err != nil {
		c.logger.Warn("address cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return address, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// detached so one caller's cancellation doesn't fail the others
		address, err := c.next.ReverseGeocode(context.WithoutCancel(ctx), coord)
		if err != nil {
			return "", err
		}
		if err := c.cache.SetAddress(context.WithoutCancel(ctx), key, address); err != nil {
			c.logger.Warn("address cache write failed", zap.String("key", key), zap.Error(err))
		}
		return address, nil
	})

	select {
	case <-ctx.Done():
		return "", ErrCancelled
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
