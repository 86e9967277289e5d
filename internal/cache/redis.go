package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultAddressTTL = 24 * time.Hour

// AddressCache keeps reverse-geocode labels in redis so every session on every
// instance shares them.
type AddressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the redis instance at url (redis://...).
func New(ctx context.Context, url string, ttl time.Duration) (*AddressCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, ttl), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *AddressCache {
	if ttl <= 0 {
		ttl = defaultAddressTTL
	}
	return &AddressCache{client: client, ttl: ttl}
}

func (c *AddressCache) GetAddress(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *AddressCache) SetAddress(ctx context.Context, key, address string) error {
	return c.client.Set(ctx, key, address, c.ttl).Err()
}

func (c *AddressCache) Close() error {
	return c.client.Close()
}
