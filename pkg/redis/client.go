package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// NewClient parses the URL, applies the password override and verifies the
// connection with a PING.
func NewClient(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	if password != "" {
		opts.Password = password
	}

	c := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Init initializes the shared Redis client
func Init(url, password string) error {
	c, err := NewClient(url, password)
	if err != nil {
		return err
	}
	client = c
	return nil
}

// SetClient sets the Redis client (used for testing)
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// Close closes the shared client if one was initialized.
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Set stores a key-value pair with expiration
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value by key
func Get(ctx context.Context, key string) (string, error) {
	return client.Get(ctx, key).Result()
}

// Del removes a key
func Del(ctx context.Context, key string) error {
	return client.Del(ctx, key).Err()
}

// SetNX sets a key only if it does not exist
func SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return client.SetNX(ctx, key, value, expiration).Result()
}

// Deduplicator claims one-shot keys so a repeated delivery can be detected.
type Deduplicator struct {
	prefix string
	ttl    time.Duration
}

func NewDeduplicator(prefix string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{prefix: prefix, ttl: ttl}
}

// Claim returns true the first time a key is seen within the TTL.
func (d *Deduplicator) Claim(ctx context.Context, key string) (bool, error) {
	return SetNX(ctx, d.prefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl)
}

// Release forgets a claimed key so a later delivery is processed again.
func (d *Deduplicator) Release(ctx context.Context, key string) error {
	return Del(ctx, d.prefix+key)
}
