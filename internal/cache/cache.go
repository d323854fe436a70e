package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON stores JSON payloads in Redis. Keys live in namespaces that are
// invalidated by bumping a generation counter, so no key scan is needed.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New constructs a JSON cache. A nil client or non-positive ttl disables caching.
func New(client *redis.Client, ttl time.Duration, prefix string) *JSON {
	return &JSON{client: client, ttl: ttl, prefix: prefix}
}

func (c *JSON) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *JSON) genKey(ns string) string {
	return c.prefix + "gen:" + ns
}

// Key returns the versioned key for name inside namespace ns.
func (c *JSON) Key(ctx context.Context, ns, name string) (string, error) {
	if !c.enabled() {
		return "", nil
	}
	gen, err := c.client.Get(ctx, c.genKey(ns)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return c.prefix + ns + ":v" + strconv.FormatInt(gen, 10) + ":" + name, nil
}

// Get unmarshals a cached payload into dst and reports whether it was found.
func (c *JSON) Get(ctx context.Context, ns, name string, dst any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	key, err := c.Key(ctx, ns, name)
	if err != nil {
		return false, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under name in namespace ns with the configured ttl.
func (c *JSON) Set(ctx context.Context, ns, name string, v any) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.Key(ctx, ns, name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops every entry of namespace ns by moving to a new generation.
func (c *JSON) Invalidate(ctx context.Context, ns string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, c.genKey(ns)).Err()
}

// Remember returns the cached value for name or computes, stores and returns it.
// Cache failures fall through to load.
func Remember[T any](ctx context.Context, c *JSON, ns, name string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := c.Get(ctx, ns, name, &cached); err == nil && ok {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, ns, name, v)
	return v, nil
}
