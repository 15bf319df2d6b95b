package cache

import (
	"context"
	"errors"
	"time"
)

// Tiered reads through a fast front cache to a slower back cache. Hits in
// the back tier are copied to the front with frontTTL.
type Tiered struct {
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewTiered combines front and back caches.
func NewTiered(front, back Cache, frontTTL time.Duration) *Tiered {
	return &Tiered{front: front, back: back, frontTTL: frontTTL}
}

// Get checks the front tier first, then the back tier.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, err := t.front.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}
	data, ok, err := t.back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.front.Set(ctx, key, data, t.frontTTL)
	return data, true, nil
}

// Set writes to both tiers.
func (t *Tiered) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	frontTTL := t.frontTTL
	if ttl > 0 && (frontTTL == 0 || ttl < frontTTL) {
		frontTTL = ttl
	}
	_ = t.front.Set(ctx, key, data, frontTTL)
	return t.back.Set(ctx, key, data, ttl)
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	return errors.Join(t.front.Delete(ctx, key), t.back.Delete(ctx, key))
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	return errors.Join(t.front.Close(), t.back.Close())
}

var _ Cache = (*Tiered)(nil)
