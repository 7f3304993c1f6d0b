package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache, holding the latest snapshot
// per market under a short TTL so API reads never block on the settlement
// engine.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache with the given entry TTL. The TTL
// should be a small multiple of the poll interval; stale-but-present beats
// absent during a settlement-engine hiccup.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

func snapshotKey(market string) string {
	return "snapshot:" + market
}

// SetSnapshot stores the latest snapshot for a market.
func (c *SnapshotCache) SetSnapshot(ctx context.Context, market string, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", market, err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(market), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", market, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot for a market, or domain.ErrNotFound
// when no fresh entry exists.
func (c *SnapshotCache) GetSnapshot(ctx context.Context, market string) (domain.Snapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(market)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, fmt.Errorf("redis: snapshot %s: %w", market, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis: get snapshot %s: %w", market, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", market, err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read refetches. Used after
// a write action lands, where the cached position is known to be stale.
func (c *SnapshotCache) Invalidate(ctx context.Context, market string) error {
	if err := c.rdb.Del(ctx, snapshotKey(market)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot %s: %w", market, err)
	}
	return nil
}
