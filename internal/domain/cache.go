package domain

import (
	"context"
	"time"
)

// SnapshotCache holds the most recent snapshot per market so readers that
// miss a poll tick (HTTP handlers, the WS hub) never block on the settlement
// engine. Entries expire after roughly one poll interval.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, market string, snap Snapshot) error
	GetSnapshot(ctx context.Context, market string) (Snapshot, error)
	Invalidate(ctx context.Context, market string) error
}

// SignalBus fans out snapshot and action events to interested consumers
// (currently the WebSocket hub).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter guards the API write surface. Allow counts the request against
// the key's window and reports whether it fits under the limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
