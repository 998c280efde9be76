// Package signal tracks which users are currently online. Clients heartbeat
// periodically; an entry that misses its TTL window silently expires. The
// registry is advisory presence data, not an authorization surface.
package signal

import (
	"context"
	"time"
)

// DefaultTTL is the presence window. A client that has not heartbeated
// within it is considered offline.
const DefaultTTL = 90 * time.Second

// Registry is the presence storage contract.
type Registry interface {
	// Heartbeat marks the user online and refreshes their TTL.
	Heartbeat(ctx context.Context, userID string) error
	// Offline removes the user immediately, for explicit logouts.
	Offline(ctx context.Context, userID string) error
	// Online lists the user ids currently within their TTL window.
	Online(ctx context.Context) ([]string, error)
	// IsOnline reports whether a single user is within their TTL window.
	IsOnline(ctx context.Context, userID string) (bool, error)
}
