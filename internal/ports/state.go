package ports

import (
	"context"
	"time"
)

// StateStore is the per-client persisted key-value facility: profile cache
// blobs, in-flight fetch leases, recovery counters, pending role markers,
// signup flags, and post-login redirect paths all live here. Keys are scoped
// by an opaque client id so concurrent clients never observe each other's
// state. Values are plain strings or JSON.
type StateStore interface {
	// Get returns the value and true when the key exists.
	Get(ctx context.Context, clientID, key string) (string, bool, error)

	// Set writes a value. A zero ttl means no expiry.
	Set(ctx context.Context, clientID, key, value string, ttl time.Duration) error

	// SetIfNotExists atomically writes a value only when the key is absent,
	// returning true when the write happened. Used as a lease for in-flight
	// fetch markers.
	SetIfNotExists(ctx context.Context, clientID, key, value string, ttl time.Duration) (bool, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, clientID, key string) error

	// ClearClient wipes every key belonging to the client.
	ClearClient(ctx context.Context, clientID string) error
}

// Navigator delivers a navigation instruction to a client. The gateway never
// renders views; it only tells the client shell where to go next.
type Navigator interface {
	Navigate(ctx context.Context, clientID, path string) error
}
