// Package idempotency guards the non-atomic provisioning mutation against
// client retries. The two backing stores have no joint transaction, so a
// retried request must not run the mutation twice; instead the recorded
// outcome of the first attempt is replayed.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrNotRecorded is returned when no result exists for a key.
var ErrNotRecorded = errors.New("no recorded result")

// Result is the recorded outcome of a completed provisioning request.
type Result struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Recorder stores provisioning results keyed by the client-supplied
// idempotency key. Entries expire after the recorder's TTL.
type Recorder interface {
	// Get returns the recorded result for key, or ErrNotRecorded.
	Get(ctx context.Context, key string) (*Result, error)
	// Put records the result for key.
	Put(ctx context.Context, key string, result Result) error
}

// DefaultTTL bounds how long a recorded result is replayable.
const DefaultTTL = 24 * time.Hour
