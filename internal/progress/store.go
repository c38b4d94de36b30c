// internal/progress/store.go
//
// Persistence boundary for progress records. Exactly one backend is chosen
// at startup (sqlite by default, redis for hosted deployments, memory for
// tests); all of them store one JSON object per player key.
package progress

import (
	"context"
	"errors"
)

// ErrPersistence marks a failure to durably read or write a record after
// the retry budget is spent. The in-memory state is not advanced when this
// is returned; the UI should warn that progress was not saved.
var ErrPersistence = errors.New("progress not persisted")

// Store loads and saves progress records.
//
// Load never fails because of corrupt stored data: backends repair what
// they can via decodeRecord and synthesize (and persist) the default
// record when the key is missing. Load only errors on I/O failure.
//
// Save persists the full record atomically from the caller's perspective:
// a concurrent Load must never observe a half-written record.
type Store interface {
	Load(ctx context.Context, playerID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Close() error
}
