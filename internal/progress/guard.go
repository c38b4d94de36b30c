// internal/progress/guard.go
//
// Guard is the only write path to a progress record. It makes the
// load-mutate-save cycle atomic per player: concurrent awards, spends, and
// unlocks queue behind one another and each sees the previous commit, so
// no update is ever lost.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Mutation transforms the working copy of a record. It must validate before
// mutating; returning an error aborts the operation without a write and the
// error propagates unchanged to the caller.
type Mutation func(rec *Record) error

// Guard serializes mutations per player record and persists the result with
// a bounded retry.
type Guard struct {
	store       Store
	saveRetries uint64

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-player, created on first use
}

// updateDeadline bounds a detached Update once the caller's context no
// longer applies.
const updateDeadline = 15 * time.Second

// NewGuard wraps store. saveRetries is the number of retries after the
// first save attempt; the spec's floor is 1.
func NewGuard(store Store, saveRetries uint64) *Guard {
	if saveRetries < 1 {
		saveRetries = 1
	}
	return &Guard{
		store:       store,
		saveRetries: saveRetries,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the player's mutex. Waiters wake in whatever order the
// runtime picks, not strictly first-come-first-served; every waiter reloads
// the committed record before mutating, so ordering only decides which
// mutation commits first, never whether it commits.
func (g *Guard) lockFor(playerID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[playerID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[playerID] = l
	}
	return l
}

// Update acquires exclusive access to the player's record, loads the
// freshest committed state, applies op to a private copy, and persists it.
// The returned record is the authoritative post-write state, so callers
// never need a separate re-fetch to reconcile.
//
// Domain failures from op leave the stored record untouched. Save failures
// are retried with exponential backoff and surface as ErrPersistence once
// the budget is spent; the record is not considered advanced until
// persisted.
func (g *Guard) Update(ctx context.Context, playerID string, op Mutation) (*Record, error) {
	// A submitted mutation is honored even if the caller goes away: a
	// player closing the tab right after a game result must not lose the
	// coins. The write runs detached from the request's cancellation,
	// under its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateDeadline)
	defer cancel()

	l := g.lockFor(playerID)
	l.Lock()
	defer l.Unlock()

	rec, err := g.store.Load(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	next := rec.Clone()
	if err := op(next); err != nil {
		return nil, err
	}
	next.Touch(time.Now())

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	attempt := 0
	err = backoff.Retry(func() error {
		if err := g.store.Save(ctx, next); err != nil {
			attempt++
			log.Warn().Err(err).Str("player", playerID).Int("attempt", attempt).Msg("progress save failed")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, g.saveRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return next, nil
}

// Current returns the latest committed record without mutating it.
// Display reads may be stale by at most one in-flight Update.
func (g *Guard) Current(ctx context.Context, playerID string) (*Record, error) {
	rec, err := g.store.Load(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return rec, nil
}

// IsPersistenceErr reports whether err is a persistence failure as opposed
// to a domain failure.
func IsPersistenceErr(err error) bool { return errors.Is(err, ErrPersistence) }
