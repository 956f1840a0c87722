// Package lock provides per-key mutual exclusion with a bounded wait.
package lock

import (
	"context"
	"sync"
	"time"

	"familydose/internal/apperr"
)

// DefaultTimeout is used when a non-positive timeout is configured.
const DefaultTimeout = 2 * time.Second

// Keyed serializes work per key. Callers contending beyond the timeout get
// an apperr Busy error instead of queuing indefinitely.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewKeyed creates a keyed lock with the given maximum wait.
func NewKeyed(timeout time.Duration) *Keyed {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Keyed{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Lock acquires key and returns the function that releases it.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	e := k.acquireEntry(key)

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				k.releaseEntry(key, e)
			})
		}, nil
	case <-timer.C:
		k.releaseEntry(key, e)
		return nil, apperr.Busyf("%s is busy, try again", key)
	case <-ctx.Done():
		k.releaseEntry(key, e)
		return nil, apperr.Wrap(apperr.Busy, ctx.Err(), "%s is busy, try again", key)
	}
}

func (k *Keyed) acquireEntry(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) releaseEntry(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// HouseholdKey scopes a lock to one household.
func HouseholdKey(connect string) string {
	return "household " + connect
}

// DoseKey scopes a lock to one ledger row.
func DoseKey(userID, itemID, date, timeOfDay string) string {
	return "dose " + userID + "/" + itemID + "/" + date + "/" + timeOfDay
}
