package query

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Observe when the observer moved to another key
// (or was reset) before the result for the awaited key arrived.
var ErrSuperseded = errors.New("query superseded")

// Observer tracks a single declared dependency. Declaring the same key again
// only reads the cache; a fetch is issued only when the key identity changes.
// Results for a key the observer has since left are never handed back.
type Observer struct {
	cache *Cache

	mu      sync.Mutex
	current Key
	active  bool
	gen     uint64
}

// NewObserver creates an observer backed by cache
func NewObserver(cache *Cache) *Observer {
	return &Observer{cache: cache}
}

// Observe declares key as the observer's dependency and returns its entry,
// waiting for a pending fetch.
func (o *Observer) Observe(ctx context.Context, key Key, fetch FetchFunc) (Entry, error) {
	o.mu.Lock()
	changed := !o.active || !o.current.Equal(key)
	if changed {
		o.current = key
		o.active = true
		o.gen++
	}
	gen := o.gen
	o.mu.Unlock()

	var (
		entry Entry
		err   error
	)
	if cached, ok := o.cache.Peek(key); ok && !changed && cached.Status != StatusPending {
		entry = cached
	} else {
		entry, err = o.cache.Query(ctx, key, fetch)
	}
	if err != nil {
		return Entry{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return Entry{}, ErrSuperseded
	}
	return entry, nil
}

// Current returns the declared key, if any
func (o *Observer) Current() (Key, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.active
}

// Reset drops the dependency. Outstanding Observe calls return ErrSuperseded.
func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = false
	o.current = Key{}
	o.gen++
}
