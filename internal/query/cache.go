package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrClosed is the error of entries requested after Close
var ErrClosed = errors.New("query cache closed")

// Status is the lifecycle state of a cache entry
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Key identifies a query by logical name and parameters
type Key struct {
	name   string
	params []string
	id     string
}

// NewKey builds a key such as NewKey("history", "btc-bitcoin")
func NewKey(name string, params ...string) Key {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range params {
		b.WriteByte(0)
		b.WriteString(p)
	}
	return Key{name: name, params: append([]string(nil), params...), id: b.String()}
}

// Name returns the logical query name
func (k Key) Name() string { return k.name }

// Params returns a copy of the key parameters
func (k Key) Params() []string { return append([]string(nil), k.params...) }

// Equal reports whether two keys have the same identity
func (k Key) Equal(other Key) bool { return k.id == other.id }

func (k Key) String() string {
	if len(k.params) == 0 {
		return "[" + k.name + "]"
	}
	return "[" + k.name + " " + strings.Join(k.params, " ") + "]"
}

// FetchFunc loads the data for a key. It receives a context that is detached
// from whichever caller triggered it.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is a snapshot of a cached query. Data is set only when Status is
// StatusSuccess and Err only when Status is StatusError.
type Entry struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	FetchedAt time.Time
	// Refreshing is true while a background refetch of a success entry runs
	Refreshing bool
}

// Stats summarizes cache contents
type Stats struct {
	Entries int   `json:"entries"`
	Pending int   `json:"pending"`
	Success int   `json:"success"`
	Error   int   `json:"error"`
	Fetches int64 `json:"fetches"`
}

type record struct {
	entry    Entry
	flight   *flight // non-nil while a fetch is in flight
	lastUsed time.Time
	// dropped marks a record invalidated mid-fetch; it is removed once the fetch settles
	dropped bool
}

// flight is one underlying fetch shared by every caller that joins it
type flight struct {
	done   chan struct{}
	result Entry
}

// Options configures a Cache
type Options struct {
	// StaleTime is the age after which a success entry is refreshed in the
	// background on access. Zero disables background refresh.
	StaleTime time.Duration
	// GCTime is how long an idle resolved entry is retained. Zero disables eviction.
	GCTime time.Duration
	Clock  clockwork.Clock
}

// Cache memoizes query results and guarantees at most one fetch in flight per key
type Cache struct {
	mu      sync.Mutex
	records map[string]*record

	clock     clockwork.Clock
	staleTime time.Duration
	gcTime    time.Duration
	fetches   atomic.Int64

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
}

// New creates a cache and starts its eviction sweeper when GCTime is set
func New(opts Options) *Cache {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	base, cancel := context.WithCancel(context.Background())

	c := &Cache{
		records:   make(map[string]*record),
		clock:     clock,
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		base:      base,
		cancel:    cancel,
		stop:      make(chan struct{}),
	}

	if c.gcTime > 0 {
		c.wg.Add(1)
		go c.sweep()
	}
	return c
}

// Query returns the entry for key, fetching it if there is no usable entry.
// A pending entry is joined rather than refetched. The returned error is
// non-nil only when ctx ends before the entry resolves; the fetch itself keeps
// running and its result stays available to later callers.
func (c *Cache) Query(ctx context.Context, key Key, fetch FetchFunc) (Entry, error) {
	entry, f := c.acquire(key, fetch)
	if entry.Status != StatusPending {
		return entry, nil
	}

	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Start makes sure key is resolved or being fetched and returns the current
// snapshot without waiting.
func (c *Cache) Start(key Key, fetch FetchFunc) Entry {
	entry, _ := c.acquire(key, fetch)
	return entry
}

// Peek returns the current snapshot for key without triggering a fetch
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key.id]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

// Invalidate removes key so the next Query refetches it. A key with a fetch
// in flight keeps that fetch: callers in the meantime join it, and the key is
// removed once it settles, so a single refetch follows.
func (c *Cache) Invalidate(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key.id]
	if !ok {
		return false
	}
	c.drop(key.id, rec)
	return true
}

// InvalidatePrefix removes every entry whose key has the given name
func (c *Cache) InvalidatePrefix(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, rec := range c.records {
		if rec.entry.Key.name == name {
			c.drop(id, rec)
			n++
		}
	}
	return n
}

// drop must be called with c.mu held
func (c *Cache) drop(id string, rec *record) {
	if rec.flight != nil {
		rec.dropped = true
		return
	}
	delete(c.records, id)
}

// Stats returns entry counts by status and the total number of fetches started
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Entries: len(c.records), Fetches: c.fetches.Load()}
	for _, rec := range c.records {
		switch rec.entry.Status {
		case StatusPending:
			s.Pending++
		case StatusSuccess:
			s.Success++
		case StatusError:
			s.Error++
		}
	}
	return s
}

// Close stops the sweeper and cancels in-flight fetches. Keys that would need
// a fetch afterwards resolve to an error entry carrying ErrClosed.
func (c *Cache) Close() {
	c.once.Do(func() {
		// cancel under mu so no launch can call wg.Add once Wait may be running
		c.mu.Lock()
		c.cancel()
		c.mu.Unlock()
		close(c.stop)
	})
	c.wg.Wait()
}

// acquire returns the record for key, starting a fetch when the entry is
// missing, failed, or stale, and returns the snapshot plus the in-flight fetch if any.
func (c *Cache) acquire(key Key, fetch FetchFunc) (Entry, *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	rec, ok := c.records[key.id]
	if c.base.Err() != nil {
		if ok && rec.entry.Status != StatusError {
			return rec.entry, rec.flight
		}
		return Entry{Key: key, Status: StatusError, Err: ErrClosed, FetchedAt: now}, nil
	}
	if !ok {
		rec = &record{}
		c.records[key.id] = rec
	}
	rec.lastUsed = now

	switch {
	case !ok || rec.entry.Status == StatusError:
		rec.entry = Entry{Key: key, Status: StatusPending}
		c.launch(rec, key, fetch)
	case rec.entry.Status == StatusSuccess && rec.flight == nil && c.isStale(rec, now):
		rec.entry.Refreshing = true
		c.launch(rec, key, fetch)
	}
	return rec.entry, rec.flight
}

func (c *Cache) isStale(rec *record, now time.Time) bool {
	return c.staleTime > 0 && now.Sub(rec.entry.FetchedAt) >= c.staleTime
}

// launch must be called with c.mu held
func (c *Cache) launch(rec *record, key Key, fetch FetchFunc) {
	f := &flight{done: make(chan struct{})}
	rec.flight = f
	c.fetches.Add(1)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		data, err := call(c.base, fetch)

		c.mu.Lock()
		now := c.clock.Now()
		switch {
		case err == nil:
			rec.entry = Entry{Key: key, Status: StatusSuccess, Data: data, FetchedAt: now}
		case rec.entry.Status == StatusSuccess:
			slog.Warn("query_refresh_failed", "key", key.String(), "error", err)
			rec.entry.Refreshing = false
		default:
			slog.Warn("query_fetch_failed", "key", key.String(), "error", err)
			rec.entry = Entry{Key: key, Status: StatusError, Err: err, FetchedAt: now}
		}
		rec.flight = nil
		f.result = rec.entry
		if rec.dropped && c.records[key.id] == rec {
			delete(c.records, key.id)
		}
		c.mu.Unlock()

		close(f.done)
	}()
}

// call runs fetch, converting a panic into an error so waiters are always released
func call(ctx context.Context, fetch FetchFunc) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (c *Cache) sweep() {
	defer c.wg.Done()

	interval := c.gcTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.evictIdle()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evictIdle() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, rec := range c.records {
		if rec.flight == nil && now.Sub(rec.lastUsed) >= c.gcTime {
			delete(c.records, id)
		}
	}
}
