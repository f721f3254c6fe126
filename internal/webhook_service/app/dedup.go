package app

import (
	"sync"
	"time"
)

const (
	defaultDedupTTL        = 10 * time.Minute
	defaultDedupMaxEntries = 5000
)

// DedupStore is an in-memory, time-windowed set of recently seen message ids.
// It is shared by every concurrent request; the check-and-record in Seen is a
// single atomic operation under one mutex. State is not persisted: a restart
// clears the window and upstream redeliveries may briefly slip through.
type DedupStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
	now        func() time.Time
}

// NewDedupStore creates a store with the given TTL window and housekeeping
// threshold. Non-positive arguments fall back to the defaults (10m, 5000).
func NewDedupStore(ttl time.Duration, maxEntries int) *DedupStore {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultDedupMaxEntries
	}
	return &DedupStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
		now:        time.Now,
	}
}

// Seen reports whether key was already recorded within the TTL window. On
// first sight (or after expiry) it records the key and returns false. The
// recorded timestamp is not refreshed by duplicate arrivals.
func (s *DedupStore) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Housekeeping is capacity-triggered rather than timer-driven: sweep
	// expired entries only once the map grows past the threshold.
	if len(s.entries) > s.maxEntries {
		for k, ts := range s.entries {
			if now.Sub(ts) > s.ttl {
				delete(s.entries, k)
			}
		}
	}

	if ts, ok := s.entries[key]; ok && now.Sub(ts) <= s.ttl {
		duplicateEventsCounter.Inc()
		return true
	}
	s.entries[key] = now
	return false
}

// Len returns the number of tracked keys, expired or not.
func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
