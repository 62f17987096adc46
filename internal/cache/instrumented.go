package cache

import "context"

// instrumentedStore records cache_* metrics for the store it wraps.
type instrumentedStore struct {
	inner Store
	group string
}

// newInstrumentedStore wraps inner and registers a collector reporting its
// size at scrape time, so Redis expiry is reflected without bookkeeping.
func newInstrumentedStore(inner Store, group string) *instrumentedStore {
	registerEntriesCollector(group, inner.Len)
	return &instrumentedStore{inner: inner, group: group}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (string, bool) {
	checksum, ok := s.inner.Get(ctx, key)
	if ok {
		HitsTotal.WithLabelValues(s.group).Inc()
	} else {
		MissesTotal.WithLabelValues(s.group).Inc()
	}
	return checksum, ok
}

func (s *instrumentedStore) Set(ctx context.Context, key, checksum string) {
	s.inner.Set(ctx, key, checksum)
}

func (s *instrumentedStore) Len() int {
	return s.inner.Len()
}

// Close unregisters the entries collector and closes the underlying store.
func (s *instrumentedStore) Close() error {
	unregisterEntriesCollector(s.group)
	return s.inner.Close()
}
