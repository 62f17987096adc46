package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryStore)
}

// memoryStore keeps checksums in an expirable LRU for the lifetime of the process.
type memoryStore struct {
	inner *lru.LRU[string, string]
}

func newMemoryStore(opts Options) (Store, error) {
	var onEvict func(string, string)
	if opts.OnEvict != nil {
		onEvict = func(key, checksum string) {
			opts.OnEvict(key, checksum)
		}
	}
	return &memoryStore{
		inner: lru.NewLRU[string, string](opts.Size, onEvict, opts.TTL),
	}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool) {
	return m.inner.Get(key)
}

func (m *memoryStore) Set(_ context.Context, key, checksum string) {
	m.inner.Add(key, checksum)
}

func (m *memoryStore) Len() int {
	return m.inner.Len()
}

func (m *memoryStore) Close() error {
	return nil
}
