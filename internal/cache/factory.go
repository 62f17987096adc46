package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options holds the configuration needed to create a checksum store.
type Options struct {
	// Size is the maximum number of checksums kept by the memory provider.
	Size int

	// TTL is how long a checksum stays valid.
	TTL time.Duration

	// OnEvict is called when an entry is evicted. Not all providers support this.
	OnEvict EvictCallback

	// Logger receives backend errors. If nil, errors are silently ignored.
	Logger *zerolog.Logger

	// RedisAddress is the Redis/Valkey server address (e.g., "localhost:6379").
	RedisAddress string

	// RedisPassword is the password for the Redis/Valkey server.
	RedisPassword string

	// RedisDB is the Redis/Valkey database number.
	RedisDB int

	// Path is the snapshot file of the file provider.
	Path string

	// KeyPrefix namespaces keys in shared backends. Defaults to "zeitdl:checksum:".
	KeyPrefix string

	// Group labels the cache_* metrics. When non-empty the store is wrapped
	// with metric instrumentation.
	Group string
}

// Provider is a constructor function that creates a Store from options.
type Provider func(opts Options) (Store, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a store provider under the given name.
// It panics if the name is already registered or the provider is nil.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("cache: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("cache: provider %q already registered", name))
	}
	providers[name] = p
}

// New creates a Store using the named provider. When opts.Group is set the
// store counts hits, misses and evictions under that group label.
func New(name string, opts Options) (Store, error) {
	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}
	if opts.Size <= 0 {
		opts.Size = 64
	}

	if opts.Group == "" {
		return p(opts)
	}

	group := opts.Group
	original := opts.OnEvict
	opts.OnEvict = func(key, checksum string) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if original != nil {
			original(key, checksum)
		}
	}

	inner, err := p(opts)
	if err != nil {
		return nil, err
	}
	return newInstrumentedStore(inner, group), nil
}

// RegisteredProviders returns a sorted list of registered provider names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
