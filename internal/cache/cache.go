package cache

import "context"

// EvictCallback is called when a checksum is evicted from the store.
// Redis relies on server-side expiry and never calls it.
type EvictCallback func(key, checksum string)

// Store keeps the checksums of downloaded edition files, keyed by file
// identity (path, size and modification time). A hit lets the fetcher skip
// re-hashing a large file it has already seen.
type Store interface {
	// Get returns the checksum stored under key and true, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores checksum under key, replacing any previous value.
	Set(ctx context.Context, key, checksum string)

	// Len returns the number of checksums currently held.
	Len() int

	// Close releases the backend connection, if any.
	Close() error
}
