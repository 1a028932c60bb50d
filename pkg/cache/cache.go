package cache

import "time"

// Cache is the interface for caching market metadata.
type Cache interface {
	// Get retrieves a value. Returns (nil, false) when absent.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. Returns false when the write was dropped.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Wait blocks until pending writes are applied, so a Set is visible to
	// the next Get.
	Wait()

	// Close releases cache resources.
	Close()
}
