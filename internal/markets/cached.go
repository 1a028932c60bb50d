package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/crossarb/pkg/cache"
	"github.com/quantfold/crossarb/pkg/types"
)

// CachedResolver wraps a Resolver with a TTL cache. Token ids are stable
// for the life of a market, so a long TTL is safe.
type CachedResolver struct {
	inner Resolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedResolver creates a caching resolver.
func NewCachedResolver(inner Resolver, c cache.Cache) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: c,
		ttl:   24 * time.Hour,
	}
}

// TokenPair resolves token ids, consulting the cache first.
func (r *CachedResolver) TokenPair(ctx context.Context, venue, marketID string) (types.TokenPair, error) {
	key := fmt.Sprintf("tokens:%s:%s", venue, marketID)

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			if pair, ok := cached.(types.TokenPair); ok {
				ResolverCacheHitsTotal.Inc()
				return pair, nil
			}
		}
		ResolverCacheMissesTotal.Inc()
	}

	pair, err := r.inner.TokenPair(ctx, venue, marketID)
	if err != nil {
		return types.TokenPair{}, err
	}

	if r.cache != nil {
		// Ristretto applies writes asynchronously; wait so a resolve is
		// never repeated just because the entry is still buffered.
		if r.cache.Set(key, pair, r.ttl) {
			r.cache.Wait()
		}
	}

	return pair, nil
}
