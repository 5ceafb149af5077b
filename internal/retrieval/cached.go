package retrieval

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/cache"
	"github.com/rag-agent/backend/internal/metrics"
	"github.com/rag-agent/backend/pkg/logger"
	"github.com/rag-agent/backend/pkg/utils"
)

// CachedRetriever memoizes search results. Cache failures are invisible to
// callers: a broken or absent cache just means every lookup misses.
type CachedRetriever struct {
	inner      Retriever
	cache      cache.Cache
	collection string
	ttl        time.Duration
}

func NewCachedRetriever(inner Retriever, c cache.Cache, collection string, ttl time.Duration) *CachedRetriever {
	return &CachedRetriever{inner: inner, cache: c, collection: collection, ttl: ttl}
}

func (r *CachedRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	key := utils.CacheKey(query, topK, r.collection)

	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, key); ok {
			var docs []Document
			if err := json.Unmarshal(data, &docs); err == nil {
				metrics.CacheHits.WithLabelValues("retrieval").Inc()
				return docs, nil
			}
			logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
		}
		metrics.CacheMisses.WithLabelValues("retrieval").Inc()
	}

	docs, err := r.inner.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(docs); err == nil {
			if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
				logger.Warn("Failed to cache retrieval result", zap.Error(err))
			}
		}
	}

	return docs, nil
}
