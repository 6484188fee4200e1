package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// ResultCache caches compiled invoice results keyed by the uploaded
// document's content digest, so re-uploads of the same file skip the
// pipeline entirely.
type ResultCache struct {
	client Client
	ttl    time.Duration
}

// NewResultCache wraps a cache client with invoice-result semantics.
func NewResultCache(client Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{client: client, ttl: ttl}
}

// DocumentKey derives the cache key for an uploaded document. The flavor is
// part of the key: the same PDF parsed with a different strategy chain is a
// different result.
func DocumentKey(content []byte, flavor domain.ExtractionFlavor) string {
	sum := sha256.Sum256(content)
	return "result:" + hex.EncodeToString(sum[:]) + ":" + string(flavor)
}

// Get returns the cached result for key, or ErrCacheMiss.
func (rc *ResultCache) Get(ctx context.Context, key string) (*domain.InvoiceResult, error) {
	data, err := rc.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var result domain.InvoiceResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		_ = rc.client.Delete(ctx, key)
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// Set stores a compiled result under key.
func (rc *ResultCache) Set(ctx context.Context, key string, result *domain.InvoiceResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return rc.client.Set(ctx, key, data, rc.ttl)
}
