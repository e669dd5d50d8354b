// Package pipeline turns source adapters into cache-aware signal feeds. Each
// pipeline answers from a fresh cache entry when it can, otherwise calls its
// source, writes the result through to the cache and durable history, and falls
// back to the last stale entry or a neutral value when the source fails.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/cache"
	"github.com/jwolfsohn/Atlas-Sentinel/metrics"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
	"github.com/jwolfsohn/Atlas-Sentinel/source"
)

const (
	SignalTraffic = "traffic"
	SignalWeather = "weather"
	SignalNews    = "news"
)

// ErrSourceUnavailable is recovered inside the pipelines and never returned to callers.
var ErrSourceUnavailable = source.ErrUnavailable

var ErrInvalidSelector = errors.New("invalid selector")

// PortLookup resolves port ids; registry.Store satisfies it.
type PortLookup interface {
	Port(id string) (models.Port, error)
}

// cached returns the fresh entry for key unless force is set.
func cached[T any](ctx context.Context, c *cache.Cache[T], signal, key string, force bool) (T, bool) {
	if !force {
		if value, _, ok := c.Get(ctx, key); ok {
			metrics.CacheHits.WithLabelValues(signal).Inc()
			return value, true
		}
	}
	metrics.CacheMisses.WithLabelValues(signal).Inc()
	var zero T
	return zero, false
}

// fallback answers a failed source call from the stale entry, else neutral.
func fallback[T any](ctx context.Context, c *cache.Cache[T], signal, key string, cause error, neutral T) T {
	metrics.SourceFailures.WithLabelValues(signal).Inc()
	if stale, ok := c.GetStale(ctx, key); ok {
		metrics.StaleFallbacks.WithLabelValues(signal).Inc()
		log.Printf("%s source failed for key=%s, serving entry from %s: %v",
			signal, key, stale.CreatedAt.Format(time.RFC3339), cause)
		return stale.Value
	}
	log.Printf("%s source failed for key=%s, no cached entry: %v", signal, key, cause)
	return neutral
}

func store[T any](ctx context.Context, c *cache.Cache[T], key string, value T) {
	if err := c.Put(ctx, key, value); err != nil {
		log.Printf("cache write failed: %v", err)
	}
}

func historyFailed(kind string, err error) {
	metrics.HistoryWriteFailures.WithLabelValues(kind).Inc()
	log.Printf("history write failed for %s: %v", kind, err)
}
