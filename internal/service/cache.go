// cache.go — LRU-кэш известных ISIN поверх справочника instruments.
// Кэшируются только найденные ISIN: отсутствующие проверяются в БД каждый раз.
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/portfolio-tracker/internal/repository"
)

var (
	instrumentCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_instrument_cache_hits_total",
		Help: "Попадания в кэш ISIN",
	})
	instrumentCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_instrument_cache_misses_total",
		Help: "Промахи кэша ISIN",
	})
)

// InstrumentCache — кэш проверки существования ISIN.
type InstrumentCache struct {
	repo  repository.InstrumentRepository
	known *expirable.LRU[string, struct{}]
}

// NewInstrumentCache создаёт кэш на size записей с временем жизни ttl.
func NewInstrumentCache(repo repository.InstrumentRepository, size int, ttl time.Duration) *InstrumentCache {
	return &InstrumentCache{
		repo:  repo,
		known: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

// Known возвращает множество ISIN из isins, присутствующих в справочнике.
func (c *InstrumentCache) Known(ctx context.Context, isins []string) (map[string]bool, error) {
	result := make(map[string]bool, len(isins))
	var misses []string
	for _, isin := range isins {
		if _, ok := c.known.Get(isin); ok {
			instrumentCacheHits.Inc()
			result[isin] = true
			continue
		}
		instrumentCacheMisses.Inc()
		misses = append(misses, isin)
	}

	if len(misses) == 0 {
		return result, nil
	}

	found, err := c.repo.ExistingISINs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for isin := range found {
		c.known.Add(isin, struct{}{})
		result[isin] = true
	}
	return result, nil
}

// Len возвращает количество ISIN в кэше.
func (c *InstrumentCache) Len() int {
	return c.known.Len()
}
