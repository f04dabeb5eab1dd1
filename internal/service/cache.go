// cache.go — LRU-кэш отчётов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш отчётов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша отчётов.",
	})
)

// CacheService — LRU-кэш отчётов с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш.
type CacheService struct {
	cache *expirable.LRU[string, *model.InspectionReport]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.InspectionReport](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает отчёт из кэша по id.
// Возвращает (отчёт, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(reportID string) (*model.InspectionReport, bool) {
	val, ok := c.cache.Get(reportID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет отчёт в кэше.
func (c *CacheService) Set(reportID string, report *model.InspectionReport) {
	c.cache.Add(reportID, report)
}

// Delete удаляет отчёт из кэша (инвалидация при изменении или удалении).
func (c *CacheService) Delete(reportID string) {
	c.cache.Remove(reportID)
}
