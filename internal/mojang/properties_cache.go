package mojang

import (
	"context"
	"sync"
	"time"

	"github.com/brunomvsouza/singleflight"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"ely.by/mcauth/internal/otel"
)

// PropertiesProviderWithInMemoryCache keeps session server answers for a short time
// and collapses concurrent lookups of the same profile into a single request
type PropertiesProviderWithInMemoryCache struct {
	provider PropertiesProvider
	ttl      time.Duration
	once     sync.Once
	cache    *ttlcache.Cache[uuid.UUID, *ProfileResponse]
	group    singleflight.Group[uuid.UUID, *ProfileResponse]
	metrics  *propertiesCacheMetrics
}

func NewPropertiesProviderWithInMemoryCache(provider PropertiesProvider, ttl time.Duration) (*PropertiesProviderWithInMemoryCache, error) {
	metrics, err := newPropertiesCacheMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = time.Minute
	}

	return &PropertiesProviderWithInMemoryCache{
		provider: provider,
		ttl:      ttl,
		cache: ttlcache.New[uuid.UUID, *ProfileResponse](
			ttlcache.WithDisableTouchOnHit[uuid.UUID, *ProfileResponse](),
		),
		metrics: metrics,
	}, nil
}

func (s *PropertiesProviderWithInMemoryCache) GetProfileProperties(ctx context.Context, id uuid.UUID) (*ProfileResponse, error) {
	item := s.cache.Get(id)
	if item != nil {
		s.metrics.Hits.Add(ctx, 1)
		return item.Value(), nil
	}

	s.metrics.Misses.Add(ctx, 1)

	result, err, shared := s.group.Do(id, func() (*ProfileResponse, error) {
		result, err := s.provider.GetProfileProperties(ctx, id)
		if err != nil {
			return nil, err
		}

		s.cache.Set(id, result, s.ttl)
		// Call it only after first set so GC will work more often
		s.startGcOnce()

		return result, nil
	})
	if shared {
		s.metrics.Shared.Add(ctx, 1)
	}

	return result, err
}

func (s *PropertiesProviderWithInMemoryCache) StopGC() {
	// If you call the Stop() on a non-started GC, the process will hang trying to close the uninitialized channel
	s.startGcOnce()
	s.cache.Stop()
}

func (s *PropertiesProviderWithInMemoryCache) startGcOnce() {
	s.once.Do(func() {
		go s.cache.Start()
	})
}

func newPropertiesCacheMetrics(meter metric.Meter) (*propertiesCacheMetrics, error) {
	m := &propertiesCacheMetrics{}
	var errors, err error

	m.Hits, err = meter.Int64Counter(
		"mcauth.mojang.properties.cache.hit",
		metric.WithDescription("Number of profile properties found in the local cache"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Misses, err = meter.Int64Counter(
		"mcauth.mojang.properties.cache.miss",
		metric.WithDescription("Number of profile properties missing from the local cache"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Shared, err = meter.Int64Counter(
		"mcauth.mojang.properties.singleflight.shared",
		metric.WithDescription("Number of lookups which joined an already running request"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	return m, errors
}

type propertiesCacheMetrics struct {
	Hits   metric.Int64Counter
	Misses metric.Int64Counter
	Shared metric.Int64Counter
}
