// Package carbon holds the grid carbon intensity domain: the provider
// abstraction with its caching and fallback chain, the emissions calculator
// and the carbon budget.
package carbon

import (
	"context"
	"sync"
	"time"

	"github.com/maelqr/carbonsched/core/logger"
	"github.com/maelqr/carbonsched/core/model"
)

// Provider returns the current carbon intensity for a grid region.
// Implementations may fail; CachedProvider turns failures into degraded
// readings so schedulers never see an error.
type Provider interface {
	Current(ctx context.Context, region string) (model.CarbonReading, error)
}

// RegionalAverages maps grid regions to static average intensities in
// gCO2eq/kWh, used when live data is unavailable.
var RegionalAverages = map[string]float64{
	"IN-SO": 708,
	"US-CA": 234,
	"DE":    401,
	"FR":    79,
	"GB":    233,
	"CN":    681,
	"JP":    475,
}

// DefaultAverageIntensity is the global average applied when the region has
// no entry in RegionalAverages.
const DefaultAverageIntensity = 475

// AverageIntensity returns the static average for a region, falling back to
// the global average.
func AverageIntensity(region string) float64 {
	if v, ok := RegionalAverages[region]; ok {
		return v
	}
	return DefaultAverageIntensity
}

type cacheEntry struct {
	reading model.CarbonReading
	fetched time.Time
}

// CachedProvider wraps an upstream Provider with a per-region TTL cache and a
// fallback chain: fresh cache, live fetch, static regional average. Current
// never returns an error; failures degrade to a FALLBACK_AVERAGE reading.
type CachedProvider struct {
	upstream Provider
	ttl      time.Duration
	log      logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCachedProvider creates a CachedProvider. A non-positive ttl defaults to
// five minutes.
func NewCachedProvider(upstream Provider, ttl time.Duration, log logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{
		upstream: upstream,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// SetClock overrides the time source. Intended for tests.
func (p *CachedProvider) SetClock(now func() time.Time) { p.now = now }

// Current returns the freshest reading available for the region. The error is
// always nil; it is kept to satisfy the Provider interface.
func (p *CachedProvider) Current(ctx context.Context, region string) (model.CarbonReading, error) {
	now := p.now()

	p.mu.Lock()
	if e, ok := p.cache[region]; ok && now.Sub(e.fetched) < p.ttl {
		p.mu.Unlock()
		r := e.reading
		r.Source = model.SourceCached
		return r, nil
	}
	p.mu.Unlock()

	reading, err := p.upstream.Current(ctx, region)
	if err == nil && reading.Intensity >= 0 {
		p.mu.Lock()
		p.cache[region] = cacheEntry{reading: reading, fetched: now}
		p.mu.Unlock()
		return reading, nil
	}
	if err != nil {
		p.log.Warnf("live carbon intensity fetch failed for %s: %v", region, err)
	}

	avg := AverageIntensity(region)
	p.log.Warnf("using fallback average for %s: %.0f gCO2eq/kWh", region, avg)
	return model.CarbonReading{
		Region:    region,
		Intensity: avg,
		Timestamp: now,
		Source:    model.SourceFallbackAverage,
	}, nil
}

// FallbackTableProvider always serves the static regional average. It is used
// when no live API is configured.
type FallbackTableProvider struct {
	Now func() time.Time
}

func (f FallbackTableProvider) Current(_ context.Context, region string) (model.CarbonReading, error) {
	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	return model.CarbonReading{
		Region:    region,
		Intensity: AverageIntensity(region),
		Timestamp: now,
		Source:    model.SourceFallbackAverage,
	}, nil
}
