package carbon

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/maelqr/carbonsched/core/model"
)

// MockProvider generates realistic intensity values shaped by the hour of
// day: low overnight, peaks in the morning and evening. A fixed seed makes
// the sequence deterministic for tests.
type MockProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMockProvider creates a provider seeded with the given value. Seed zero
// derives one from the current time.
func NewMockProvider(seed int64) *MockProvider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockProvider{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (p *MockProvider) SetClock(now func() time.Time) { p.now = now }

// Current returns a simulated reading for the region.
func (p *MockProvider) Current(_ context.Context, region string) (model.CarbonReading, error) {
	now := p.now()
	hour := now.Hour()

	var base, jitter float64
	switch {
	case hour <= 6:
		base, jitter = 150, 30
	case (hour >= 7 && hour <= 9) || (hour >= 18 && hour <= 22):
		base, jitter = 350, 50
	default:
		base, jitter = 250, 40
	}

	p.mu.Lock()
	intensity := base + (p.rng.Float64()*2-1)*jitter
	p.mu.Unlock()
	if intensity < 0 {
		intensity = 0
	}
	return model.CarbonReading{
		Region:    region,
		Intensity: intensity,
		Timestamp: now,
		Source:    model.SourceMock,
	}, nil
}
