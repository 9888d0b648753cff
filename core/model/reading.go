package model

import "time"

// ReadingSource identifies where a carbon intensity value came from.
type ReadingSource int

const (
	// SourceLive is a fresh value fetched from the upstream API.
	SourceLive ReadingSource = iota
	// SourceCached is a previously fetched value still within its TTL.
	SourceCached
	// SourceFallbackAverage is a static regional average used when a live
	// fetch failed and no fresh cache entry exists.
	SourceFallbackAverage
	// SourceMock is produced by the simulated provider.
	SourceMock
)

func (s ReadingSource) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCached:
		return "cached"
	case SourceFallbackAverage:
		return "fallback_average"
	case SourceMock:
		return "mock"
	default:
		return "unknown"
	}
}

// CarbonReading is one observation of grid carbon intensity for a region.
// Readings are immutable once created.
type CarbonReading struct {
	Region    string        `json:"region"`
	Intensity float64       `json:"intensity_g_co2_per_kwh"`
	Timestamp time.Time     `json:"timestamp"`
	Source    ReadingSource `json:"source"`
}

// Age returns how old the reading is relative to now.
func (r CarbonReading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}
