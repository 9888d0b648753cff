// Package energy implements background power sampling and energy accounting
// for a training session. The sampling goroutine is the sole writer of the
// monitor state; readers get consistent snapshots under the mutex.
package energy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maelqr/carbonsched/core/logger"
	"github.com/maelqr/carbonsched/core/model"
)

// DefaultPowerWatts is the conservative estimate used when the probe cannot
// be read. Matches a low-end desktop CPU under load.
const DefaultPowerWatts = 65.0

// defaultMaxSamples bounds the in-memory sample history per session.
const defaultMaxSamples = 7200

// ProbeReading is one instantaneous measurement from the system.
type ProbeReading struct {
	CPUPowerWatts   float64
	CPUUtilization  float64
	AccelPowerWatts float64
	MemoryUsedGB    float64
}

// Probe reads instantaneous power inputs. Implementations live in
// infra/energy; tests use deterministic fakes.
type Probe interface {
	Sample() (ProbeReading, error)
}

// Monitor samples power at a fixed interval and integrates it into a
// cumulative energy total. Start and Stop may be called repeatedly; each
// Start begins a fresh session with a zeroed total.
type Monitor struct {
	probe      Probe
	interval   time.Duration
	log        logger.Logger
	maxSamples int
	onSample   func(model.EnergySample)

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	lastTick  time.Time
	samples   []model.EnergySample
	dropped   int
	totalKWh  float64
	cpuKWh    float64
	accelKWh  float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. A non-positive interval defaults to one
// second.
func NewMonitor(probe Probe, interval time.Duration, log logger.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{probe: probe, interval: interval, log: log, maxSamples: defaultMaxSamples}
}

// OnSample registers a hook invoked for every recorded sample, outside the
// monitor lock. Must be set before Start.
func (m *Monitor) OnSample(fn func(model.EnergySample)) { m.onSample = fn }

// Start begins the sampling loop. The loop stops when Stop is called or the
// context is canceled, whichever comes first.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("energy monitor already running")
	}
	now := time.Now()
	m.running = true
	m.startedAt = now
	m.lastTick = now
	m.samples = nil
	m.dropped = 0
	m.totalKWh = 0
	m.cpuKWh = 0
	m.accelKWh = 0
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.loop(runCtx, done)
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.record(now)
		}
	}
}

func (m *Monitor) record(now time.Time) {
	reading, err := m.probe.Sample()
	if err != nil {
		// Probe failure degrades to the documented default estimate instead
		// of aborting the session.
		m.log.Warnf("energy probe failed, using %0.f W default: %v", DefaultPowerWatts, err)
		reading = ProbeReading{CPUPowerWatts: DefaultPowerWatts}
	}
	if reading.CPUPowerWatts < 0 {
		reading.CPUPowerWatts = 0
	}
	if reading.AccelPowerWatts < 0 {
		reading.AccelPowerWatts = 0
	}
	total := reading.CPUPowerWatts + reading.AccelPowerWatts

	m.mu.Lock()
	dt := now.Sub(m.lastTick)
	if dt < 0 {
		dt = 0
	}
	m.lastTick = now
	hours := dt.Hours()
	m.cpuKWh += reading.CPUPowerWatts * hours / 1000
	m.accelKWh += reading.AccelPowerWatts * hours / 1000
	m.totalKWh += total * hours / 1000
	sample := model.EnergySample{
		Timestamp:       now,
		PowerWatts:      total,
		CPUPowerWatts:   reading.CPUPowerWatts,
		AccelPowerWatts: reading.AccelPowerWatts,
		CPUUtilization:  reading.CPUUtilization,
		MemoryUsedGB:    reading.MemoryUsedGB,
		CumulativeKWh:   m.totalKWh,
	}
	m.samples = append(m.samples, sample)
	if len(m.samples) > m.maxSamples {
		over := len(m.samples) - m.maxSamples
		m.samples = m.samples[over:]
		m.dropped += over
	}
	hook := m.onSample
	m.mu.Unlock()

	if hook != nil {
		hook(sample)
	}
}

// CurrentTotalKWh returns a snapshot of the cumulative energy. Safe to call
// while sampling is running.
func (m *Monitor) CurrentTotalKWh() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalKWh
}

// LatestSample returns the most recent sample, if any.
func (m *Monitor) LatestSample() (model.EnergySample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return model.EnergySample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// Stop halts sampling and returns the finalized session. Stop is safe to call
// more than once; later calls return the same finalized data.
func (m *Monitor) Stop() Session {
	m.mu.Lock()
	running := m.running
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	if running {
		cancel()
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess := Session{
		StartedAt: m.startedAt,
		EndedAt:   time.Now(),
		Samples:   append([]model.EnergySample(nil), m.samples...),
		TotalKWh:  m.totalKWh,
		CPUKWh:    m.cpuKWh,
		AccelKWh:  m.accelKWh,
	}
	return sess
}
