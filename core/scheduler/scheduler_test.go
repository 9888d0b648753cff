package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/optimizer"
	"github.com/maelqr/carbonsched/core/report"
	infralogger "github.com/maelqr/carbonsched/infra/logger"
)

// stubProvider serves a fixed sequence of intensities; the last value
// repeats once the sequence is consumed.
type stubProvider struct {
	mu  sync.Mutex
	seq []float64
	idx int
}

func (p *stubProvider) Current(_ context.Context, region string) (model.CarbonReading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.idx
	if i >= len(p.seq) {
		i = len(p.seq) - 1
	}
	p.idx++
	return model.CarbonReading{
		Region:    region,
		Intensity: p.seq[i],
		Timestamp: time.Now(),
		Source:    model.SourceMock,
	}, nil
}

// failingProvider simulates an unreachable intensity API.
type failingProvider struct{}

func (failingProvider) Current(context.Context, string) (model.CarbonReading, error) {
	return model.CarbonReading{}, errors.New("api unreachable")
}

type constProbe struct{ watts float64 }

func (p constProbe) Sample() (energy.ProbeReading, error) {
	return energy.ProbeReading{CPUPowerWatts: p.watts, CPUUtilization: 50, MemoryUsedGB: 4}, nil
}

type memStore struct {
	mu      sync.Mutex
	reports []report.SessionReport
}

func (s *memStore) Append(_ context.Context, rep report.SessionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
	return nil
}

func (s *memStore) Query(_ context.Context, _ report.Query) ([]report.SessionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.SessionReport, len(s.reports))
	copy(out, s.reports)
	return out, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) last(t *testing.T) report.SessionReport {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		t.Fatalf("no report stored")
	}
	return s.reports[len(s.reports)-1]
}

// ctxStore refuses writes on a canceled context, like a database-backed
// store would.
type ctxStore struct{ memStore }

func (s *ctxStore) Append(ctx context.Context, rep report.SessionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.Append(ctx, rep)
}

func testConfig() Config {
	return Config{
		Region:              "FR",
		Window:              Window{Earliest: 0, Latest: 24},
		MinIntensity:        200,
		MaxIntensity:        400,
		PollInterval:        time.Minute,
		MaxRetries:          12,
		SamplingInterval:    5 * time.Millisecond,
		BudgetCheckInterval: 5 * time.Millisecond,
		BaseConfig:          model.TrainingConfig{BatchSize: 64, Precision: model.PrecisionFull, Epochs: 3},
	}
}

func newTestScheduler(t *testing.T, cfg Config, deps Deps) *Scheduler {
	t.Helper()
	if deps.Optimizer == nil {
		deps.Optimizer = optimizer.Default(cfg.MinIntensity, cfg.MaxIntensity)
	}
	if deps.Probe == nil {
		deps.Probe = constProbe{watts: 100}
	}
	if deps.Log == nil {
		deps.Log = infralogger.NopLogger{}
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	s.SetSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() })
	return s
}

func TestRequestSessionProceedsWhenOptimal(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Deps{Provider: &stubProvider{seq: []float64{100}}})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)

	decisions := sess.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, model.VerdictProceed, decisions[0].Verdict)
	assert.Equal(t, "carbon intensity optimal", decisions[0].Reason)
	// At or below the optimal threshold the base config stays untouched.
	assert.Equal(t, 64, sess.Config.BatchSize)
	assert.Equal(t, model.PrecisionFull, sess.Config.Precision)
}

func TestRequestSessionTunesInModerateBand(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Deps{Provider: &stubProvider{seq: []float64{300}}})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "carbon intensity acceptable", sess.Decisions()[0].Reason)
	assert.Equal(t, 48, sess.Config.BatchSize)
	assert.Equal(t, model.PrecisionFull, sess.Config.Precision)
}

func TestRequestSessionCeilingIsInclusive(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Deps{Provider: &stubProvider{seq: []float64{400}}})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess, "intensity equal to the ceiling must still proceed")
	assert.Equal(t, model.VerdictProceed, sess.Decisions()[0].Verdict)
}

func TestEvaluateProviderFailureUsesAverage(t *testing.T) {
	// FR's static average (79) is below the optimal threshold.
	s := newTestScheduler(t, testConfig(), Deps{Provider: failingProvider{}})

	d := s.Evaluate(context.Background())
	assert.Equal(t, model.VerdictProceed, d.Verdict)
	assert.Equal(t, model.SourceFallbackAverage, d.Reading.Source)
	assert.InDelta(t, 79, d.Reading.Intensity, 1e-9)
	assert.False(t, d.Reading.Timestamp.IsZero())
}

func TestEvaluateProviderFailureDirtyRegionWaits(t *testing.T) {
	cfg := testConfig()
	cfg.Region = "IN-SO" // static average 708, above the 400 ceiling
	s := newTestScheduler(t, cfg, Deps{Provider: failingProvider{}})

	d := s.Evaluate(context.Background())
	assert.Equal(t, model.VerdictWait, d.Verdict)
	assert.Equal(t, model.SourceFallbackAverage, d.Reading.Source)
}

func TestRequestSessionRejectsOutsideWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Window = Window{Earliest: 20, Latest: 6}
	store := &memStore{}
	s := newTestScheduler(t, cfg, Deps{Provider: &stubProvider{seq: []float64{100}}, Store: store})
	s.SetClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })

	sess, err := s.RequestSession(context.Background())
	require.ErrorIs(t, err, ErrRejected)
	assert.Nil(t, sess)

	rep := store.last(t)
	assert.Equal(t, model.VerdictReject, rep.FinalVerdict)
	assert.Equal(t, "outside allowed hours", rep.AbortReason)
	require.Len(t, rep.Decisions, 1)
}

func TestRequestSessionWaitsThenProceeds(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Deps{Provider: &stubProvider{seq: []float64{500, 450, 150}}})
	var delays []time.Duration
	s.SetSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	decisions := sess.Decisions()
	require.Len(t, decisions, 3)
	assert.Equal(t, model.VerdictWait, decisions[0].Verdict)
	assert.Equal(t, model.VerdictWait, decisions[1].Verdict)
	assert.Equal(t, model.VerdictProceed, decisions[2].Verdict)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, delays)
}

func TestRequestSessionRetryBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	store := &memStore{}
	s := newTestScheduler(t, cfg, Deps{Provider: &stubProvider{seq: []float64{900}}, Store: store})
	s.SetSleep(func(context.Context, time.Duration) error { return nil })

	sess, err := s.RequestSession(context.Background())
	require.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Nil(t, sess)

	rep := store.last(t)
	assert.Equal(t, model.VerdictReject, rep.FinalVerdict)
	assert.Contains(t, rep.AbortReason, "3 retries")
	// Three WAIT evaluations plus the synthetic rejection.
	require.Len(t, rep.Decisions, 4)
	assert.Equal(t, model.VerdictReject, rep.Decisions[3].Verdict)
}

func TestRequestSessionCanceledWhileWaiting(t *testing.T) {
	// A store that honors context cancellation must still receive the report.
	store := &ctxStore{}
	s := newTestScheduler(t, testConfig(), Deps{Provider: &stubProvider{seq: []float64{900}}, Store: store})
	ctx, cancel := context.WithCancel(context.Background())
	s.SetSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := s.RequestSession(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "canceled while waiting", store.last(t).AbortReason)
}

func TestBackoffDelays(t *testing.T) {
	cfg := testConfig()
	cfg.ExponentialBackoff = true
	cfg.MaxRetries = 4
	s := newTestScheduler(t, cfg, Deps{Provider: &stubProvider{seq: []float64{900}}})
	var delays []time.Duration
	s.SetSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	_, err := s.RequestSession(context.Background())
	require.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}, delays)
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := testConfig()
	cfg.ExponentialBackoff = true
	s := newTestScheduler(t, cfg, Deps{Provider: &stubProvider{seq: []float64{100}}})
	if got := s.backoffDelay(30); got != time.Hour {
		t.Fatalf("backoffDelay(30) = %s, want cap at 1h", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty region", func(c *Config) { c.Region = "" }},
		{"earliest out of range", func(c *Config) { c.Window.Earliest = 24 }},
		{"latest out of range", func(c *Config) { c.Window.Latest = 25 }},
		{"negative intensity", func(c *Config) { c.MinIntensity = -1 }},
		{"min above max", func(c *Config) { c.MinIntensity = 500 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"invalid base config", func(c *Config) { c.BaseConfig.BatchSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	require.NoError(t, testConfig().Validate())
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	require.Error(t, err)

	_, err = New(testConfig(), Deps{
		Provider:  &stubProvider{seq: []float64{100}},
		Optimizer: optimizer.Default(200, 400),
		Probe:     constProbe{watts: 50},
	})
	require.Error(t, err, "logger must be required")
}
