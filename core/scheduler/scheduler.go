package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/maelqr/carbonsched/core/carbon"
	"github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/events"
	"github.com/maelqr/carbonsched/core/logger"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/optimizer"
	"github.com/maelqr/carbonsched/core/report"
	"github.com/maelqr/carbonsched/internal/eventbus"
)

// ErrRetryBudgetExhausted marks a request rejected because the grid stayed
// above the ceiling for the whole retry budget.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// ErrBudgetExceeded marks a session aborted because the carbon budget ran out.
var ErrBudgetExceeded = errors.New("carbon budget exceeded")

// ErrRejected marks a request rejected before any training started.
var ErrRejected = errors.New("session rejected")

// Config defines the gate parameters. Validate catches invalid combinations
// before any session starts.
type Config struct {
	Region string
	Window Window
	// MinIntensity is the optimal threshold; at or below it the base config
	// is kept untouched.
	MinIntensity float64
	// MaxIntensity is the hard ceiling; above it the scheduler waits.
	MaxIntensity float64
	// PollInterval is the base delay between WAITING re-evaluations.
	PollInterval time.Duration
	// MaxRetries bounds WAITING re-evaluations before rejecting.
	MaxRetries int
	// ExponentialBackoff doubles the delay after every retry, capped at one
	// hour. When false the delay is fixed at PollInterval.
	ExponentialBackoff bool
	// SamplingInterval is the energy monitor tick.
	SamplingInterval time.Duration
	// BudgetCheckInterval controls how often a running session accounts
	// energy against the carbon budget.
	BudgetCheckInterval time.Duration
	// BaseConfig is the untuned training configuration.
	BaseConfig model.TrainingConfig
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Window.Earliest < 0 || c.Window.Earliest > 23 {
		return fmt.Errorf("earliest hour %d outside 0-23", c.Window.Earliest)
	}
	if c.Window.Latest < 0 || c.Window.Latest > 24 {
		return fmt.Errorf("latest hour %d outside 0-24", c.Window.Latest)
	}
	if c.MinIntensity < 0 || c.MaxIntensity < 0 {
		return fmt.Errorf("intensity thresholds must be non-negative")
	}
	if c.MinIntensity > c.MaxIntensity {
		return fmt.Errorf("min intensity %v exceeds max intensity %v", c.MinIntensity, c.MaxIntensity)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("base config: %w", err)
	}
	return nil
}

// Deps are the collaborators injected into the scheduler.
type Deps struct {
	Provider  carbon.Provider
	Optimizer *optimizer.Optimizer
	Probe     energy.Probe
	// Budget may be nil when no emissions ceiling is configured.
	Budget *carbon.Budget
	// Store may be nil; reports are then only published on the bus.
	Store report.Store
	// Bus may be nil.
	Bus eventbus.EventBus
	Log logger.Logger
}

// Scheduler gates training sessions on grid carbon intensity.
type Scheduler struct {
	cfg   Config
	deps  Deps
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. The configuration is validated here so invalid
// windows or thresholds never reach a session.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if deps.Provider == nil || deps.Optimizer == nil || deps.Probe == nil {
		return nil, fmt.Errorf("scheduler: provider, optimizer and probe are required")
	}
	if deps.Log == nil {
		return nil, fmt.Errorf("scheduler: logger is required")
	}
	if cfg.SamplingInterval <= 0 {
		cfg.SamplingInterval = time.Second
	}
	if cfg.BudgetCheckInterval <= 0 {
		cfg.BudgetCheckInterval = 30 * time.Second
	}
	return &Scheduler{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		sleep: sleepCtx,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// SetSleep overrides the wait function. Intended for tests.
func (s *Scheduler) SetSleep(fn func(ctx context.Context, d time.Duration) error) { s.sleep = fn }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) publish(ev eventbus.Event) {
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(ev)
	}
}

func (s *Scheduler) transition(sessionID string, from, to State, reason string) {
	s.deps.Log.Debugw("state transition", map[string]any{
		"session_id": sessionID,
		"from":       from.String(),
		"to":         to.String(),
		"reason":     reason,
	})
	s.publish(events.StateEvent{SessionID: sessionID, From: from.String(), To: to.String(), Reason: reason})
}

// Evaluate runs a single gate check without opening a session. Used by the
// one-shot CLI check.
func (s *Scheduler) Evaluate(ctx context.Context) model.SchedulingDecision {
	return s.evaluate(ctx)
}

// currentReading fetches the intensity, degrading to the static regional
// average when the provider fails. A fetch error must never flow through the
// gate as a zero-intensity reading.
func (s *Scheduler) currentReading(ctx context.Context) model.CarbonReading {
	reading, err := s.deps.Provider.Current(ctx, s.cfg.Region)
	if err != nil {
		avg := carbon.AverageIntensity(s.cfg.Region)
		s.deps.Log.Warnf("carbon intensity fetch failed for %s, using average %.0f gCO2eq/kWh: %v",
			s.cfg.Region, avg, err)
		return model.CarbonReading{
			Region:    s.cfg.Region,
			Intensity: avg,
			Timestamp: s.now(),
			Source:    model.SourceFallbackAverage,
		}
	}
	return reading
}

// evaluate runs one gate check: time window first, then intensity thresholds.
func (s *Scheduler) evaluate(ctx context.Context) model.SchedulingDecision {
	now := s.now()
	reading := s.currentReading(ctx)

	if !s.cfg.Window.Contains(now) {
		return model.SchedulingDecision{
			Verdict:   model.VerdictReject,
			Reason:    "outside allowed hours",
			Reading:   reading,
			Timestamp: now,
		}
	}
	if reading.Intensity > s.cfg.MaxIntensity {
		return model.SchedulingDecision{
			Verdict:   model.VerdictWait,
			Reason:    fmt.Sprintf("carbon too high: %.0f > %.0f gCO2eq/kWh", reading.Intensity, s.cfg.MaxIntensity),
			Reading:   reading,
			Timestamp: now,
		}
	}
	reason := "carbon intensity acceptable"
	if reading.Intensity <= s.cfg.MinIntensity {
		reason = "carbon intensity optimal"
	}
	return model.SchedulingDecision{
		Verdict:   model.VerdictProceed,
		Reason:    reason,
		Reading:   reading,
		Timestamp: now,
	}
}

// backoffDelay returns the wait before the given retry attempt, starting at 0.
func (s *Scheduler) backoffDelay(attempt int) time.Duration {
	if !s.cfg.ExponentialBackoff {
		return s.cfg.PollInterval
	}
	d := time.Duration(float64(s.cfg.PollInterval) * math.Pow(2, float64(attempt)))
	if d > time.Hour || d <= 0 {
		d = time.Hour
	}
	return d
}

// RequestSession evaluates the gate, waiting out high-carbon periods within
// the retry budget. It returns a Session ready to run, or an error wrapping
// ErrRejected, ErrRetryBudgetExhausted or the context error. Rejected
// requests still produce a stored report carrying the decision trail.
func (s *Scheduler) RequestSession(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	started := s.now()
	var decisions []model.SchedulingDecision

	s.transition(id, StateIdle, StateEvaluating, "session requested")
	for attempt := 0; ; attempt++ {
		d := s.evaluate(ctx)
		decisions = append(decisions, d)
		s.publish(events.DecisionEvent{SessionID: id, Decision: d})
		s.deps.Log.Infof("evaluation %d: %s (%s, %.0f gCO2eq/kWh from %s)",
			attempt+1, d.Verdict, d.Reason, d.Reading.Intensity, d.Reading.Source)

		switch d.Verdict {
		case model.VerdictProceed:
			tuned := s.deps.Optimizer.Suggest(s.cfg.BaseConfig, d.Reading)
			s.transition(id, StateEvaluating, StateTraining, d.Reason)
			return &Session{
				ID:        id,
				Config:    tuned,
				sched:     s,
				startedAt: started,
				decisions: decisions,
				monitor:   energy.NewMonitor(s.deps.Probe, s.cfg.SamplingInterval, s.deps.Log),
			}, nil

		case model.VerdictReject:
			s.transition(id, StateEvaluating, StateRejected, d.Reason)
			s.finalizeRejected(ctx, id, started, decisions, d.Reason)
			return nil, fmt.Errorf("%w: %s", ErrRejected, d.Reason)

		case model.VerdictWait:
			if attempt+1 >= s.cfg.MaxRetries {
				reason := fmt.Sprintf("carbon stayed above %.0f gCO2eq/kWh for %d retries",
					s.cfg.MaxIntensity, s.cfg.MaxRetries)
				rejected := model.SchedulingDecision{
					Verdict:   model.VerdictReject,
					Reason:    reason,
					Reading:   d.Reading,
					Timestamp: s.now(),
				}
				decisions = append(decisions, rejected)
				s.publish(events.DecisionEvent{SessionID: id, Decision: rejected})
				s.transition(id, StateWaiting, StateRejected, reason)
				s.finalizeRejected(ctx, id, started, decisions, reason)
				return nil, fmt.Errorf("%w: %s", ErrRetryBudgetExhausted, reason)
			}
			s.transition(id, StateEvaluating, StateWaiting, d.Reason)
			delay := s.backoffDelay(attempt)
			s.deps.Log.Infof("waiting %s before retry %d/%d", delay, attempt+2, s.cfg.MaxRetries)
			if err := s.sleep(ctx, delay); err != nil {
				s.transition(id, StateWaiting, StateIdle, "canceled")
				s.finalizeRejected(ctx, id, started, decisions, "canceled while waiting")
				return nil, err
			}
			s.transition(id, StateWaiting, StateEvaluating, "retrying")
		}
	}
}

// finalizeRejected emits the report for a request that never started training.
func (s *Scheduler) finalizeRejected(ctx context.Context, id string, started time.Time, decisions []model.SchedulingDecision, reason string) {
	rep := report.SessionReport{
		SessionID:    id,
		Region:       s.cfg.Region,
		StartedAt:    started,
		FinishedAt:   s.now(),
		Decisions:    decisions,
		FinalConfig:  s.cfg.BaseConfig,
		FinalVerdict: model.VerdictReject,
		AbortReason:  reason,
	}
	if s.deps.Budget != nil {
		rep.Budget = s.deps.Budget.Snapshot()
	}
	// The request context may already be canceled here; the rejection report
	// must still be persisted.
	s.emitReport(context.WithoutCancel(ctx), rep)
}

func (s *Scheduler) emitReport(ctx context.Context, rep report.SessionReport) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Append(ctx, rep); err != nil {
			s.deps.Log.Errorf("store session report: %v", err)
		}
	}
	s.publish(events.ReportEvent{Report: rep})
}
