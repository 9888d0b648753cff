package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maelqr/carbonsched/core/carbon"
	"github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/events"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/report"
)

// TrainFunc is the caller's training loop. It must return promptly when ctx
// is canceled; the scheduler cancels it on budget exhaustion and external
// stop signals.
type TrainFunc func(ctx context.Context, cfg model.TrainingConfig, mon *energy.Monitor) error

// Session is an accepted training request. Run executes the caller's loop
// under energy monitoring; the monitor is stopped on every exit path.
type Session struct {
	ID     string
	Config model.TrainingConfig

	sched     *Scheduler
	monitor   *energy.Monitor
	startedAt time.Time
	decisions []model.SchedulingDecision
}

// Decisions returns the decision trail that led to this session.
func (sess *Session) Decisions() []model.SchedulingDecision {
	out := make([]model.SchedulingDecision, len(sess.decisions))
	copy(out, sess.decisions)
	return out
}

// accounting tracks how much of the monitor's energy has been converted to
// emissions. The budget guard is the only writer while training runs; the
// finalizer takes over after the guard has stopped.
type accounting struct {
	mu           sync.Mutex
	accountedKWh float64
	emissionsG   float64
}

func (a *accounting) snapshot() (kwh, emissions float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountedKWh, a.emissionsG
}

// Run starts the energy monitor, hands control to fn and finalizes the
// session when fn returns, the context is canceled or the carbon budget runs
// out. A partial session still produces a stored report.
func (sess *Session) Run(ctx context.Context, fn TrainFunc) (report.SessionReport, error) {
	s := sess.sched
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.deps.Bus != nil {
		sess.monitor.OnSample(func(smp model.EnergySample) {
			s.deps.Bus.Publish(events.SampleEvent{SessionID: sess.ID, Region: s.cfg.Region, Sample: smp})
		})
	}
	if err := sess.monitor.Start(runCtx); err != nil {
		return report.SessionReport{}, err
	}

	acct := &accounting{}
	var budgetAborted atomic.Bool
	guardDone := make(chan struct{})
	go sess.budgetGuard(runCtx, cancel, acct, guardDone, &budgetAborted)

	trainErr := fn(runCtx, sess.Config, sess.monitor)

	cancel()
	<-guardDone
	esess := sess.monitor.Stop()

	rep := sess.finalize(ctx, esess, acct, trainErr, budgetAborted.Load())

	switch {
	case budgetAborted.Load():
		return rep, ErrBudgetExceeded
	default:
		return rep, trainErr
	}
}

// budgetGuard periodically converts newly measured energy into emissions and
// charges the shared budget, canceling the session once the limit is passed.
func (sess *Session) budgetGuard(ctx context.Context, cancel context.CancelFunc, acct *accounting, done chan struct{}, aborted *atomic.Bool) {
	defer close(done)
	s := sess.sched
	ticker := time.NewTicker(s.cfg.BudgetCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.account(ctx, acct, sess.monitor.CurrentTotalKWh())
			if s.deps.Budget != nil && s.deps.Budget.Exceeded() {
				s.deps.Log.Warnf("carbon budget exhausted, aborting session %s", sess.ID)
				aborted.Store(true)
				cancel()
				return
			}
		}
	}
}

// account charges emissions for energy measured since the last call, using
// the current (possibly cached) intensity.
func (sess *Session) account(ctx context.Context, acct *accounting, totalKWh float64) {
	s := sess.sched
	acct.mu.Lock()
	delta := totalKWh - acct.accountedKWh
	acct.mu.Unlock()
	if delta <= 0 {
		return
	}
	reading := s.currentReading(ctx)
	emitted := carbon.EmissionsG(delta, reading.Intensity)

	acct.mu.Lock()
	acct.accountedKWh = totalKWh
	acct.emissionsG += emitted
	acct.mu.Unlock()

	if s.deps.Budget != nil && s.deps.Budget.Add(emitted) {
		snap := s.deps.Budget.Snapshot()
		s.deps.Log.Warnf("carbon budget limit crossed: %.1f / %.1f gCO2eq", snap.ConsumedG, snap.LimitG)
		s.publish(events.BudgetAlertEvent{
			SessionID: sess.ID,
			LimitG:    snap.LimitG,
			ConsumedG: snap.ConsumedG,
			Period:    snap.Period,
		})
	}
}

func (sess *Session) finalize(ctx context.Context, esess energy.Session, acct *accounting, trainErr error, budgetAborted bool) report.SessionReport {
	s := sess.sched

	// Charge the tail energy the guard has not yet accounted. The guard has
	// stopped, so this is the single remaining writer.
	sess.account(context.WithoutCancel(ctx), acct, esess.TotalKWh)
	_, emissions := acct.snapshot()

	partial := trainErr != nil || budgetAborted
	abortReason := ""
	switch {
	case budgetAborted:
		abortReason = "carbon budget exceeded"
	case trainErr != nil:
		abortReason = trainErr.Error()
	}

	avgIntensity := 0.0
	if esess.TotalKWh > 0 {
		avgIntensity = emissions / esess.TotalKWh
	}

	rep := report.SessionReport{
		SessionID:     sess.ID,
		Region:        s.cfg.Region,
		StartedAt:     sess.startedAt,
		FinishedAt:    s.now(),
		Decisions:     sess.decisions,
		FinalConfig:   sess.Config,
		Energy:        esess.Totals(),
		EmissionsG:    emissions,
		CostUSD:       carbon.CostUSD(esess.TotalKWh, s.cfg.Region),
		Partial:       partial,
		AbortReason:   abortReason,
		FinalVerdict:  model.VerdictProceed,
		AvgIntensityG: avgIntensity,
	}
	if s.deps.Budget != nil {
		rep.Budget = s.deps.Budget.Snapshot()
	}
	s.emitReport(context.WithoutCancel(ctx), rep)
	s.transition(sess.ID, StateTraining, StateIdle, "session finalized")

	eq := carbon.EquivalentsOf(emissions)
	s.deps.Log.Infof("session %s: %.6f kWh, %.2f gCO2eq (%.2f phone charges), cost $%.4f",
		sess.ID, esess.TotalKWh, emissions, eq.PhoneCharges, rep.CostUSD)
	return rep
}
