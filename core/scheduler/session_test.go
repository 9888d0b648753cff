package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maelqr/carbonsched/core/carbon"
	"github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/events"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/internal/eventbus"
)

func TestSessionRunCompletes(t *testing.T) {
	store := &memStore{}
	s := newTestScheduler(t, testConfig(), Deps{
		Provider: &stubProvider{seq: []float64{150}},
		Probe:    constProbe{watts: 200},
		Store:    store,
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	rep, err := sess.Run(context.Background(), func(ctx context.Context, cfg model.TrainingConfig, mon *energy.Monitor) error {
		time.Sleep(40 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.False(t, rep.Partial)
	assert.Empty(t, rep.AbortReason)
	assert.Equal(t, model.VerdictProceed, rep.FinalVerdict)
	assert.Equal(t, "FR", rep.Region)
	assert.Greater(t, rep.Energy.TotalKWh, 0.0)
	assert.Greater(t, rep.EmissionsG, 0.0)
	assert.Greater(t, rep.CostUSD, 0.0)
	assert.InDelta(t, 150, rep.AvgIntensityG, 1e-6)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	stored := store.last(t)
	assert.Equal(t, rep.SessionID, stored.SessionID)
}

func TestSessionRunBudgetAbort(t *testing.T) {
	budget, err := carbon.NewBudget(1e-6, carbon.PeriodProject)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.SamplingInterval = 2 * time.Millisecond
	cfg.BudgetCheckInterval = 5 * time.Millisecond
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()

	store := &memStore{}
	s := newTestScheduler(t, cfg, Deps{
		Provider: &stubProvider{seq: []float64{390}},
		Probe:    constProbe{watts: 1000},
		Budget:   budget,
		Store:    store,
		Bus:      bus,
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	rep, err := sess.Run(context.Background(), func(ctx context.Context, _ model.TrainingConfig, _ *energy.Monitor) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("budget guard never fired")
		}
	})
	require.ErrorIs(t, err, ErrBudgetExceeded)

	assert.True(t, rep.Partial)
	assert.Equal(t, "carbon budget exceeded", rep.AbortReason)
	assert.True(t, rep.Budget.Exceeded)
	assert.Zero(t, rep.Budget.RemainingG)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if alert, ok := ev.(events.BudgetAlertEvent); ok {
				assert.Equal(t, sess.ID, alert.SessionID)
				assert.Greater(t, alert.ConsumedG, alert.LimitG)
				return
			}
		case <-deadline:
			t.Fatalf("no budget alert event published")
		}
	}
}

func TestSessionRunProviderFailureStillAccounted(t *testing.T) {
	budget, err := carbon.NewBudget(1e9, carbon.PeriodProject)
	require.NoError(t, err)

	s := newTestScheduler(t, testConfig(), Deps{
		Provider: failingProvider{},
		Probe:    constProbe{watts: 500},
		Budget:   budget,
		Store:    &memStore{},
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	rep, err := sess.Run(context.Background(), func(context.Context, model.TrainingConfig, *energy.Monitor) error {
		time.Sleep(40 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	// Energy measured while the API is down is charged at the static
	// regional average, not silently dropped.
	assert.Greater(t, rep.Energy.TotalKWh, 0.0)
	assert.Greater(t, rep.EmissionsG, 0.0)
	assert.InDelta(t, 79, rep.AvgIntensityG, 1e-6)
	assert.InDelta(t, rep.EmissionsG, budget.Snapshot().ConsumedG, 1e-9)
}

func TestSessionRunTrainError(t *testing.T) {
	store := &memStore{}
	s := newTestScheduler(t, testConfig(), Deps{
		Provider: &stubProvider{seq: []float64{150}},
		Store:    store,
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	boom := errors.New("loss diverged")
	rep, err := sess.Run(context.Background(), func(context.Context, model.TrainingConfig, *energy.Monitor) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, rep.Partial)
	assert.Equal(t, "loss diverged", rep.AbortReason)
	// The aborted run is still stored for later inspection.
	assert.Equal(t, rep.SessionID, store.last(t).SessionID)
}

func TestSessionRunCanceled(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Deps{
		Provider: &stubProvider{seq: []float64{150}},
		Store:    &memStore{},
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	rep, err := sess.Run(ctx, func(ctx context.Context, _ model.TrainingConfig, _ *energy.Monitor) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, rep.Partial)
}

func TestSessionRunPublishesReport(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()

	s := newTestScheduler(t, testConfig(), Deps{
		Provider: &stubProvider{seq: []float64{150}},
		Bus:      bus,
	})

	sess, err := s.RequestSession(context.Background())
	require.NoError(t, err)
	_, err = sess.Run(context.Background(), func(context.Context, model.TrainingConfig, *energy.Monitor) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if rep, ok := ev.(events.ReportEvent); ok {
				assert.Equal(t, sess.ID, rep.Report.SessionID)
				return
			}
		case <-deadline:
			t.Fatalf("no report event published")
		}
	}
}
