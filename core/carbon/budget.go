package carbon

import (
	"fmt"
	"sync"
	"time"

	"github.com/maelqr/carbonsched/core/report"
)

// BudgetPeriod defines when a budget's consumption counter resets.
type BudgetPeriod int

const (
	// PeriodProject accumulates for the lifetime of the budget.
	PeriodProject BudgetPeriod = iota
	// PeriodDaily resets the counter at every UTC day boundary.
	PeriodDaily
)

func (p BudgetPeriod) String() string {
	if p == PeriodDaily {
		return "daily"
	}
	return "project"
}

// Budget is a process-wide emissions ceiling shared by concurrent sessions.
// All mutation goes through Add under the mutex so the limit-crossing alert
// fires exactly once per crossing.
type Budget struct {
	mu       sync.Mutex
	limitG   float64
	period   BudgetPeriod
	consumed float64
	alerted  bool
	day      time.Time
	now      func() time.Time
}

// NewBudget creates a budget with the given limit in grams of CO2eq.
func NewBudget(limitG float64, period BudgetPeriod) (*Budget, error) {
	if limitG <= 0 {
		return nil, fmt.Errorf("budget limit must be positive, got %f", limitG)
	}
	b := &Budget{limitG: limitG, period: period, now: time.Now}
	b.day = day(b.now())
	return b, nil
}

// SetClock overrides the time source. Intended for tests.
func (b *Budget) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.day = day(now())
	b.mu.Unlock()
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rollover resets the counter at the day boundary. Caller holds the mutex.
func (b *Budget) rollover(now time.Time) {
	if b.period != PeriodDaily {
		return
	}
	if d := day(now); !d.Equal(b.day) {
		b.day = d
		b.consumed = 0
		b.alerted = false
	}
}

// Add increments the consumed counter and reports whether this increment was
// the one that first crossed the limit. Subsequent increments past the limit
// return false until the period rolls over.
func (b *Budget) Add(emissionsG float64) bool {
	if emissionsG <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(b.now())
	b.consumed += emissionsG
	if b.consumed >= b.limitG && !b.alerted {
		b.alerted = true
		return true
	}
	return false
}

// Exceeded reports whether consumption is at or past the limit.
func (b *Budget) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(b.now())
	return b.consumed >= b.limitG
}

// Remaining returns the grams left before the limit, never negative.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(b.now())
	if rem := b.limitG - b.consumed; rem > 0 {
		return rem
	}
	return 0
}

// Snapshot returns the state for reporting.
func (b *Budget) Snapshot() report.BudgetState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(b.now())
	rem := b.limitG - b.consumed
	if rem < 0 {
		rem = 0
	}
	return report.BudgetState{
		Period:     b.period.String(),
		LimitG:     b.limitG,
		ConsumedG:  b.consumed,
		RemainingG: rem,
		Exceeded:   b.consumed >= b.limitG,
	}
}
