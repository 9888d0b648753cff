package events

import (
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/report"
)

// DecisionEvent is published for each scheduler gate evaluation.
type DecisionEvent struct {
	SessionID string
	Decision  model.SchedulingDecision
}

// StateEvent is emitted on every scheduler state transition.
type StateEvent struct {
	SessionID string
	From      string
	To        string
	Reason    string
}

// BudgetAlertEvent fires exactly once when cumulative emissions first cross
// the configured budget limit.
type BudgetAlertEvent struct {
	SessionID string
	LimitG    float64
	ConsumedG float64
	Period    string
}

// SampleEvent carries one energy monitor sample for metrics export.
type SampleEvent struct {
	SessionID string
	Region    string
	Sample    model.EnergySample
}

// ReportEvent carries the finalized session report.
type ReportEvent struct {
	Report report.SessionReport
}
