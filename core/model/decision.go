package model

import "time"

// Verdict is the outcome of one scheduler evaluation.
type Verdict int

const (
	VerdictProceed Verdict = iota
	VerdictWait
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictProceed:
		return "proceed"
	case VerdictWait:
		return "wait"
	case VerdictReject:
		return "reject"
	default:
		return "unknown"
	}
}

// SchedulingDecision records one gate evaluation. It is a value object and is
// never mutated after construction.
type SchedulingDecision struct {
	Verdict   Verdict       `json:"verdict"`
	Reason    string        `json:"reason"`
	Reading   CarbonReading `json:"reading"`
	Timestamp time.Time     `json:"timestamp"`
}
