// Package report defines the per-session record emitted by the scheduler and
// the stores used to persist it. Presentation layers (dashboards, CLI, MQTT
// consumers) read these records without the core depending on them.
package report

import (
	"time"

	"github.com/maelqr/carbonsched/core/model"
)

// EnergyTotals summarizes the energy side of a finished monitoring session.
type EnergyTotals struct {
	TotalKWh      float64       `json:"total_kwh"`
	CPUKWh        float64       `json:"cpu_kwh"`
	AccelKWh      float64       `json:"accel_kwh"`
	AvgPowerWatts float64       `json:"avg_power_watts"`
	PeakPowerW    float64       `json:"peak_power_watts"`
	AvgCPUPercent float64       `json:"avg_cpu_percent"`
	Duration      time.Duration `json:"duration_ns"`
	Samples       int           `json:"samples"`
}

// BudgetState snapshots the carbon budget after the session was accounted.
type BudgetState struct {
	Period     string  `json:"period"`
	LimitG     float64 `json:"limit_g_co2"`
	ConsumedG  float64 `json:"consumed_g_co2"`
	RemainingG float64 `json:"remaining_g_co2"`
	Exceeded   bool    `json:"exceeded"`
}

// SessionReport is the structured record produced for every session, including
// partial sessions aborted by cancellation or budget exhaustion.
type SessionReport struct {
	SessionID     string                     `json:"session_id"`
	Region        string                     `json:"region"`
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Decisions     []model.SchedulingDecision `json:"decisions"`
	FinalConfig   model.TrainingConfig       `json:"final_config"`
	Energy        EnergyTotals               `json:"energy"`
	EmissionsG    float64                    `json:"emissions_g_co2"`
	CostUSD       float64                    `json:"cost_usd"`
	Budget        BudgetState                `json:"budget"`
	Partial       bool                       `json:"partial"`
	AbortReason   string                     `json:"abort_reason,omitempty"`
	FinalVerdict  model.Verdict              `json:"final_verdict"`
	AvgIntensityG float64                    `json:"avg_intensity_g_per_kwh"`
}
