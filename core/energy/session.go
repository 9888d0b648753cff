package energy

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/report"
)

// Session is the finalized history of one monitoring run.
type Session struct {
	StartedAt time.Time
	EndedAt   time.Time
	Samples   []model.EnergySample
	TotalKWh  float64
	CPUKWh    float64
	AccelKWh  float64
}

// Duration returns the wall-clock length of the session.
func (s Session) Duration() time.Duration {
	if s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Totals computes the summary statistics for reporting.
func (s Session) Totals() report.EnergyTotals {
	totals := report.EnergyTotals{
		TotalKWh: s.TotalKWh,
		CPUKWh:   s.CPUKWh,
		AccelKWh: s.AccelKWh,
		Duration: s.Duration(),
		Samples:  len(s.Samples),
	}
	if len(s.Samples) == 0 {
		return totals
	}
	power := make([]float64, len(s.Samples))
	util := make([]float64, len(s.Samples))
	peak := 0.0
	for i, smp := range s.Samples {
		power[i] = smp.PowerWatts
		util[i] = smp.CPUUtilization
		if smp.PowerWatts > peak {
			peak = smp.PowerWatts
		}
	}
	totals.AvgPowerWatts = stat.Mean(power, nil)
	totals.AvgCPUPercent = stat.Mean(util, nil)
	totals.PeakPowerW = peak
	return totals
}
