package model

import "time"

// EnergySample is one measurement taken by the energy monitor. CumulativeKWh
// is monotonically non-decreasing within a monitoring session.
type EnergySample struct {
	Timestamp       time.Time `json:"timestamp"`
	PowerWatts      float64   `json:"power_watts"`
	CPUPowerWatts   float64   `json:"cpu_power_watts"`
	AccelPowerWatts float64   `json:"accel_power_watts"`
	CPUUtilization  float64   `json:"cpu_utilization"`
	MemoryUsedGB    float64   `json:"memory_used_gb"`
	CumulativeKWh   float64   `json:"cumulative_kwh"`
}
