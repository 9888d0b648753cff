// Package energy provides the system-backed probe used by the core monitor.
// CPU power is estimated from utilization scaled by the thermal design power,
// the same heuristic the scheduler documents for budget accounting.
package energy

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	coreenergy "github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/logger"
)

const (
	minTDPWatts     = 35.0
	maxTDPWatts     = 200.0
	defaultTDPWatts = 65.0
)

// AccelProbe reads power and utilization from an accelerator (GPU, TPU).
// Implementations are optional; a nil probe means CPU-only accounting.
type AccelProbe interface {
	PowerWatts() (power, utilization float64, err error)
}

// CPUProbe estimates power draw from CPU utilization and an estimated TDP,
// optionally adding accelerator power from a secondary probe.
type CPUProbe struct {
	tdpWatts float64
	accel    AccelProbe
	log      logger.Logger
}

// NewCPUProbe builds a probe, estimating the host TDP once at startup.
func NewCPUProbe(accel AccelProbe, log logger.Logger) *CPUProbe {
	tdp := estimateTDP()
	log.Infof("estimated CPU TDP: %.0f W", tdp)
	return &CPUProbe{tdpWatts: tdp, accel: accel, log: log}
}

// estimateTDP derives a rough thermal design power from core count and base
// frequency, clamped to a plausible desktop/server range.
func estimateTDP() float64 {
	count, err := cpu.Counts(true)
	if err != nil || count <= 0 {
		return defaultTDPWatts
	}
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 || infos[0].Mhz <= 0 {
		// No frequency info (common in containers); assume 20 W per core.
		return clampTDP(float64(count) * 20)
	}
	baseGHz := infos[0].Mhz / 1000
	return clampTDP(float64(count) * (15 + (baseGHz-2.0)*5))
}

func clampTDP(tdp float64) float64 {
	if tdp < minTDPWatts {
		return minTDPWatts
	}
	if tdp > maxTDPWatts {
		return maxTDPWatts
	}
	return tdp
}

// TDPWatts exposes the estimated TDP for reporting.
func (p *CPUProbe) TDPWatts() float64 { return p.tdpWatts }

// Sample reads current utilization and converts it to an instantaneous power
// estimate. Accelerator failures are logged and skipped rather than failing
// the whole sample.
func (p *CPUProbe) Sample() (coreenergy.ProbeReading, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return coreenergy.ProbeReading{}, fmt.Errorf("read cpu utilization: %w", err)
	}
	util := percents[0]
	reading := coreenergy.ProbeReading{
		CPUPowerWatts:  p.tdpWatts * util / 100,
		CPUUtilization: util,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		reading.MemoryUsedGB = float64(vm.Used) / (1 << 30)
	}
	if p.accel != nil {
		power, _, err := p.accel.PowerWatts()
		if err != nil {
			p.log.Debugf("accelerator probe failed: %v", err)
		} else {
			reading.AccelPowerWatts = power
		}
	}
	return reading, nil
}
