package model

import "fmt"

// Precision selects the numeric precision used by the training loop.
type Precision int

const (
	PrecisionFull Precision = iota
	PrecisionMixed
)

func (p Precision) String() string {
	switch p {
	case PrecisionFull:
		return "full"
	case PrecisionMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// EnergyFactor weights the precision mode for aggressiveness comparisons.
// Mixed precision draws roughly 60% of full precision on common accelerators.
func (p Precision) EnergyFactor() float64 {
	if p == PrecisionMixed {
		return 0.6
	}
	return 1.0
}

// TrainingConfig holds the knobs the optimizer may tune. Adjustments always
// produce a new complete config, never a partial mutation.
type TrainingConfig struct {
	BatchSize int       `json:"batch_size"`
	Precision Precision `json:"precision"`
	Epochs    int       `json:"epochs"`
}

// Validate checks structural validity of the config.
func (c TrainingConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.Precision != PrecisionFull && c.Precision != PrecisionMixed {
		return fmt.Errorf("invalid precision %d", c.Precision)
	}
	return nil
}

// Aggressiveness is the energy cost proxy used to compare configs: batch size
// scaled by the precision energy factor.
func (c TrainingConfig) Aggressiveness() float64 {
	return float64(c.BatchSize) * c.Precision.EnergyFactor()
}
