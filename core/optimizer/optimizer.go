// Package optimizer maps a carbon intensity value to a training configuration
// adjustment. The policy is an ordered rule table evaluated top-down; the
// first rule whose upper bound covers the intensity wins.
package optimizer

import (
	"fmt"
	"math"

	"github.com/maelqr/carbonsched/core/model"
)

// Adjustment describes how a matched rule rewrites the base config.
type Adjustment struct {
	// BatchScale multiplies the base batch size. 1.0 keeps it unchanged.
	BatchScale float64 `json:"batch_scale" yaml:"batch_scale"`
	// MinBatch floors the scaled batch size. Ignored when it exceeds the
	// base batch size so higher intensity never raises aggressiveness.
	MinBatch int `json:"min_batch" yaml:"min_batch"`
	// ForceMixed switches the config to mixed precision.
	ForceMixed bool `json:"force_mixed" yaml:"force_mixed"`
}

// Rule pairs an inclusive intensity upper bound with an adjustment.
type Rule struct {
	// UpperBound is in gCO2eq/kWh. The last rule must be +Inf so the table
	// covers every input.
	UpperBound float64    `json:"upper_bound" yaml:"upper_bound"`
	Adjustment Adjustment `json:"adjustment" yaml:"adjustment"`
}

// Optimizer holds a validated rule table.
type Optimizer struct {
	rules []Rule
}

// New validates the table: bounds strictly ascending, scales positive, and
// the final rule unbounded.
func New(rules []Rule) (*Optimizer, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("optimizer: empty rule table")
	}
	prev := math.Inf(-1)
	for i, r := range rules {
		if r.UpperBound <= prev {
			return nil, fmt.Errorf("optimizer: rule %d upper bound %v not ascending", i, r.UpperBound)
		}
		if r.Adjustment.BatchScale <= 0 || r.Adjustment.BatchScale > 1 {
			return nil, fmt.Errorf("optimizer: rule %d batch scale %v out of (0,1]", i, r.Adjustment.BatchScale)
		}
		prev = r.UpperBound
	}
	if !math.IsInf(rules[len(rules)-1].UpperBound, 1) {
		return nil, fmt.Errorf("optimizer: last rule must cover +Inf")
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Optimizer{rules: out}, nil
}

// Default builds the standard three-band table from the configured optimal
// and ceiling thresholds: baseline below optimal, a 75%% batch trim in the
// moderate band, and a halved batch with forced mixed precision above the
// ceiling.
func Default(optimal, ceiling float64) *Optimizer {
	o, err := New([]Rule{
		{UpperBound: optimal, Adjustment: Adjustment{BatchScale: 1}},
		{UpperBound: ceiling, Adjustment: Adjustment{BatchScale: 0.75, MinBatch: 1}},
		{UpperBound: math.Inf(1), Adjustment: Adjustment{BatchScale: 0.5, MinBatch: 32, ForceMixed: true}},
	})
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return o
}

// Suggest returns a complete new config tuned to the reading. Pathological
// intensities are clamped to zero before lookup, and the result is always
// structurally valid for a valid base config.
func (o *Optimizer) Suggest(base model.TrainingConfig, reading model.CarbonReading) model.TrainingConfig {
	intensity := reading.Intensity
	if math.IsNaN(intensity) || intensity < 0 {
		intensity = 0
	}
	out := base
	for _, r := range o.rules {
		if intensity > r.UpperBound {
			continue
		}
		batch := int(float64(base.BatchSize) * r.Adjustment.BatchScale)
		if batch < r.Adjustment.MinBatch {
			batch = r.Adjustment.MinBatch
		}
		if batch > base.BatchSize {
			batch = base.BatchSize
		}
		if batch < 1 {
			batch = 1
		}
		out.BatchSize = batch
		if r.Adjustment.ForceMixed {
			out.Precision = model.PrecisionMixed
		}
		return out
	}
	return out
}
