package config

import "fmt"

// ModelConfig carries the baseline training knobs handed to the optimizer.
type ModelConfig struct {
	BatchSize         int  `json:"batch_size"`
	UseMixedPrecision bool `json:"use_mixed_precision"`
	Epochs            int  `json:"epochs"`
	// OptimizerRules points to a YAML/JSON rule table overriding the default
	// three-band adjustment.
	OptimizerRules string `json:"optimizer_rules"`
}

func (c ModelConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	return nil
}

// BudgetConfig bounds cumulative emissions across sessions.
type BudgetConfig struct {
	Enabled   bool    `json:"enabled"`
	LimitGCO2 float64 `json:"limit_g_co2"`
	// Period is "daily" or "project".
	Period string `json:"period"`
}

func (c BudgetConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.LimitGCO2 <= 0 {
		return fmt.Errorf("limit_g_co2 must be positive")
	}
	if c.Period != "" && c.Period != "daily" && c.Period != "project" {
		return fmt.Errorf("unknown period %q", c.Period)
	}
	return nil
}

// MonitorConfig tunes the energy sampler.
type MonitorConfig struct {
	SamplingIntervalMS int `json:"sampling_interval_ms"`
}

func (c *MonitorConfig) SetDefaults() {
	if c.SamplingIntervalMS == 0 {
		c.SamplingIntervalMS = 1000
	}
}

func (c MonitorConfig) Validate() error {
	if c.SamplingIntervalMS < 0 {
		return fmt.Errorf("sampling_interval_ms must be non-negative")
	}
	return nil
}

// ReportConfig locates the session report store.
type ReportConfig struct {
	Path string `json:"path"`
}

func (c *ReportConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "sessions.jsonl"
	}
}
