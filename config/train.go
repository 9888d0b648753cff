package config

import "fmt"

// TrainConfig defines the scheduling window, the intensity thresholds and the
// wait policy.
type TrainConfig struct {
	// EarliestStartHour/LatestStartHour form a half-open [earliest, latest)
	// wall-clock window. earliest > latest spans midnight.
	EarliestStartHour int `json:"earliest_start_hour"`
	LatestStartHour   int `json:"latest_start_hour"`
	// MinCarbonIntensity is the "optimal" threshold under which training runs
	// with baseline parameters.
	MinCarbonIntensity float64 `json:"min_carbon_intensity"`
	// MaxCarbonIntensity is the hard ceiling; above it the scheduler waits.
	MaxCarbonIntensity float64 `json:"max_carbon_intensity"`
	// PollIntervalSeconds is the base delay between WAITING re-evaluations.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// MaxRetries bounds how many times a WAITING session re-evaluates before
	// it is rejected.
	MaxRetries int `json:"max_retries"`
	// Backoff is "fixed" or "exponential".
	Backoff string `json:"backoff"`
	// BudgetCheckIntervalSeconds controls how often a running session checks
	// the carbon budget.
	BudgetCheckIntervalSeconds int `json:"budget_check_interval_seconds"`
}

func (c *TrainConfig) SetDefaults() {
	if c.LatestStartHour == 0 && c.EarliestStartHour == 0 {
		// Unset window means always allowed.
		c.EarliestStartHour = 0
		c.LatestStartHour = 24
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 300
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 12
	}
	if c.Backoff == "" {
		c.Backoff = "fixed"
	}
	if c.BudgetCheckIntervalSeconds == 0 {
		c.BudgetCheckIntervalSeconds = 30
	}
}

func (c TrainConfig) Validate() error {
	if c.EarliestStartHour < 0 || c.EarliestStartHour > 23 {
		return fmt.Errorf("earliest_start_hour %d outside 0-23", c.EarliestStartHour)
	}
	if c.LatestStartHour < 0 || c.LatestStartHour > 24 {
		return fmt.Errorf("latest_start_hour %d outside 0-24", c.LatestStartHour)
	}
	if c.MinCarbonIntensity < 0 {
		return fmt.Errorf("min_carbon_intensity must be non-negative")
	}
	if c.MaxCarbonIntensity < 0 {
		return fmt.Errorf("max_carbon_intensity must be non-negative")
	}
	if c.MinCarbonIntensity > c.MaxCarbonIntensity {
		return fmt.Errorf("min_carbon_intensity %v exceeds max_carbon_intensity %v",
			c.MinCarbonIntensity, c.MaxCarbonIntensity)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}
	if c.Backoff != "fixed" && c.Backoff != "exponential" {
		return fmt.Errorf("unknown backoff %q", c.Backoff)
	}
	if c.BudgetCheckIntervalSeconds <= 0 {
		return fmt.Errorf("budget_check_interval_seconds must be positive")
	}
	return nil
}
