package config

import "fmt"

// CarbonAPIConfig selects and configures the carbon intensity provider.
type CarbonAPIConfig struct {
	// Provider is "electricitymap", "mock" or "fallback".
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Region   string `json:"region"`
	// APIURL overrides the provider endpoint, mainly for tests.
	APIURL string `json:"api_url"`
	// CacheTTLSeconds bounds how long a live reading may be reused.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
	// MockSeed makes the mock provider deterministic when non-zero.
	MockSeed int64 `json:"mock_seed"`
}

func (c *CarbonAPIConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "fallback"
	}
	if c.Region == "" {
		c.Region = "FR"
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 300
	}
}

func (c CarbonAPIConfig) Validate() error {
	switch c.Provider {
	case "electricitymap", "mock", "fallback":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Provider == "electricitymap" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider electricitymap")
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("cache_ttl_seconds must be non-negative")
	}
	return nil
}
