// Package config loads and validates the service configuration. Invalid
// combinations are surfaced here, before any scheduling starts.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/maelqr/carbonsched/core/metrics"
	"github.com/maelqr/carbonsched/infra/mqtt"
)

type Config struct {
	CarbonAPI CarbonAPIConfig `json:"carbon_api"`
	Train     TrainConfig     `json:"train"`
	Model     ModelConfig     `json:"model"`
	Budget    BudgetConfig    `json:"budget"`
	Monitor   MonitorConfig   `json:"monitor"`
	Metrics   metrics.Config  `json:"metrics"`
	Report    ReportConfig    `json:"report"`
	MQTT      mqtt.Config     `json:"mqtt"`
}

// Load reads the configuration file (YAML or JSON by extension), applies
// CARBON_-prefixed environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. CARBON_CARBON_API__API_KEY.
	if err := k.Load(env.Provider("CARBON_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "carbon_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.CarbonAPI.SetDefaults()
	cfg.Train.SetDefaults()
	cfg.Monitor.SetDefaults()
	cfg.Report.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. The first failure is returned.
func (c *Config) Validate() error {
	if err := c.CarbonAPI.Validate(); err != nil {
		return fmt.Errorf("carbon_api: %w", err)
	}
	if err := c.Train.Validate(); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if c.MQTT.Enabled {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
