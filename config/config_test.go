package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
carbon_api:
  provider: mock
  region: FR
train:
  earliest_start_hour: 22
  latest_start_hour: 6
  min_carbon_intensity: 100
  max_carbon_intensity: 400
model:
  batch_size: 64
  epochs: 3
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.CarbonAPI.Provider)
	assert.Equal(t, 300, cfg.CarbonAPI.CacheTTLSeconds)
	assert.Equal(t, 300, cfg.Train.PollIntervalSeconds)
	assert.Equal(t, 12, cfg.Train.MaxRetries)
	assert.Equal(t, "fixed", cfg.Train.Backoff)
	assert.Equal(t, 30, cfg.Train.BudgetCheckIntervalSeconds)
	assert.Equal(t, 1000, cfg.Monitor.SamplingIntervalMS)
	assert.Equal(t, "sessions.jsonl", cfg.Report.Path)
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{
  "carbon_api": {"provider": "fallback", "region": "DE"},
  "model": {"batch_size": 32, "epochs": 1}
}`))
	require.NoError(t, err)
	assert.Equal(t, "DE", cfg.CarbonAPI.Region)
	// Unset window defaults to the whole day.
	assert.Equal(t, 0, cfg.Train.EarliestStartHour)
	assert.Equal(t, 24, cfg.Train.LatestStartHour)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CARBON_CARBON_API__API_KEY", "from-env")
	t.Setenv("CARBON_CARBON_API__PROVIDER", "electricitymap")

	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, "electricitymap", cfg.CarbonAPI.Provider)
	assert.Equal(t, "from-env", cfg.CarbonAPI.APIKey)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"min above max", `
carbon_api: {provider: mock}
train: {min_carbon_intensity: 500, max_carbon_intensity: 100}
model: {batch_size: 64, epochs: 3}
`},
		{"unknown provider", `
carbon_api: {provider: watttime}
model: {batch_size: 64, epochs: 3}
`},
		{"electricitymap without key", `
carbon_api: {provider: electricitymap}
model: {batch_size: 64, epochs: 3}
`},
		{"hour out of range", `
carbon_api: {provider: mock}
train: {earliest_start_hour: 25, latest_start_hour: 6, max_carbon_intensity: 400}
model: {batch_size: 64, epochs: 3}
`},
		{"zero batch size", `
carbon_api: {provider: mock}
model: {batch_size: 0, epochs: 3}
`},
		{"enabled budget without limit", `
carbon_api: {provider: mock}
model: {batch_size: 64, epochs: 3}
budget: {enabled: true}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tc.yaml))
			require.Error(t, err)
		})
	}
}
