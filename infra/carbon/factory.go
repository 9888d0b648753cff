package carbon

import (
	"time"

	"github.com/maelqr/carbonsched/config"
	corecarbon "github.com/maelqr/carbonsched/core/carbon"
	"github.com/maelqr/carbonsched/core/logger"
)

// NewProvider builds the provider selected by configuration. Live and mock
// providers are wrapped in the caching layer so the fallback chain and TTL
// semantics apply uniformly.
func NewProvider(cfg config.CarbonAPIConfig, log logger.Logger) corecarbon.Provider {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	switch cfg.Provider {
	case "electricitymap":
		return corecarbon.NewCachedProvider(NewLiveProvider(cfg.APIKey, cfg.APIURL, log), ttl, log)
	case "mock":
		return corecarbon.NewCachedProvider(NewMockProvider(cfg.MockSeed), ttl, log)
	default:
		return corecarbon.FallbackTableProvider{}
	}
}
