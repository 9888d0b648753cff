// Package carbon provides the concrete carbon intensity providers: the
// ElectricityMap HTTP client and the simulated provider used for testing and
// offline runs.
package carbon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/maelqr/carbonsched/core/logger"
	"github.com/maelqr/carbonsched/core/model"
)

const defaultAPIURL = "https://api.electricitymap.org/v3/carbon-intensity/latest"

// LiveProvider fetches the current intensity from an ElectricityMap-style API.
type LiveProvider struct {
	client *http.Client
	apiURL string
	apiKey string
	log    logger.Logger
}

// NewLiveProvider creates a client for the given API key. An empty apiURL
// uses the public endpoint.
func NewLiveProvider(apiKey, apiURL string, log logger.Logger) *LiveProvider {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &LiveProvider{
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
		log:    log,
	}
}

type intensityResponse struct {
	CarbonIntensity float64 `json:"carbonIntensity"`
	Zone            string  `json:"zone"`
	UpdatedAt       string  `json:"updatedAt"`
}

// Current fetches the latest reading for the region.
func (p *LiveProvider) Current(ctx context.Context, region string) (model.CarbonReading, error) {
	url := fmt.Sprintf("%s?zone=%s", p.apiURL, region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.CarbonReading{}, err
	}
	req.Header.Set("auth-token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return model.CarbonReading{}, fmt.Errorf("fetch carbon intensity: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.CarbonReading{}, fmt.Errorf("carbon api status %d", resp.StatusCode)
	}
	var body intensityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.CarbonReading{}, fmt.Errorf("decode carbon api response: %w", err)
	}
	if body.CarbonIntensity < 0 {
		return model.CarbonReading{}, fmt.Errorf("negative intensity %v from api", body.CarbonIntensity)
	}
	p.log.Debugf("current carbon intensity in %s: %.0f gCO2eq/kWh", region, body.CarbonIntensity)
	return model.CarbonReading{
		Region:    region,
		Intensity: body.CarbonIntensity,
		Timestamp: time.Now(),
		Source:    model.SourceLive,
	}, nil
}
