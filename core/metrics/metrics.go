// Package metrics defines the sink interface used to export scheduler and
// energy observations. Implementations live in infra/metrics.
package metrics

import (
	"time"

	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/report"
)

// DecisionRecord captures one gate evaluation for observability.
type DecisionRecord struct {
	SessionID string
	Decision  model.SchedulingDecision
	Time      time.Time
}

// SampleRecord pairs an energy sample with its session.
type SampleRecord struct {
	SessionID string
	Region    string
	Sample    model.EnergySample
}

// SessionRecord carries the finalized report of a session.
type SessionRecord struct {
	Report report.SessionReport
}

// MetricsSink records scheduler observations for observability purposes.
type MetricsSink interface {
	RecordDecision(DecisionRecord) error
	RecordSample(SampleRecord) error
	RecordSession(SessionRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionRecord) error { return nil }
func (NopSink) RecordSample(SampleRecord) error     { return nil }
func (NopSink) RecordSession(SessionRecord) error   { return nil }

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
