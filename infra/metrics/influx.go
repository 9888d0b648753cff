package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/maelqr/carbonsched/core/metrics"
	"github.com/maelqr/carbonsched/infra/logger"
)

// InfluxSink writes scheduler observations to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d := rec.Decision
	p := write.NewPointWithMeasurement("scheduling_decision").
		AddTag("session_id", rec.SessionID).
		AddTag("region", d.Reading.Region).
		AddTag("verdict", d.Verdict.String()).
		AddTag("source", d.Reading.Source.String()).
		AddField("intensity_g_per_kwh", round3(d.Reading.Intensity)).
		AddField("reason", d.Reason).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSample(rec coremetrics.SampleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("energy_sample").
		AddTag("session_id", rec.SessionID).
		AddTag("region", rec.Region).
		AddField("power_watts", round3(rec.Sample.PowerWatts)).
		AddField("cpu_power_watts", round3(rec.Sample.CPUPowerWatts)).
		AddField("accel_power_watts", round3(rec.Sample.AccelPowerWatts)).
		AddField("cpu_utilization", round3(rec.Sample.CPUUtilization)).
		AddField("cumulative_kwh", rec.Sample.CumulativeKWh).
		SetTime(rec.Sample.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSession(rec coremetrics.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r := rec.Report
	p := write.NewPointWithMeasurement("training_session").
		AddTag("session_id", r.SessionID).
		AddTag("region", r.Region).
		AddTag("verdict", r.FinalVerdict.String()).
		AddField("energy_kwh", r.Energy.TotalKWh).
		AddField("emissions_g", round3(r.EmissionsG)).
		AddField("cost_usd", round3(r.CostUSD)).
		AddField("avg_power_watts", round3(r.Energy.AvgPowerWatts)).
		AddField("partial", r.Partial).
		SetTime(r.FinishedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
