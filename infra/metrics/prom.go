package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/maelqr/carbonsched/core/metrics"
)

// PromSink exposes scheduler and energy metrics through Prometheus.
type PromSink struct {
	decisions *prometheus.CounterVec
	intensity *prometheus.GaugeVec
	power     prometheus.Gauge
	energy    prometheus.Gauge
	emissions *prometheus.CounterVec
	sessions  *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_decisions_total",
		Help: "Total number of scheduler gate evaluations",
	}, []string{"verdict", "source"})
	intensity := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "carbon_intensity_g_per_kwh",
		Help: "Latest observed grid carbon intensity",
	}, []string{"region", "source"})
	power := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "training_power_watts",
		Help: "Instantaneous estimated power draw of the training session",
	})
	energy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "training_energy_kwh_total",
		Help: "Cumulative energy of the current training session",
	})
	emissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_emissions_g_total",
		Help: "CO2eq emitted by finished training sessions",
	}, []string{"region"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_sessions_total",
		Help: "Finished training sessions by outcome",
	}, []string{"verdict", "partial"})

	collectors := []prometheus.Collector{decisions, intensity, power, energy, emissions, sessions}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	return &PromSink{
		decisions: collectors[0].(*prometheus.CounterVec),
		intensity: collectors[1].(*prometheus.GaugeVec),
		power:     collectors[2].(prometheus.Gauge),
		energy:    collectors[3].(prometheus.Gauge),
		emissions: collectors[4].(*prometheus.CounterVec),
		sessions:  collectors[5].(*prometheus.CounterVec),
	}, nil
}

func (s *PromSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	d := rec.Decision
	s.decisions.WithLabelValues(d.Verdict.String(), d.Reading.Source.String()).Inc()
	s.intensity.WithLabelValues(d.Reading.Region, d.Reading.Source.String()).Set(d.Reading.Intensity)
	return nil
}

func (s *PromSink) RecordSample(rec coremetrics.SampleRecord) error {
	s.power.Set(rec.Sample.PowerWatts)
	s.energy.Set(rec.Sample.CumulativeKWh)
	return nil
}

func (s *PromSink) RecordSession(rec coremetrics.SessionRecord) error {
	r := rec.Report
	s.emissions.WithLabelValues(r.Region).Add(r.EmissionsG)
	partial := "false"
	if r.Partial {
		partial = "true"
	}
	s.sessions.WithLabelValues(r.FinalVerdict.String(), partial).Inc()
	return nil
}
