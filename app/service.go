// Package app wires the configuration into a running scheduler service:
// carbon provider, energy probe, optimizer, budget, report store, event bus
// and the optional metrics and MQTT exporters.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/maelqr/carbonsched/config"
	"github.com/maelqr/carbonsched/core/carbon"
	coremetrics "github.com/maelqr/carbonsched/core/metrics"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/optimizer"
	"github.com/maelqr/carbonsched/core/report"
	"github.com/maelqr/carbonsched/core/scheduler"
	infracarbon "github.com/maelqr/carbonsched/infra/carbon"
	infraenergy "github.com/maelqr/carbonsched/infra/energy"
	"github.com/maelqr/carbonsched/infra/logger"
	"github.com/maelqr/carbonsched/infra/metrics"
	"github.com/maelqr/carbonsched/infra/mqtt"
	"github.com/maelqr/carbonsched/internal/eventbus"
)

// Service holds the wired scheduler and its exporters.
type Service struct {
	Scheduler *scheduler.Scheduler
	Store     report.Store

	bus         eventbus.EventBus
	sink        coremetrics.MetricsSink
	pub         *mqtt.Publisher
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	provider := infracarbon.NewProvider(cfg.CarbonAPI, logger.New("carbon"))
	probe := infraenergy.NewCPUProbe(nil, logger.New("energy"))

	opt, err := buildOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	budget, err := buildBudget(cfg.Budget)
	if err != nil {
		return nil, fmt.Errorf("budget: %w", err)
	}
	store, err := report.NewJSONLStore(cfg.Report.Path)
	if err != nil {
		return nil, fmt.Errorf("report store: %w", err)
	}

	bus := eventbus.New()
	sched, err := scheduler.New(schedulerConfig(cfg), scheduler.Deps{
		Provider:  provider,
		Optimizer: opt,
		Probe:     probe,
		Budget:    budget,
		Store:     store,
		Bus:       bus,
		Log:       logger.New("scheduler"),
	})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		Scheduler:   sched,
		Store:       store,
		bus:         bus,
		sink:        buildSink(cfg.Metrics, logg),
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
	}
	return svc, nil
}

// Start launches the exporters. They stop when the context is canceled.
func (s *Service) Start(ctx context.Context) {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.pub != nil {
		mqtt.StartEventPublisher(ctx, s.bus, s.pub)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
}

// Run requests a session through the gate and executes fn under energy
// monitoring. It blocks until fn returns, the budget runs out or the context
// is canceled.
func (s *Service) Run(ctx context.Context, fn scheduler.TrainFunc) (report.SessionReport, error) {
	sess, err := s.Scheduler.RequestSession(ctx)
	if err != nil {
		return report.SessionReport{}, err
	}
	return sess.Run(ctx, fn)
}

// Close releases the bus, the store and the MQTT connection.
func (s *Service) Close() error {
	s.bus.Close()
	if s.pub != nil {
		s.pub.Close()
	}
	return s.Store.Close()
}

func buildOptimizer(cfg *config.Config) (*optimizer.Optimizer, error) {
	if cfg.Model.OptimizerRules != "" {
		opt, err := optimizer.LoadRules(cfg.Model.OptimizerRules)
		if err != nil {
			return nil, fmt.Errorf("optimizer rules: %w", err)
		}
		return opt, nil
	}
	return optimizer.Default(cfg.Train.MinCarbonIntensity, cfg.Train.MaxCarbonIntensity), nil
}

func buildBudget(cfg config.BudgetConfig) (*carbon.Budget, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	period := carbon.PeriodProject
	if cfg.Period == "daily" {
		period = carbon.PeriodDaily
	}
	return carbon.NewBudget(cfg.LimitGCO2, period)
}

func buildSink(cfg coremetrics.Config, log logger.Logger) coremetrics.MetricsSink {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			log.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return metrics.NewMultiSink(sinks...)
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	base := model.TrainingConfig{
		BatchSize: cfg.Model.BatchSize,
		Precision: model.PrecisionFull,
		Epochs:    cfg.Model.Epochs,
	}
	if cfg.Model.UseMixedPrecision {
		base.Precision = model.PrecisionMixed
	}
	return scheduler.Config{
		Region:              cfg.CarbonAPI.Region,
		Window:              scheduler.Window{Earliest: cfg.Train.EarliestStartHour, Latest: cfg.Train.LatestStartHour},
		MinIntensity:        cfg.Train.MinCarbonIntensity,
		MaxIntensity:        cfg.Train.MaxCarbonIntensity,
		PollInterval:        time.Duration(cfg.Train.PollIntervalSeconds) * time.Second,
		MaxRetries:          cfg.Train.MaxRetries,
		ExponentialBackoff:  cfg.Train.Backoff == "exponential",
		SamplingInterval:    time.Duration(cfg.Monitor.SamplingIntervalMS) * time.Millisecond,
		BudgetCheckInterval: time.Duration(cfg.Train.BudgetCheckIntervalSeconds) * time.Second,
		BaseConfig:          base,
	}
}
