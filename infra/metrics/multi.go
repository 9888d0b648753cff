package metrics

import (
	"errors"

	coremetrics "github.com/maelqr/carbonsched/core/metrics"
)

// MultiSink fans records out to several sinks, collecting all errors.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink from the given sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordDecision(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSample(rec coremetrics.SampleRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordSample(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSession(rec coremetrics.SessionRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordSession(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
