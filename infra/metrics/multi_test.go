package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coremetrics "github.com/maelqr/carbonsched/core/metrics"
)

type recordingSink struct {
	decisions int
	samples   int
	sessions  int
	err       error
}

func (r *recordingSink) RecordDecision(coremetrics.DecisionRecord) error {
	r.decisions++
	return r.err
}

func (r *recordingSink) RecordSample(coremetrics.SampleRecord) error {
	r.samples++
	return r.err
}

func (r *recordingSink) RecordSession(coremetrics.SessionRecord) error {
	r.sessions++
	return r.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMultiSink(a, b)
	require.NoError(t, m.RecordDecision(coremetrics.DecisionRecord{}))
	require.NoError(t, m.RecordSample(coremetrics.SampleRecord{}))
	require.NoError(t, m.RecordSession(coremetrics.SessionRecord{}))
	require.Equal(t, 1, a.decisions)
	require.Equal(t, 1, b.samples)
	require.Equal(t, 1, b.sessions)
}

func TestMultiSinkCollectsErrors(t *testing.T) {
	a := &recordingSink{err: errors.New("boom")}
	b := &recordingSink{}
	m := NewMultiSink(a, b)
	err := m.RecordDecision(coremetrics.DecisionRecord{})
	require.Error(t, err)
	require.Equal(t, 1, b.decisions, "healthy sink still invoked")
}
