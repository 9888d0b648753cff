package metrics

import (
	"context"
	"time"

	"github.com/maelqr/carbonsched/core/events"
	coremetrics "github.com/maelqr/carbonsched/core/metrics"
	"github.com/maelqr/carbonsched/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// scheduler events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.DecisionEvent:
					_ = sink.RecordDecision(coremetrics.DecisionRecord{
						SessionID: e.SessionID,
						Decision:  e.Decision,
						Time:      time.Now(),
					})
				case events.SampleEvent:
					_ = sink.RecordSample(coremetrics.SampleRecord{
						SessionID: e.SessionID,
						Region:    e.Region,
						Sample:    e.Sample,
					})
				case events.ReportEvent:
					_ = sink.RecordSession(coremetrics.SessionRecord{Report: e.Report})
				}
			}
		}
	}()
}
