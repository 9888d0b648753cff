package mqtt

import (
	"context"

	"github.com/maelqr/carbonsched/core/events"
	"github.com/maelqr/carbonsched/internal/eventbus"
)

// StartEventPublisher subscribes to the event bus and forwards decisions and
// reports to the broker. It stops when the context is canceled.
func StartEventPublisher(ctx context.Context, bus eventbus.EventBus, pub *Publisher) {
	if bus == nil || pub == nil {
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
					if err := pub.PublishDecision(e.SessionID, e.Decision); err != nil {
						pub.log.Errorf("publish decision: %v", err)
					}
				case events.ReportEvent:
					if err := pub.PublishReport(e.Report); err != nil {
						pub.log.Errorf("publish report: %v", err)
					}
				}
			}
		}
	}()
}
