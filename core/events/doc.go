// Package events defines the scheduler related events emitted on the event bus.
//
// Available event types:
//   - DecisionEvent: outcome of one gate evaluation
//   - StateEvent: scheduler state transition
//   - BudgetAlertEvent: carbon budget limit crossed
//   - ReportEvent: finalized session report
package events
