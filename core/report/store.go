package report

import (
	"context"
	"time"

	"github.com/maelqr/carbonsched/core/model"
)

// Query defines filters for retrieving session reports.
type Query struct {
	Start   time.Time
	End     time.Time
	Region  string
	Verdict model.Verdict
	// HasVerdict enables the Verdict filter; the zero Verdict is a valid value.
	HasVerdict bool
}

// Store persists SessionReports and supports querying.
type Store interface {
	Append(ctx context.Context, rep SessionReport) error
	Query(ctx context.Context, q Query) ([]SessionReport, error)
	Close() error
}
