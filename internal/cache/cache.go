package cache

import (
	"context"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
)

// ReportCache fronts the daily-summary store. Get returns (summary,
// found, error); a miss is not an error.
type ReportCache interface {
	Get(ctx context.Context, date string) (domain.DailySummary, bool, error)
	Set(ctx context.Context, date string, summary domain.DailySummary, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(context.Context, string) (domain.DailySummary, bool, error) {
	return domain.DailySummary{}, false, nil
}

func (NoopReportCache) Set(context.Context, string, domain.DailySummary, time.Duration) error {
	return nil
}
