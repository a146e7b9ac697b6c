package service

import (
	"context"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/cache"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	reportCache cache.ReportCache
	cacheTTL    time.Duration
	// over-fetch multiplier for AvailableDates; distinct dates collapse
	// an unknown number of transactions.
	dateOverfetch int
}

func New(repo store.Repository, reportCache cache.ReportCache, cacheTTL time.Duration, dateOverfetch int) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if cacheTTL < time.Minute {
		cacheTTL = 15 * time.Minute
	}
	if dateOverfetch < 1 {
		dateOverfetch = 10
	}
	return &Service{
		repo:          repo,
		reportCache:   reportCache,
		cacheTTL:      cacheTTL,
		dateOverfetch: dateOverfetch,
	}
}

func actorUsername(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}
