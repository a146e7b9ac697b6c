package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store/memory"
)

// fakeCache is an in-process ReportCache that records sets.
type fakeCache struct {
	entries map[string]domain.DailySummary
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.DailySummary)}
}

func (c *fakeCache) Get(_ context.Context, date string) (domain.DailySummary, bool, error) {
	summary, ok := c.entries[date]
	return summary, ok, nil
}

func (c *fakeCache) Set(_ context.Context, date string, summary domain.DailySummary, _ time.Duration) error {
	c.entries[date] = summary
	c.sets++
	return nil
}

var seedTxCounter int

// seedTx appends a ledger transaction at a chosen timestamp, keeping the
// before/after chain for the key intact.
func seedTx(t *testing.T, repo *memory.Store, itemID int64, category string, txType domain.TxType, source domain.TxSource, magnitude, before, after int, at time.Time) {
	t.Helper()
	seedTxCounter++
	err := repo.ApplyMutation(context.Background(), domain.StockItem{
		ItemID:            itemID,
		PartCategory:      category,
		Quantity:          after,
		LowStockThreshold: domain.NoAlertThreshold,
		LastUpdated:       at,
	}, domain.StockTransaction{
		ID:             fmt.Sprintf("stx-seed-%d", seedTxCounter),
		ItemID:         itemID,
		PartCategory:   category,
		Quantity:       magnitude,
		QuantityBefore: before,
		QuantityAfter:  after,
		Type:           txType,
		Source:         source,
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("seed transaction failed: %v", err)
	}
}

func TestReportNilForEmptyDay(t *testing.T) {
	svc, _ := newTestService()

	report, err := svc.Report(context.Background(), "2026-03-01")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report != nil {
		t.Fatalf("expected nil report for a day without transactions, got %+v", report)
	}
}

func TestReportRejectsBadDate(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Report(context.Background(), "01/03/2026")
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for malformed date, got %v", err)
	}
}

func TestReportFoldsDay(t *testing.T) {
	svc, repo := newTestService()
	day := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	seedTx(t, repo, 10, "SCREEN", domain.TxTypeAdd, domain.SourceQuickAdd, 5, 0, 5, day)
	seedTx(t, repo, 10, "SCREEN", domain.TxTypeSubtract, domain.SourceManual, 2, 5, 3, day.Add(time.Hour))
	seedTx(t, repo, 22, "BATTERY", domain.TxTypeSet, domain.SourceUpdateModal, 7, 0, 7, day.Add(2*time.Hour))

	report, err := svc.Report(context.Background(), "2026-08-20")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report == nil {
		t.Fatalf("expected a report")
	}
	if report.Precomputed {
		t.Fatalf("live fold must not be marked precomputed")
	}
	summary := report.Summary
	if summary.TransactionCount != 3 {
		t.Fatalf("expected 3 transactions, got %d", summary.TransactionCount)
	}
	if summary.TotalAdded != 5 || summary.TotalSubtracted != 2 || summary.TotalSet != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if summary.ByType[domain.TxTypeAdd] != 1 || summary.BySource[domain.SourceQuickAdd] != 1 {
		t.Fatalf("unexpected breakdowns: %+v", summary)
	}
	if summary.UniqueItems != 2 || summary.UniqueCategories != 2 {
		t.Fatalf("expected 2 unique items and categories, got %d/%d", summary.UniqueItems, summary.UniqueCategories)
	}
	if len(report.Transactions) != 3 {
		t.Fatalf("report must always carry the raw transactions, got %d", len(report.Transactions))
	}
	if report.Transactions[0].CreatedAt.Before(report.Transactions[2].CreatedAt) {
		t.Fatalf("transactions must be newest first")
	}
}

func TestReportPrefersPrecomputedRow(t *testing.T) {
	svc, repo := newTestService()
	day := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	seedTx(t, repo, 10, "SCREEN", domain.TxTypeAdd, domain.SourceQuickAdd, 5, 0, 5, day)

	stored := foldSummary("2026-08-21", nil)
	stored.TransactionCount = 99
	if err := repo.UpsertDailySummary(context.Background(), stored); err != nil {
		t.Fatalf("upsert summary failed: %v", err)
	}

	report, err := svc.Report(context.Background(), "2026-08-21")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !report.Precomputed {
		t.Fatalf("expected precomputed summary")
	}
	if report.Summary.TransactionCount != 99 {
		t.Fatalf("expected the stored row to win, got %d", report.Summary.TransactionCount)
	}
}

func TestReportReadsThroughCache(t *testing.T) {
	repo := memory.New()
	reportCache := newFakeCache()
	svc := New(repo, reportCache, 5*time.Minute, 10)
	day := time.Date(2026, 8, 22, 8, 0, 0, 0, time.UTC)
	seedTx(t, repo, 10, "SCREEN", domain.TxTypeAdd, domain.SourceQuickAdd, 5, 0, 5, day)

	first, err := svc.Report(context.Background(), "2026-08-22")
	if err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	if first.Precomputed {
		t.Fatalf("first read should be a live fold")
	}
	if reportCache.sets != 1 {
		t.Fatalf("first read must populate the cache, sets=%d", reportCache.sets)
	}

	second, err := svc.Report(context.Background(), "2026-08-22")
	if err != nil {
		t.Fatalf("second report failed: %v", err)
	}
	if !second.Precomputed {
		t.Fatalf("second read should be served from cache")
	}
	if reportCache.sets != 1 {
		t.Fatalf("cache hit must not re-set, sets=%d", reportCache.sets)
	}
	if second.Summary.TotalAdded != first.Summary.TotalAdded {
		t.Fatalf("cached summary differs from fold")
	}
}

func TestRebuildDailySummary(t *testing.T) {
	svc, repo := newTestService()
	day := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	seedTx(t, repo, 10, "SCREEN", domain.TxTypeAdd, domain.SourceBulkEntry, 8, 0, 8, day)
	seedTx(t, repo, 10, "SCREEN", domain.TxTypeSubtract, domain.SourceManual, 3, 8, 5, day.Add(time.Minute))

	summary, err := svc.RebuildDailySummary(context.Background(), "2026-08-23")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if summary.TotalAdded != 8 || summary.TotalSubtracted != 3 {
		t.Fatalf("unexpected rebuilt totals: %+v", summary)
	}

	stored, err := repo.GetDailySummary(context.Background(), "2026-08-23")
	if err != nil {
		t.Fatalf("stored summary missing: %v", err)
	}
	if stored.TransactionCount != 2 {
		t.Fatalf("stored row must equal the fold, got %+v", stored)
	}

	report, err := svc.Report(context.Background(), "2026-08-23")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !report.Precomputed {
		t.Fatalf("report after rebuild must use the precomputed row")
	}
}

func TestAvailableDatesNewestFirst(t *testing.T) {
	svc, repo := newTestService()

	seedTx(t, repo, 1, "SCREEN", domain.TxTypeAdd, domain.SourceManual, 1, 0, 1, time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC))
	seedTx(t, repo, 1, "SCREEN", domain.TxTypeAdd, domain.SourceManual, 1, 1, 2, time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC))
	seedTx(t, repo, 1, "SCREEN", domain.TxTypeAdd, domain.SourceManual, 1, 2, 3, time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC))
	seedTx(t, repo, 1, "SCREEN", domain.TxTypeAdd, domain.SourceManual, 1, 3, 4, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC))

	dates, err := svc.AvailableDates(context.Background(), 10)
	if err != nil {
		t.Fatalf("available dates failed: %v", err)
	}
	want := []string{"2026-08-20", "2026-08-19", "2026-08-18"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, dates)
		}
	}

	capped, err := svc.AvailableDates(context.Background(), 2)
	if err != nil {
		t.Fatalf("available dates failed: %v", err)
	}
	if len(capped) != 2 || capped[0] != "2026-08-20" {
		t.Fatalf("expected the two newest dates, got %v", capped)
	}
}
