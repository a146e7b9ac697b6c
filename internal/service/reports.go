package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
)

const dateLayout = "2006-01-02"

func dayWindow(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date %q", store.ErrInvalidInput, date)
	}
	return day, day.Add(24 * time.Hour), nil
}

// Report builds the daily report for a YYYY-MM-DD date (today when
// empty). Days with no transactions yield a nil report, not an error.
// The summary is resolved read-through: cache, then the precomputed
// store row, then a live fold of the day's transactions.
func (s *Service) Report(ctx context.Context, date string) (*domain.DailyReport, error) {
	if date == "" {
		date = time.Now().UTC().Format(dateLayout)
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.ListTransactionsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	if cached, found, err := s.reportCache.Get(ctx, date); err == nil && found {
		return &domain.DailyReport{Date: date, Summary: cached, Transactions: txs, Precomputed: true}, nil
	} else if err != nil {
		log.Printf("[service] WARN: report cache get failed for %s: %v", date, err)
	}

	summary, err := s.repo.GetDailySummary(ctx, date)
	precomputed := err == nil
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		folded := foldSummary(date, txs)
		summary = &folded
	}

	if err := s.reportCache.Set(ctx, date, *summary, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set failed for %s: %v", date, err)
	}

	return &domain.DailyReport{Date: date, Summary: *summary, Transactions: txs, Precomputed: precomputed}, nil
}

// AvailableDates lists distinct transaction dates, newest first. It
// over-fetches recent transactions because an unknown number collapse
// into each date.
func (s *Service) AvailableDates(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		limit = 30
	}
	txs, err := s.repo.ListAllTransactions(ctx, limit*s.dateOverfetch)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, limit)
	dates := make([]string, 0, limit)
	for _, tx := range txs {
		date := tx.CreatedAt.UTC().Format(dateLayout)
		if seen[date] {
			continue
		}
		seen[date] = true
		dates = append(dates, date)
		if len(dates) >= limit {
			break
		}
	}
	return dates, nil
}

// RebuildDailySummary folds a day from the raw log and stores the
// result as the precomputed row, replacing whatever was there.
func (s *Service) RebuildDailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	if date == "" {
		date = time.Now().UTC().Format(dateLayout)
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return domain.DailySummary{}, err
	}

	txs, err := s.repo.ListTransactionsBetween(ctx, from, to)
	if err != nil {
		return domain.DailySummary{}, err
	}
	summary := foldSummary(date, txs)
	if err := s.repo.UpsertDailySummary(ctx, summary); err != nil {
		return domain.DailySummary{}, err
	}
	if err := s.reportCache.Set(ctx, date, summary, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set failed for %s: %v", date, err)
	}
	return summary, nil
}

func foldSummary(date string, txs []domain.StockTransaction) domain.DailySummary {
	summary := domain.DailySummary{
		Date:     date,
		ByType:   make(map[domain.TxType]int),
		BySource: make(map[domain.TxSource]int),
	}
	items := make(map[int64]bool)
	categories := make(map[string]bool)
	for _, tx := range txs {
		summary.TransactionCount++
		switch tx.Type {
		case domain.TxTypeAdd:
			summary.TotalAdded += tx.Quantity
		case domain.TxTypeSubtract:
			summary.TotalSubtracted += tx.Quantity
		case domain.TxTypeSet:
			summary.TotalSet++
		}
		summary.ByType[tx.Type]++
		summary.BySource[tx.Source]++
		items[tx.ItemID] = true
		categories[tx.PartCategory] = true
	}
	summary.UniqueItems = len(items)
	summary.UniqueCategories = len(categories)
	return summary
}
