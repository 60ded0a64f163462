// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read-only aggregations behind the
// admin statistics endpoint.
package repo

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CurrencyStat aggregates request count and total amount per source currency.
type CurrencyStat struct {
	Currency    string  `json:"currency"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// DailyStat is the request count for one calendar day (UTC).
type DailyStat struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// ExchangeStats is the admin dashboard aggregate.
type ExchangeStats struct {
	TotalRequests int64            `json:"total_requests"`
	StatusCounts  map[string]int64 `json:"status_counts"`
	CurrencyStats []CurrencyStat   `json:"currency_stats"`
	DailyStats    []DailyStat      `json:"daily_stats"`
}

// GetExchangeStats computes totals, per-status and per-currency counts, and
// daily counts for the trailing 7 days. Daily bucketing happens in Go to stay
// portable across sqlite and postgres date functions.
func GetExchangeStats(ctx context.Context, db *gorm.DB, now time.Time) (*ExchangeStats, error) {
	stats := &ExchangeStats{StatusCounts: map[string]int64{}}

	if err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Count(&stats.TotalRequests).Error; err != nil {
		return nil, err
	}

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, r := range statusRows {
		stats.StatusCounts[r.Status] = r.Count
	}

	var currencyRows []struct {
		FromCurrency string
		Count        int64
		TotalAmount  float64
	}
	if err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Select("from_currency, COUNT(*) as count, SUM(amount) as total_amount").
		Group("from_currency").
		Scan(&currencyRows).Error; err != nil {
		return nil, err
	}
	for _, r := range currencyRows {
		stats.CurrencyStats = append(stats.CurrencyStats, CurrencyStat{
			Currency:    r.FromCurrency,
			Count:       r.Count,
			TotalAmount: r.TotalAmount,
		})
	}
	sort.Slice(stats.CurrencyStats, func(i, j int) bool {
		return stats.CurrencyStats[i].Currency < stats.CurrencyStats[j].Currency
	})

	since := now.UTC().AddDate(0, 0, -7)
	var createdAts []time.Time
	if err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &createdAts).Error; err != nil {
		return nil, err
	}
	daily := map[string]int64{}
	for _, ts := range createdAts {
		daily[ts.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		stats.DailyStats = append(stats.DailyStats, DailyStat{Day: d, Count: daily[d]})
	}

	return stats, nil
}
