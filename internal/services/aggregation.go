package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// AggregationService answers the read-side totals: month, per-category
// and per-weekday. Window math lives in the resolver; weekday grouping
// happens here in Go so attribution follows local day boundaries.
type AggregationService struct {
	repo     *storage.Repository
	resolver *core.Resolver
}

func NewAggregationService(repo *storage.Repository, resolver *core.Resolver) *AggregationService {
	return &AggregationService{repo: repo, resolver: resolver}
}

// MonthTotal sums the accepted expenses of the local month containing at.
func (s *AggregationService) MonthTotal(ctx context.Context, userID string, at time.Time) (core.Money, error) {
	start, end := s.resolver.MonthWindow(at)
	total, err := s.repo.Queries().SumExpenses(ctx, userID, start, end, 0)
	if err != nil {
		return core.Money{}, fmt.Errorf("month total: %w", err)
	}
	return total, nil
}

// CategoryTotal is one category's share of a month, zero-filled.
type CategoryTotal struct {
	Category core.Category
	Total    core.Money
}

// CategoryTotals returns the month's spend per category over the FULL
// category list. Categories with no expenses appear with a zero total.
func (s *AggregationService) CategoryTotals(ctx context.Context, userID string, at time.Time) ([]CategoryTotal, error) {
	q := s.repo.Queries()

	categories, err := q.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	start, end := s.resolver.MonthWindow(at)
	sums, err := q.SumByCategory(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}

	byCategory := make(map[int64]core.Money, len(sums))
	for _, row := range sums {
		byCategory[row.CategoryID] = row.Total
	}

	totals := make([]CategoryTotal, 0, len(categories))
	for _, c := range categories {
		totals = append(totals, CategoryTotal{Category: c, Total: byCategory[c.ID]})
	}
	return totals, nil
}

// WeekdayTotal is one local weekday's share of an ISO week.
type WeekdayTotal struct {
	Weekday time.Weekday
	Total   core.Money
}

// WeekdayTotals returns the spend per local weekday for the ISO week
// containing at, Monday first, all seven days present.
func (s *AggregationService) WeekdayTotals(ctx context.Context, userID string, at time.Time) ([]WeekdayTotal, error) {
	start, end := s.resolver.ISOWeekWindow(at)
	rows, err := s.repo.Queries().ListExpensesBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list week expenses: %w", err)
	}

	byDay := map[time.Weekday]int64{}
	for _, e := range rows {
		byDay[s.resolver.Weekday(e.DateTime)] += e.Amount.Cents
	}

	// Monday-first ISO ordering.
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	totals := make([]WeekdayTotal, 0, len(order))
	for _, d := range order {
		totals = append(totals, WeekdayTotal{Weekday: d, Total: core.Money{Cents: byDay[d]}})
	}
	return totals, nil
}

// LastN returns the user's n most recent expenses with category names.
func (s *AggregationService) LastN(ctx context.Context, userID string, n int) ([]storage.ExpenseWithCategory, error) {
	rows, err := s.repo.Queries().ListRecentExpenses(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	return rows, nil
}

// Dashboard is the composed month-at-a-glance read model.
type Dashboard struct {
	Budget     core.Money
	MonthTotal core.Money
	Remaining  core.Money
	Recent     []storage.ExpenseWithCategory
	Categories []CategoryTotal
	Week       []WeekdayTotal
}

// DashboardService assembles the dashboard from the aggregation reads.
type DashboardService struct {
	repo     *storage.Repository
	resolver *core.Resolver
	agg      *AggregationService
	now      func() time.Time
}

func NewDashboardService(repo *storage.Repository, resolver *core.Resolver, agg *AggregationService) *DashboardService {
	return &DashboardService{
		repo:     repo,
		resolver: resolver,
		agg:      agg,
		now:      time.Now,
	}
}

// Compose builds the dashboard for the current local month and week. An
// absent budget is not an error on the read path; it renders as zero.
func (s *DashboardService) Compose(ctx context.Context, userID string) (Dashboard, error) {
	if userID == "" {
		return Dashboard{}, core.ErrEmptyUser
	}

	now := s.now()
	var d Dashboard

	month, year := s.resolver.MonthYear(now)
	budget, err := s.repo.Queries().GetBudget(ctx, userID, month, year)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// keep zero
	case err != nil:
		return Dashboard{}, fmt.Errorf("load budget: %w", err)
	default:
		d.Budget = budget.Amount
	}

	if d.MonthTotal, err = s.agg.MonthTotal(ctx, userID, now); err != nil {
		return Dashboard{}, err
	}
	d.Remaining = core.Money{Cents: d.Budget.Cents - d.MonthTotal.Cents}

	if d.Recent, err = s.agg.LastN(ctx, userID, 3); err != nil {
		return Dashboard{}, err
	}
	if d.Categories, err = s.agg.CategoryTotals(ctx, userID, now); err != nil {
		return Dashboard{}, err
	}
	if d.Week, err = s.agg.WeekdayTotals(ctx, userID, now); err != nil {
		return Dashboard{}, err
	}

	return d, nil
}
