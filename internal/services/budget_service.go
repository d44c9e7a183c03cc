package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// BudgetService manages the per-month budget of a user. All month
// arithmetic goes through the resolver so "current month" means the
// configured zone's month, not UTC's.
type BudgetService struct {
	repo     *storage.Repository
	resolver *core.Resolver
	now      func() time.Time
}

func NewBudgetService(repo *storage.Repository, resolver *core.Resolver) *BudgetService {
	return &BudgetService{
		repo:     repo,
		resolver: resolver,
		now:      time.Now,
	}
}

// Set writes the budget for the month containing now. It reports whether
// a new row was created so the handler can pick the status code.
func (s *BudgetService) Set(ctx context.Context, userID string, amount core.Money) (core.Budget, bool, error) {
	if userID == "" {
		return core.Budget{}, false, core.ErrEmptyUser
	}
	if err := amount.Validate(); err != nil {
		return core.Budget{}, false, err
	}

	month, year := s.resolver.MonthYear(s.now())

	var budget core.Budget
	var created bool
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		_, err := q.GetBudget(ctx, userID, month, year)
		switch {
		case errors.Is(err, core.ErrNotFound):
			created = true
		case err != nil:
			return fmt.Errorf("check existing budget: %w", err)
		}

		budget, err = q.UpsertBudget(ctx, userID, month, year, amount)
		if err != nil {
			return fmt.Errorf("upsert budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, false, err
	}

	return budget, created, nil
}

// Current returns the budget for the month containing now, or
// core.ErrNotFound when none is set.
func (s *BudgetService) Current(ctx context.Context, userID string) (core.Budget, error) {
	if userID == "" {
		return core.Budget{}, core.ErrEmptyUser
	}

	month, year := s.resolver.MonthYear(s.now())
	return s.repo.Queries().GetBudget(ctx, userID, month, year)
}

// History returns every budget the user ever set, newest month first.
func (s *BudgetService) History(ctx context.Context, userID string) ([]core.Budget, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	return s.repo.Queries().ListBudgets(ctx, userID)
}
