package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/storage"
)

// EventPublisher pushes expense events to the export queue. A nil
// publisher disables exporting without changing the write path.
type EventPublisher interface {
	Publish(ctx context.Context, evt *events.ExpenseEvent) error
}

// CreateExpenseInput is a validated-on-entry create request. Date and
// Time are civil strings in the configured zone.
type CreateExpenseInput struct {
	Description string
	Amount      core.Money
	CategoryID  int64
	Date        string
	Time        string
}

// UpdateExpenseInput carries only the fields the caller wants changed.
// Date and Time must come together or not at all.
type UpdateExpenseInput struct {
	Description *string
	Amount      *core.Money
	CategoryID  *int64
	Date        string
	Time        string
}

// ExpenseService orchestrates expense writes: each one runs the budget
// gate and the row mutation in a single transaction, then publishes an
// event for the ledger export.
type ExpenseService struct {
	repo      *storage.Repository
	resolver  *core.Resolver
	gate      *AdmissionController
	publisher EventPublisher
}

func NewExpenseService(repo *storage.Repository, resolver *core.Resolver, gate *AdmissionController, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		repo:      repo,
		resolver:  resolver,
		gate:      gate,
		publisher: publisher,
	}
}

// Create admits and stores a new expense. The budget month is the month
// of the expense's own date, so backdated entries count against the
// month they belong to.
func (s *ExpenseService) Create(ctx context.Context, userID string, in CreateExpenseInput) (core.Expense, error) {
	if userID == "" {
		return core.Expense{}, core.ErrEmptyUser
	}

	instant, err := s.resolver.ToInstant(in.Date, in.Time)
	if err != nil {
		return core.Expense{}, err
	}

	expense := core.Expense{
		UserID:      userID,
		Description: in.Description,
		Amount:      in.Amount,
		CategoryID:  in.CategoryID,
		DateTime:    instant,
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, err
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetCategory(ctx, expense.CategoryID); err != nil {
			return fmt.Errorf("category %d: %w", expense.CategoryID, err)
		}

		if _, err := s.gate.Check(ctx, q, userID, expense.Amount, expense.DateTime, 0); err != nil {
			return err
		}

		expense, err = q.CreateExpense(ctx, expense)
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, events.NewExpenseEvent(events.TypeCreated, expense.ID, userID, expense.Amount.Cents))
	return expense, nil
}

// Update merges the patch onto the stored expense and re-admits the
// result against the budget of its effective month. The stored expense
// is excluded from the spent total so an amount change is judged by the
// replacement, not stacked on top of itself.
func (s *ExpenseService) Update(ctx context.Context, userID string, id int64, in UpdateExpenseInput) (core.Expense, error) {
	if userID == "" {
		return core.Expense{}, core.ErrEmptyUser
	}
	if (in.Date == "") != (in.Time == "") {
		return core.Expense{}, fmt.Errorf("%w: date and time must be provided together", core.ErrInvalidTemporalInput)
	}

	var updated core.Expense
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetExpense(ctx, userID, id)
		if err != nil {
			return err
		}

		next := existing
		if in.Description != nil {
			next.Description = *in.Description
		}
		if in.Amount != nil {
			next.Amount = *in.Amount
		}
		if in.CategoryID != nil {
			next.CategoryID = *in.CategoryID
			if _, err := q.GetCategory(ctx, next.CategoryID); err != nil {
				return fmt.Errorf("category %d: %w", next.CategoryID, err)
			}
		}
		if in.Date != "" {
			next.DateTime, err = s.resolver.ToInstant(in.Date, in.Time)
			if err != nil {
				return err
			}
		}
		if err := next.Validate(); err != nil {
			return err
		}

		if _, err := s.gate.Check(ctx, q, userID, next.Amount, next.DateTime, id); err != nil {
			return err
		}

		updated, err = q.UpdateExpense(ctx, next)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, events.NewExpenseEvent(events.TypeUpdated, updated.ID, userID, updated.Amount.Cents))
	return updated, nil
}

// Delete removes an expense. Deletes never consult the budget; freeing
// headroom is always allowed.
func (s *ExpenseService) Delete(ctx context.Context, userID string, id int64) error {
	if userID == "" {
		return core.ErrEmptyUser
	}

	var removed core.Expense
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		removed, err = q.GetExpense(ctx, userID, id)
		if err != nil {
			return err
		}
		return q.DeleteExpense(ctx, userID, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewExpenseEvent(events.TypeDeleted, removed.ID, userID, removed.Amount.Cents))
	return nil
}

// Get returns one expense scoped to its owner.
func (s *ExpenseService) Get(ctx context.Context, userID string, id int64) (core.Expense, error) {
	if userID == "" {
		return core.Expense{}, core.ErrEmptyUser
	}
	return s.repo.Queries().GetExpense(ctx, userID, id)
}

// ListMonth returns the user's expenses for one local calendar month,
// newest first, with category names attached.
func (s *ExpenseService) ListMonth(ctx context.Context, userID string, month, year int) ([]storage.ExpenseWithCategory, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	start, end := s.resolver.MonthWindowOf(month, year)
	return s.repo.Queries().ListExpensesRange(ctx, userID, start, end)
}

func (s *ExpenseService) publish(ctx context.Context, evt *events.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		// The row is committed; the worker's pending sweep picks it up.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"eventId", evt.EventID,
			"type", evt.Type,
			"expenseId", evt.ExpenseID,
			"error", err)
	}
}

// IsRejection reports whether err is a budget gate verdict rather than a
// failure of the gate itself.
func IsRejection(err error) bool {
	var exceeded *core.BudgetExceededError
	return errors.Is(err, core.ErrNoBudgetSet) || errors.As(err, &exceeded)
}
