package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// Decision carries the figures the gate computed for an admitted expense.
type Decision struct {
	Budget    core.Money
	Spent     core.Money
	Remaining core.Money
}

// AdmissionController decides whether an expense fits the budget of its
// own calendar month. The month is always derived from the expense's
// date, never from the wall clock.
type AdmissionController struct {
	resolver *core.Resolver
}

func NewAdmissionController(resolver *core.Resolver) *AdmissionController {
	return &AdmissionController{resolver: resolver}
}

// Check admits amount against the budget of the month containing at.
// excludeID omits one expense from the spent total, which lets an update
// re-admit its own replacement amount; pass 0 on create.
//
// Returns core.ErrNoBudgetSet when no budget row exists for the month and
// *core.BudgetExceededError when the amount does not fit. Spent already
// includes the candidate amount in the returned decision.
func (g *AdmissionController) Check(ctx context.Context, q *storage.Queries, userID string, amount core.Money, at time.Time, excludeID int64) (Decision, error) {
	month, year := g.resolver.MonthYear(at)

	budget, err := q.GetBudget(ctx, userID, month, year)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Decision{}, core.ErrNoBudgetSet
		}
		return Decision{}, fmt.Errorf("load budget: %w", err)
	}

	start, end := g.resolver.MonthWindow(at)
	spent, err := q.SumExpenses(ctx, userID, start, end, excludeID)
	if err != nil {
		return Decision{}, fmt.Errorf("sum month expenses: %w", err)
	}

	total := core.Money{Cents: spent.Cents + amount.Cents}
	if total.Cents > budget.Amount.Cents {
		return Decision{}, &core.BudgetExceededError{
			Budget:    budget.Amount,
			Spent:     spent,
			Remaining: core.Money{Cents: budget.Amount.Cents - spent.Cents},
		}
	}

	return Decision{
		Budget:    budget.Amount,
		Spent:     total,
		Remaining: core.Money{Cents: budget.Amount.Cents - total.Cents},
	}, nil
}
