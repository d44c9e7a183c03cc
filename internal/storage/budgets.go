package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/core"
)

const budgetColumns = "id, user_id, amount_cents, month, year, created_at, updated_at"

func scanBudget(row interface{ Scan(dest ...any) error }) (core.Budget, error) {
	var (
		b       core.Budget
		created int64
		updated int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Amount.Cents, &b.Month, &b.Year, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.UpdatedAt = time.Unix(updated, 0).UTC()
	return b, nil
}

// UpsertBudget creates the budget for (user, month, year) or updates its
// amount in place. The conflict target is the natural unique tuple, so
// two concurrent upserts can never produce two rows.
func (q *Queries) UpsertBudget(ctx context.Context, userID string, month, year int, amount core.Money) (core.Budget, error) {
	now := time.Now().Unix()
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO budgets (user_id, amount_cents, month, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month, year)
		DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = excluded.updated_at
		RETURNING `+budgetColumns,
		userID, amount.Cents, month, year, now, now)

	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

// GetBudget is a point lookup; absence maps to core.ErrNotFound.
func (q *Queries) GetBudget(ctx context.Context, userID string, month, year int) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year)

	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d/%d: %w", month, year, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// ListBudgets returns all budgets of a user, newest month first.
func (q *Queries) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE user_id = ?
		ORDER BY year DESC, month DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return budgets, nil
}
