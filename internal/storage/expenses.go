package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kharcha/internal/core"
)

const expenseColumns = "id, user_id, date_time_ms, amount_cents, category_id, description, created_at, updated_at"

// ExpenseWithCategory carries the joined category fields the dashboard
// needs alongside each expense.
type ExpenseWithCategory struct {
	core.Expense
	CategoryName  string
	CategoryColor string
}

// CategorySum is one row of a per-category aggregation. Categories with
// no expenses in range are absent.
type CategorySum struct {
	CategoryID int64
	Total      core.Money
}

func scanExpense(row interface{ Scan(dest ...any) error }) (core.Expense, error) {
	var (
		e       core.Expense
		dtMs    int64
		created int64
		updated int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &dtMs, &e.Amount.Cents, &e.CategoryID, &e.Description, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	e.DateTime = time.UnixMilli(dtMs).UTC()
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return e, nil
}

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := time.Now().Unix()
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO expenses (user_id, date_time_ms, amount_cents, category_id, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+expenseColumns,
		e.UserID, e.DateTime.UnixMilli(), e.Amount.Cents, e.CategoryID, e.Description, now, now)

	created, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return created, nil
}

// GetExpense is owner-scoped: an id that exists but belongs to another
// user reads as absent.
func (q *Queries) GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE id = ? AND user_id = ?`,
		id, userID)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// UpdateExpense leaves export_status untouched. The external ledger is
// append-only and keeps the row from creation time, so an edit must not
// re-queue the expense for the export sweep.
func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET date_time_ms = ?, amount_cents = ?, category_id = ?, description = ?,
		    updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+expenseColumns,
		e.DateTime.UnixMilli(), e.Amount.Cents, e.CategoryID, e.Description, time.Now().Unix(),
		e.ID, e.UserID)

	updated, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return updated, nil
}

func (q *Queries) DeleteExpense(ctx context.Context, userID string, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// SumExpenses totals amounts over the half-open range [start, end).
// excludeID > 0 leaves one expense out, so an update does not count the
// record being edited against itself. No rows sums to zero.
func (q *Queries) SumExpenses(ctx context.Context, userID string, start, end time.Time, excludeID int64) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM expenses
		WHERE user_id = ? AND date_time_ms >= ? AND date_time_ms < ?
		  AND (? = 0 OR id != ?)`,
		userID, start.UnixMilli(), end.UnixMilli(), excludeID, excludeID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// SumByCategory groups totals by category over [start, end).
func (q *Queries) SumByCategory(ctx context.Context, userID string, start, end time.Time) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT category_id, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ? AND date_time_ms >= ? AND date_time_ms < ?
		GROUP BY category_id`,
		userID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var sums []CategorySum
	for rows.Next() {
		var s CategorySum
		if err := rows.Scan(&s.CategoryID, &s.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums = append(sums, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category sums: %w", err)
	}
	return sums, nil
}

// ListExpensesBetween returns expenses with both bounds inclusive,
// oldest first. The ISO-week window uses inclusive ends.
func (q *Queries) ListExpensesBetween(ctx context.Context, userID string, start, end time.Time) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE user_id = ? AND date_time_ms >= ? AND date_time_ms <= ?
		ORDER BY date_time_ms ASC, id ASC`,
		userID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ListExpensesRange returns expenses over the half-open [start, end),
// newest first, with category fields joined in.
func (q *Queries) ListExpensesRange(ctx context.Context, userID string, start, end time.Time) ([]ExpenseWithCategory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.date_time_ms, e.amount_cents, e.category_id, e.description,
		       e.created_at, e.updated_at, c.name, c.color
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ? AND e.date_time_ms >= ? AND e.date_time_ms < ?
		ORDER BY e.date_time_ms DESC, e.id DESC`,
		userID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list expenses range: %w", err)
	}
	defer rows.Close()
	return collectExpensesWithCategory(rows)
}

// ListRecentExpenses returns the n most recent expenses, ordered by
// dateTime descending with id descending as the tie-break, so paging
// and tests see a stable order.
func (q *Queries) ListRecentExpenses(ctx context.Context, userID string, n int) ([]ExpenseWithCategory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.date_time_ms, e.amount_cents, e.category_id, e.description,
		       e.created_at, e.updated_at, c.name, c.color
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?
		ORDER BY e.date_time_ms DESC, e.id DESC
		LIMIT ?`,
		userID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent expenses: %w", err)
	}
	defer rows.Close()
	return collectExpensesWithCategory(rows)
}

// MarkExported flags an expense as written to the external ledger.
func (q *Queries) MarkExported(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = 'exported' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags an expense whose ledger export failed so the
// periodic sweep retries it.
func (q *Queries) MarkExportError(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

// ListPendingExport returns expenses not yet exported, oldest first.
func (q *Queries) ListPendingExport(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE export_status IN ('pending', 'error')
		ORDER BY id ASC
		LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func collectExpensesWithCategory(rows *sql.Rows) ([]ExpenseWithCategory, error) {
	var expenses []ExpenseWithCategory
	for rows.Next() {
		var (
			e       ExpenseWithCategory
			dtMs    int64
			created int64
			updated int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &dtMs, &e.Amount.Cents, &e.CategoryID, &e.Description,
			&created, &updated, &e.CategoryName, &e.CategoryColor); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.DateTime = time.UnixMilli(dtMs).UTC()
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}
