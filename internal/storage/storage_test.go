package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "kharcha.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts.UTC()
}

func TestUpsertBudgetIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	first, err := q.UpsertBudget(ctx, "u1", 3, 2025, core.Money{Cents: 10000})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := q.UpsertBudget(ctx, "u1", 3, 2025, core.Money{Cents: 20000})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert must mutate in place, not create a second row")
	assert.Equal(t, int64(20000), second.Amount.Cents)

	budgets, err := q.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
}

func TestListBudgetsOrder(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	for _, my := range [][2]int{{1, 2025}, {12, 2024}, {3, 2025}, {7, 2024}} {
		_, err := q.UpsertBudget(ctx, "u1", my[0], my[1], core.Money{Cents: 100})
		require.NoError(t, err)
	}

	budgets, err := q.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	var got [][2]int
	for _, b := range budgets {
		got = append(got, [2]int{b.Month, b.Year})
	}
	assert.Equal(t, [][2]int{{3, 2025}, {1, 2025}, {12, 2024}, {7, 2024}}, got)
}

func TestGetBudgetAbsent(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Queries().GetBudget(context.Background(), "u1", 1, 2025)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSumExpensesRangeAndExclusion(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	mk := func(ts string, cents int64) core.Expense {
		e, err := q.CreateExpense(ctx, core.Expense{
			UserID:     "u1",
			DateTime:   at(t, ts),
			Amount:     core.Money{Cents: cents},
			CategoryID: 1,
		})
		require.NoError(t, err)
		return e
	}

	inRange := mk("2025-03-10T10:00:00Z", 1000)
	mk("2025-03-20T10:00:00Z", 2000)
	mk("2025-04-01T00:00:00Z", 4000) // exactly at end: excluded (half-open)
	mk("2025-02-28T23:59:00Z", 8000) // before start

	start := at(t, "2025-03-01T00:00:00Z")
	end := at(t, "2025-04-01T00:00:00Z")

	sum, err := q.SumExpenses(ctx, "u1", start, end, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sum.Cents)

	sum, err = q.SumExpenses(ctx, "u1", start, end, inRange.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sum.Cents, "excluded expense must not count")

	// Another user's expenses never leak in.
	sum, err = q.SumExpenses(ctx, "u2", start, end, 0)
	require.NoError(t, err)
	assert.Zero(t, sum.Cents)
}

func TestSumByCategoryOmitsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	for _, e := range []struct {
		cat   int64
		cents int64
	}{{1, 500}, {1, 700}, {3, 250}} {
		_, err := q.CreateExpense(ctx, core.Expense{
			UserID:     "u1",
			DateTime:   at(t, "2025-03-10T10:00:00Z"),
			Amount:     core.Money{Cents: e.cents},
			CategoryID: e.cat,
		})
		require.NoError(t, err)
	}

	sums, err := q.SumByCategory(ctx, "u1",
		at(t, "2025-03-01T00:00:00Z"), at(t, "2025-04-01T00:00:00Z"))
	require.NoError(t, err)

	totals := map[int64]int64{}
	for _, s := range sums {
		totals[s.CategoryID] = s.Total.Cents
	}
	assert.Equal(t, map[int64]int64{1: 1200, 3: 250}, totals)
}

func TestListRecentExpensesTieBreak(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	same := at(t, "2025-03-10T10:00:00Z")
	var ids []int64
	for i := 0; i < 3; i++ {
		e, err := q.CreateExpense(ctx, core.Expense{
			UserID:     "u1",
			DateTime:   same,
			Amount:     core.Money{Cents: 100},
			CategoryID: 1,
		})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	older, err := q.CreateExpense(ctx, core.Expense{
		UserID:     "u1",
		DateTime:   at(t, "2025-03-09T10:00:00Z"),
		Amount:     core.Money{Cents: 100},
		CategoryID: 1,
	})
	require.NoError(t, err)

	recent, err := q.ListRecentExpenses(ctx, "u1", 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	// Same instant: highest id wins; the older instant comes last.
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
	assert.Equal(t, ids[0], recent[2].ID)
	assert.Equal(t, older.ID, recent[3].ID)
	assert.Equal(t, "Food", recent[0].CategoryName)
}

func TestExpenseOwnershipScoping(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	e, err := q.CreateExpense(ctx, core.Expense{
		UserID:     "u1",
		DateTime:   at(t, "2025-03-10T10:00:00Z"),
		Amount:     core.Money{Cents: 100},
		CategoryID: 1,
	})
	require.NoError(t, err)

	_, err = q.GetExpense(ctx, "u2", e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = q.DeleteExpense(ctx, "u2", e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, q.DeleteExpense(ctx, "u1", e.ID))
	err = q.DeleteExpense(ctx, "u1", e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExportStatusLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	e, err := q.CreateExpense(ctx, core.Expense{
		UserID:     "u1",
		DateTime:   at(t, "2025-03-10T10:00:00Z"),
		Amount:     core.Money{Cents: 100},
		CategoryID: 1,
	})
	require.NoError(t, err)

	pending, err := q.ListPendingExport(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].ID)

	require.NoError(t, q.MarkExported(ctx, e.ID))
	pending, err = q.ListPendingExport(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// An update must not re-queue an already exported row.
	e.Description = "edited"
	_, err = q.UpdateExpense(ctx, e)
	require.NoError(t, err)
	pending, err = q.ListPendingExport(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSeededCategories(t *testing.T) {
	repo := newTestRepo(t)
	cats, err := repo.Queries().ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 5)
	assert.Equal(t, "Food", cats[0].Name)

	_, err = repo.Queries().GetCategory(context.Background(), 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(q *Queries) error {
		if _, err := q.CreateExpense(ctx, core.Expense{
			UserID:     "u1",
			DateTime:   at(t, "2025-03-10T10:00:00Z"),
			Amount:     core.Money{Cents: 100},
			CategoryID: 1,
		}); err != nil {
			return err
		}
		return core.ErrInvalidAmount
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	sum, err := repo.Queries().SumExpenses(ctx, "u1",
		at(t, "2025-01-01T00:00:00Z"), at(t, "2026-01-01T00:00:00Z"), 0)
	require.NoError(t, err)
	assert.Zero(t, sum.Cents, "rolled-back expense must not persist")
}
