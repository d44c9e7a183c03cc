package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/storage"
)

type capturingPublisher struct {
	published []*events.ExpenseEvent
}

func (p *capturingPublisher) Publish(_ context.Context, evt *events.ExpenseEvent) error {
	p.published = append(p.published, evt)
	return nil
}

type fixture struct {
	repo      *storage.Repository
	resolver  *core.Resolver
	budgets   *BudgetService
	expenses  *ExpenseService
	dashboard *DashboardService
	publisher *capturingPublisher
}

// newFixture wires the services against a real temp SQLite database with
// the clock pinned to 2025-03-15 12:00 IST.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := storage.Open(filepath.Join(t.TempDir(), "kharcha.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	resolver := core.MustResolver("Asia/Kolkata")
	now, err := resolver.ToInstant("2025-03-15", "12:00")
	require.NoError(t, err)

	publisher := &capturingPublisher{}
	gate := NewAdmissionController(resolver)
	budgets := NewBudgetService(repo, resolver)
	budgets.now = func() time.Time { return now }
	agg := NewAggregationService(repo, resolver)
	dashboard := NewDashboardService(repo, resolver, agg)
	dashboard.now = func() time.Time { return now }

	return &fixture{
		repo:      repo,
		resolver:  resolver,
		budgets:   budgets,
		expenses:  NewExpenseService(repo, resolver, gate, publisher),
		dashboard: dashboard,
		publisher: publisher,
	}
}

func (f *fixture) create(t *testing.T, cents int64, date, clock string) (core.Expense, error) {
	t.Helper()
	return f.expenses.Create(context.Background(), "u1", CreateExpenseInput{
		Description: "test",
		Amount:      core.Money{Cents: cents},
		CategoryID:  1,
		Date:        date,
		Time:        clock,
	})
}

func TestAdmissionChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, created, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)
	assert.True(t, created)

	first, err := f.create(t, 6000, "2025-03-10", "10:00")
	require.NoError(t, err)

	// 60 + 50 > 100: rejected, with the figures of the moment.
	_, err = f.create(t, 5000, "2025-03-12", "10:00")
	var exceeded *core.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(10000), exceeded.Budget.Cents)
	assert.Equal(t, int64(6000), exceeded.Spent.Cents)
	assert.Equal(t, int64(4000), exceeded.Remaining.Cents)
	assert.True(t, IsRejection(err))

	// Shrinking the first expense to 30 is judged against the
	// replacement amount, not stacked on the old one.
	amount := core.Money{Cents: 3000}
	_, err = f.expenses.Update(ctx, "u1", first.ID, UpdateExpenseInput{Amount: &amount})
	require.NoError(t, err)

	// Now 30 + 50 fits.
	_, err = f.create(t, 5000, "2025-03-12", "10:00")
	require.NoError(t, err)
}

func TestAdmissionWithoutBudget(t *testing.T) {
	f := newFixture(t)

	_, err := f.create(t, 100, "2025-03-10", "10:00")
	assert.ErrorIs(t, err, core.ErrNoBudgetSet)
	assert.True(t, IsRejection(err))
	assert.Empty(t, f.publisher.published, "rejected expense must not publish")
}

func TestAdmissionBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)

	// Exactly on the line is accepted.
	_, err = f.create(t, 10000, "2025-03-10", "10:00")
	require.NoError(t, err)

	// One paisa over is not.
	_, err = f.create(t, 1, "2025-03-11", "10:00")
	var exceeded *core.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Zero(t, exceeded.Remaining.Cents)
}

func TestDeleteFreesBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)

	e, err := f.create(t, 10000, "2025-03-10", "10:00")
	require.NoError(t, err)

	_, err = f.create(t, 100, "2025-03-11", "10:00")
	var exceeded *core.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)

	require.NoError(t, f.expenses.Delete(ctx, "u1", e.ID))

	_, err = f.create(t, 100, "2025-03-11", "10:00")
	require.NoError(t, err)
}

func TestBackdatedExpenseUsesItsOwnMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Budget exists only for March; a February-dated expense must be
	// judged against February and rejected for lacking one.
	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)

	_, err = f.create(t, 100, "2025-02-10", "10:00")
	assert.ErrorIs(t, err, core.ErrNoBudgetSet)
}

func TestUpdateAcrossMonthRechecksTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.repo.Queries()

	// March is roomy, April is tight.
	_, err := q.UpsertBudget(ctx, "u1", 3, 2025, core.Money{Cents: 10000})
	require.NoError(t, err)
	_, err = q.UpsertBudget(ctx, "u1", 4, 2025, core.Money{Cents: 1000})
	require.NoError(t, err)

	e, err := f.create(t, 5000, "2025-03-10", "10:00")
	require.NoError(t, err)

	// Moving it into April must be judged against April's budget.
	_, err = f.expenses.Update(ctx, "u1", e.ID, UpdateExpenseInput{
		Date: "2025-04-10",
		Time: "10:00",
	})
	var exceeded *core.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(1000), exceeded.Budget.Cents)

	// The rejected move leaves the original untouched.
	got, err := f.expenses.Get(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.DateTime, got.DateTime)
}

func TestUpdateRequiresDateAndTimeTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)
	e, err := f.create(t, 100, "2025-03-10", "10:00")
	require.NoError(t, err)

	_, err = f.expenses.Update(ctx, "u1", e.ID, UpdateExpenseInput{Date: "2025-03-11"})
	assert.ErrorIs(t, err, core.ErrInvalidTemporalInput)

	_, err = f.expenses.Update(ctx, "u1", e.ID, UpdateExpenseInput{Time: "11:00"})
	assert.ErrorIs(t, err, core.ErrInvalidTemporalInput)
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)

	_, err = f.expenses.Create(ctx, "u1", CreateExpenseInput{
		Amount:     core.Money{Cents: 100},
		CategoryID: 999,
		Date:       "2025-03-10",
		Time:       "10:00",
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBudgetSetReportsCreatedThenUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, created, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 20000})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(20000), b.Amount.Cents)

	current, err := f.budgets.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, current.Month)
	assert.Equal(t, 2025, current.Year)
}

func TestEventsPublishedPerWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 10000})
	require.NoError(t, err)

	e, err := f.create(t, 100, "2025-03-10", "10:00")
	require.NoError(t, err)
	desc := "renamed"
	_, err = f.expenses.Update(ctx, "u1", e.ID, UpdateExpenseInput{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, f.expenses.Delete(ctx, "u1", e.ID))

	require.Len(t, f.publisher.published, 3)
	assert.Equal(t, events.TypeCreated, f.publisher.published[0].Type)
	assert.Equal(t, events.TypeUpdated, f.publisher.published[1].Type)
	assert.Equal(t, events.TypeDeleted, f.publisher.published[2].Type)
	for _, evt := range f.publisher.published {
		assert.Equal(t, e.ID, evt.ExpenseID)
		assert.Equal(t, "u1", evt.UserID)
	}
}

func TestDashboardCompose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.budgets.Set(ctx, "u1", core.Money{Cents: 50000})
	require.NoError(t, err)

	// Monday and Sunday of the week containing 2025-03-15 (Sat).
	mk := func(cents int64, date, clock string, cat int64) {
		_, err := f.expenses.Create(ctx, "u1", CreateExpenseInput{
			Amount:     core.Money{Cents: cents},
			CategoryID: cat,
			Date:       date,
			Time:       clock,
		})
		require.NoError(t, err)
	}
	mk(1000, "2025-03-10", "09:00", 1) // Monday, Food
	mk(2000, "2025-03-16", "22:00", 2) // Sunday, Transport
	mk(4000, "2025-03-01", "10:00", 1) // in month, out of week
	mk(8000, "2025-03-14", "10:00", 3) // Friday, Entertainment

	d, err := f.dashboard.Compose(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(50000), d.Budget.Cents)
	assert.Equal(t, int64(15000), d.MonthTotal.Cents)
	assert.Equal(t, int64(35000), d.Remaining.Cents)

	require.Len(t, d.Recent, 3)
	assert.Equal(t, int64(2000), d.Recent[0].Amount.Cents, "newest instant first")

	require.Len(t, d.Categories, 5, "every seeded category present")
	byName := map[string]int64{}
	for _, c := range d.Categories {
		byName[c.Category.Name] = c.Total.Cents
	}
	assert.Equal(t, int64(5000), byName["Food"])
	assert.Equal(t, int64(2000), byName["Transport"])
	assert.Zero(t, byName["Personal"], "empty category zero-filled")

	require.Len(t, d.Week, 7)
	assert.Equal(t, time.Monday, d.Week[0].Weekday)
	assert.Equal(t, int64(1000), d.Week[0].Total.Cents)
	assert.Equal(t, int64(8000), d.Week[4].Total.Cents)
	assert.Equal(t, int64(2000), d.Week[6].Total.Cents)
}

func TestDashboardWithoutBudget(t *testing.T) {
	f := newFixture(t)

	d, err := f.dashboard.Compose(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, d.Budget.Cents)
	assert.Zero(t, d.MonthTotal.Cents)
	assert.Len(t, d.Categories, 5)
	assert.Len(t, d.Week, 7)
	assert.Empty(t, d.Recent)
}
