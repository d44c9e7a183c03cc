package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/export/sheetexp"
	"kharcha/internal/storage"
)

// LedgerAppender writes one exported expense line.
type LedgerAppender interface {
	Append(ctx context.Context, row sheetexp.LedgerRow) error
}

// ExportWorker mirrors accepted expenses into the external ledger. The
// AMQP stream is the fast path; the pending sweep recovers anything a
// lost message or worker downtime left behind.
type ExportWorker struct {
	repo      *storage.Repository
	resolver  *core.Resolver
	ledger    LedgerAppender
	batchSize int
}

func NewExportWorker(repo *storage.Repository, resolver *core.Resolver, ledger LedgerAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		repo:      repo,
		resolver:  resolver,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleEvent processes one expense event from the queue. Only created
// events export a row; the ledger is append-only, so updates and deletes
// are logged and skipped.
func (w *ExportWorker) HandleEvent(ctx context.Context, evt *events.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"eventId", evt.EventID,
		"type", evt.Type,
		"expenseId", evt.ExpenseID)

	if evt.Type != events.TypeCreated {
		slog.InfoContext(ctx, "Skipping non-create event for append-only ledger",
			"eventId", evt.EventID,
			"type", evt.Type)
		return nil
	}

	expense, err := w.repo.Queries().GetExpense(ctx, evt.UserID, evt.ExpenseID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before we got here; nothing to export.
			slog.WarnContext(ctx, "Expense vanished before export", "expenseId", evt.ExpenseID)
			return nil
		}
		return fmt.Errorf("get expense: %w", err)
	}

	return w.export(ctx, expense)
}

// ProcessPending exports expenses whose events never arrived. Rows that
// fail stay pending with an error status for the next sweep.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.repo.Queries().ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, expense := range pending {
		if err := w.export(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense",
				"expenseId", expense.ID, "error", err)
		}
	}

	return nil
}

// StartupCheck drains a larger pending batch once at worker start to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.repo.Queries().ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending export on startup: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup", "count", len(pending))

	exported := 0
	failed := 0
	for _, expense := range pending {
		if err := w.export(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense during startup",
				"expenseId", expense.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)

	return nil
}

func (w *ExportWorker) export(ctx context.Context, expense core.Expense) error {
	q := w.repo.Queries()

	category, err := q.GetCategory(ctx, expense.CategoryID)
	if err != nil {
		w.markError(ctx, expense.ID)
		return fmt.Errorf("get category: %w", err)
	}

	date, clock := w.resolver.Civil(expense.DateTime)
	row := sheetexp.LedgerRow{
		ExpenseID:   expense.ID,
		UserID:      expense.UserID,
		Date:        date,
		Time:        clock,
		Description: expense.Description,
		Category:    category.Name,
		Amount:      float64(expense.Amount.Cents) / 100.0,
	}

	if err := w.ledger.Append(ctx, row); err != nil {
		w.markError(ctx, expense.ID)
		return fmt.Errorf("append ledger row: %w", err)
	}

	if err := q.MarkExported(ctx, expense.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Exported expense", "expenseId", expense.ID)
	return nil
}

func (w *ExportWorker) markError(ctx context.Context, id int64) {
	if err := w.repo.Queries().MarkExportError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark export error", "expenseId", id, "error", err)
	}
}
