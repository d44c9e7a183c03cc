// Package http exposes the budget and expense services as a JSON REST
// API behind bearer-token auth.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/cache"
	"kharcha/internal/core"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

type Server struct {
	http.Server

	resolver  *core.Resolver
	budgets   *services.BudgetService
	expenses  *services.ExpenseService
	dashboard *services.DashboardService
	repo      *storage.Repository

	rateLimiter *rateLimiter
	// Dashboard reads dominate; cache per user and invalidate on writes.
	dashCache *cache.LRU[dashboardDTO]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type Deps struct {
	Resolver   *core.Resolver
	Budgets    *services.BudgetService
	Expenses   *services.ExpenseService
	Dashboard  *services.DashboardService
	Repository *storage.Repository
	JWT        *auth.JWTManager
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		resolver:         deps.Resolver,
		budgets:          deps.Budgets,
		expenses:         deps.Expenses,
		dashboard:        deps.Dashboard,
		repo:             deps.Repository,
		rateLimiter:      newRateLimiter(),
		dashCache:        cache.NewLRU[dashboardDTO](500, time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /budget", s.handleSetBudget)
	api.HandleFunc("GET /budget", s.handleGetBudget)
	api.HandleFunc("GET /budget/history", s.handleBudgetHistory)
	api.HandleFunc("POST /expense", s.handleCreateExpense)
	api.HandleFunc("GET /expense", s.handleListExpenses)
	api.HandleFunc("GET /expense/dashboard", s.handleDashboard)
	api.HandleFunc("GET /expense/{id}", s.handleGetExpense)
	api.HandleFunc("PATCH /expense/{id}", s.handleUpdateExpense)
	api.HandleFunc("DELETE /expense/{id}", s.handleDeleteExpense)
	api.HandleFunc("GET /categories", s.handleListCategories)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", auth.RequireAuth(deps.JWT, api))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      s.withObservability(root),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go s.startCacheCleanup()

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.dashCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the background goroutines along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateDashboard drops the cached dashboard after any write that
// changes what it would show.
func (s *Server) invalidateDashboard(userID string) {
	s.dashCache.Delete(userID)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
