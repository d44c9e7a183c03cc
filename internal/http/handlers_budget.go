package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kharcha/internal/auth"
	"kharcha/internal/core"
)

type setBudgetRequest struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	var req setBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, codeInvalidAmount, "invalid amount", nil)
		return
	}

	budget, created, err := s.budgets.Set(r.Context(), userID, req.Amount)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)

	status := http.StatusOK
	message := "budget updated"
	if created {
		status = http.StatusCreated
		message = "budget created"
	}
	sendSuccess(w, status, message, s.budgetDTO(budget))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	budget, err := s.budgets.Current(r.Context(), userID)
	if errors.Is(err, core.ErrNotFound) {
		// Absence of the current budget is its own condition, not a
		// generic missing resource.
		sendError(w, http.StatusNotFound, codeNoBudget, core.ErrNoBudgetSet.Error(), nil)
		return
	}
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, "budget", s.budgetDTO(budget))
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	budgets, err := s.budgets.History(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	history := make([]budgetDTO, 0, len(budgets))
	for _, b := range budgets {
		history = append(history, s.budgetDTO(b))
	}
	sendSuccess(w, http.StatusOK, "budget history", history)
}
