package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/services"
)

type createExpenseRequest struct {
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Amount      core.Money `json:"amount"`
	CategoryID  int64      `json:"categoryId"`
	Description string     `json:"description"`
}

type updateExpenseRequest struct {
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Amount      *core.Money `json:"amount"`
	CategoryID  *int64      `json:"categoryId"`
	Description *string     `json:"description"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			sendError(w, http.StatusBadRequest, codeInvalidAmount, core.ErrInvalidAmount.Error(), nil)
		} else {
			sendError(w, http.StatusBadRequest, codeInvalidRequest, "malformed request body", nil)
		}
		return false
	}
	return true
}

func expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		sendError(w, http.StatusBadRequest, codeInvalidRequest, "invalid expense id", nil)
		return 0, false
	}
	return id, true
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expense, err := s.expenses.Create(r.Context(), userID, services.CreateExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)

	sendSuccess(w, http.StatusCreated, "expense recorded", s.expenseDTO(expense, ""))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	now := time.Now()
	month, year := s.resolver.MonthYear(now)
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			sendError(w, http.StatusBadRequest, codeInvalidTemporal, "invalid month", nil)
			return
		}
		month = m
	}
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			sendError(w, http.StatusBadRequest, codeInvalidTemporal, "invalid year", nil)
			return
		}
		year = y
	}

	rows, err := s.expenses.ListMonth(r.Context(), userID, month, year)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, "expenses", s.expenseListDTO(rows))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	id, ok := expenseID(w, r)
	if !ok {
		return
	}

	expense, err := s.expenses.Get(r.Context(), userID, id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendSuccess(w, http.StatusOK, "expense", s.expenseDTO(expense, ""))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	id, ok := expenseID(w, r)
	if !ok {
		return
	}

	var req updateExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expense, err := s.expenses.Update(r.Context(), userID, id, services.UpdateExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)

	sendSuccess(w, http.StatusOK, "expense updated", s.expenseDTO(expense, ""))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	id, ok := expenseID(w, r)
	if !ok {
		return
	}

	if err := s.expenses.Delete(r.Context(), userID, id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)

	sendSuccess(w, http.StatusOK, "expense deleted", nil)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.Queries().ListCategories(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryDTO{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	sendSuccess(w, http.StatusOK, "categories", out)
}
