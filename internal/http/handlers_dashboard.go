package http

import (
	"net/http"

	"kharcha/internal/auth"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	if cached, ok := s.dashCache.Get(userID); ok {
		sendSuccess(w, http.StatusOK, "dashboard", cached)
		return
	}

	dashboard, err := s.dashboard.Compose(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	dto := s.dashboardDTO(dashboard)
	s.dashCache.Set(userID, dto)
	sendSuccess(w, http.StatusOK, "dashboard", dto)
}
