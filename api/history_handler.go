package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
)

// HistoryResponse represents the response structure for the try-on history API
type HistoryResponse struct {
	TryOns []models.TryOn `json:"tryons"`
	Limit  int64          `json:"limit"`
}

// HistoryHandler handles GET /api/try-ons and lists the session's latest attempts.
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		utils.RespondError(w, nil, "Try-on history is not enabled", http.StatusNotFound)
		return
	}

	sess := GetSessionFromContext(r.Context())

	limit := int64(10)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.ParseInt(limitStr, 10, 64); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := s.history.ListTryOns(ctx, sess.ID, limit)
	if err != nil {
		utils.RespondError(w, nil, "Failed to fetch data", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, HistoryResponse{TryOns: records, Limit: limit})
}
