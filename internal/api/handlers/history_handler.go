package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
)

// HistoryService is the part of the history service the HTTP layer needs.
type HistoryService interface {
	Search(ctx context.Context, query repositories.OutcomeQuery) ([]*entities.ScreeningOutcome, error)
}

// HistoryHandler serves the completed-screening review dashboard.
type HistoryHandler struct {
	history HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// SearchHistory handles GET /api/screening-sessions/history
func (h *HistoryHandler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := repositories.OutcomeQuery{
		Text:   params.Get("q"),
		School: params.Get("school"),
		Grade:  params.Get("grade"),
		Limit:  20,
	}
	if raw := params.Get("needs_glasses"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			query.NeedsGlasses = &parsed
		}
	}
	if raw := params.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			query.Limit = parsed
		}
	}
	if raw := params.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			query.Offset = parsed
		}
	}

	outcomes, err := h.history.Search(r.Context(), query)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}
