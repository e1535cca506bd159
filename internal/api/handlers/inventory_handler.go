package handlers

import (
	"net/http"

	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
)

// InventoryHandler serves the glasses frame catalog for the selection step.
type InventoryHandler struct {
	inventory repositories.InventoryRepository
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory repositories.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// ListFrames handles GET /api/glasses-frames
func (h *InventoryHandler) ListFrames(w http.ResponseWriter, r *http.Request) {
	frames, err := h.inventory.ListFrames(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"frames": frames,
		"count":  len(frames),
	})
}

// GetFrame handles GET /api/glasses-frames/{code}
func (h *InventoryHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "frame code is required")
		return
	}

	frame, err := h.inventory.GetFrame(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, frame)
}
