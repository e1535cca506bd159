package handlers

import (
	"net/http"
	"strconv"

	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// StudentHandler proxies read-only student lookups to the Directory Service.
type StudentHandler struct {
	directory providers.DirectoryProvider
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(directory providers.DirectoryProvider) *StudentHandler {
	return &StudentHandler{directory: directory}
}

// ListStudents handles GET /api/students
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := providers.StudentFilter{
		School: query.Get("school"),
		Grade:  query.Get("grade"),
		Query:  query.Get("q"),
		Limit:  30,
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}

	students, err := h.directory.ListStudents(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"students": students,
		"count":    len(students),
	})
}

// GetStudent handles GET /api/students/{id}
func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		respondWithError(w, http.StatusBadRequest, "student ID is required")
		return
	}

	student, err := h.directory.GetStudent(r.Context(), studentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, student)
}
