package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visionwell/vision-screening/backend/internal/api/handlers"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
)

type stubHistory struct {
	query    repositories.OutcomeQuery
	outcomes []*entities.ScreeningOutcome
	err      error
}

func (s *stubHistory) Search(ctx context.Context, query repositories.OutcomeQuery) ([]*entities.ScreeningOutcome, error) {
	s.query = query
	return s.outcomes, s.err
}

func TestHistoryHandler_SearchHistory(t *testing.T) {
	history := &stubHistory{outcomes: []*entities.ScreeningOutcome{
		{SessionID: "sess-1", StudentName: "Amina Okafor", Diagnosis: "myopia", NeedsGlasses: true, CompletedAt: time.Now()},
	}}
	handler := handlers.NewHistoryHandler(history)

	req := httptest.NewRequest("GET", "/api/screening-sessions/history?q=amina&school=Greenfield&needs_glasses=true&limit=5&offset=10", nil)
	w := httptest.NewRecorder()

	handler.SearchHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "amina", history.query.Text)
	assert.Equal(t, "Greenfield", history.query.School)
	require.NotNil(t, history.query.NeedsGlasses)
	assert.True(t, *history.query.NeedsGlasses)
	assert.Equal(t, 5, history.query.Limit)
	assert.Equal(t, 10, history.query.Offset)

	var response struct {
		Outcomes []*entities.ScreeningOutcome `json:"outcomes"`
		Count    int                          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 1, response.Count)
	assert.Equal(t, "sess-1", response.Outcomes[0].SessionID)
}

func TestHistoryHandler_SearchHistory_Defaults(t *testing.T) {
	history := &stubHistory{}
	handler := handlers.NewHistoryHandler(history)

	req := httptest.NewRequest("GET", "/api/screening-sessions/history", nil)
	w := httptest.NewRecorder()

	handler.SearchHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, history.query.Limit)
	assert.Nil(t, history.query.NeedsGlasses)
}
