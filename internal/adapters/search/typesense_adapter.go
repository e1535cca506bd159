package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	tsclient "github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/typesense"
)

const collectionName = "screening_outcomes"

// TypesenseAdapter indexes completed screening outcomes in Typesense for the
// history review dashboard.
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements OutcomeSearchRepository
var _ repositories.OutcomeSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the outcomes collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "student_id", Type: "string"},
			{Name: "patient_id", Type: "string"},
			{Name: "student_name", Type: "string"},
			{Name: "school", Type: "string", Facet: pointer.True()},
			{Name: "grade", Type: "string", Facet: pointer.True()},
			{Name: "diagnosis", Type: "string"},
			{Name: "needs_glasses", Type: "bool", Facet: pointer.True()},
			{Name: "frame_code", Type: "string"},
			{Name: "completed_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("completed_at"),
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// Index upserts one outcome document. The session id doubles as the document
// id so re-indexing a session overwrites its previous document.
func (a *TypesenseAdapter) Index(ctx context.Context, outcome *entities.ScreeningOutcome) error {
	document := map[string]interface{}{
		"id":            outcome.SessionID,
		"student_id":    outcome.StudentID,
		"patient_id":    outcome.PatientID,
		"student_name":  outcome.StudentName,
		"school":        outcome.School,
		"grade":         outcome.Grade,
		"diagnosis":     outcome.Diagnosis,
		"needs_glasses": outcome.NeedsGlasses,
		"frame_code":    outcome.FrameCode,
		"completed_at":  outcome.CompletedAt.Unix(),
	}

	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index screening outcome: %w", err)
	}

	return nil
}

// Search queries outcomes by free text and optional facets
func (a *TypesenseAdapter) Search(ctx context.Context, query repositories.OutcomeQuery) ([]*entities.ScreeningOutcome, error) {
	text := query.Text
	if text == "" {
		text = "*"
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(text),
		QueryBy: pointer.String("student_name,school,diagnosis"),
		SortBy:  pointer.String("completed_at:desc"),
		Page:    pointer.Int(query.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if filterBy := buildOutcomeFilters(query); filterBy != "" {
		searchParams.FilterBy = pointer.String(filterBy)
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search screening outcomes: %w", err)
	}

	outcomes := []*entities.ScreeningOutcome{}
	for _, hit := range *result.Hits {
		outcomes = append(outcomes, decodeOutcomeDocument(*hit.Document))
	}

	return outcomes, nil
}

// buildOutcomeFilters renders the faceted part of an outcome query as a
// Typesense filter_by expression. Empty when the query has no facets.
func buildOutcomeFilters(query repositories.OutcomeQuery) string {
	var filters []string
	if query.School != "" {
		filters = append(filters, fmt.Sprintf("school:=%s", query.School))
	}
	if query.Grade != "" {
		filters = append(filters, fmt.Sprintf("grade:=%s", query.Grade))
	}
	if query.NeedsGlasses != nil {
		filters = append(filters, fmt.Sprintf("needs_glasses:=%t", *query.NeedsGlasses))
	}
	return strings.Join(filters, " && ")
}

// decodeOutcomeDocument converts a Typesense hit back into an outcome.
// Typesense returns map[string]interface{}; missing or mistyped fields are
// left at their zero value.
func decodeOutcomeDocument(doc map[string]interface{}) *entities.ScreeningOutcome {
	outcome := &entities.ScreeningOutcome{}
	if val, ok := doc["id"].(string); ok {
		outcome.SessionID = val
	}
	if val, ok := doc["student_id"].(string); ok {
		outcome.StudentID = val
	}
	if val, ok := doc["patient_id"].(string); ok {
		outcome.PatientID = val
	}
	if val, ok := doc["student_name"].(string); ok {
		outcome.StudentName = val
	}
	if val, ok := doc["school"].(string); ok {
		outcome.School = val
	}
	if val, ok := doc["grade"].(string); ok {
		outcome.Grade = val
	}
	if val, ok := doc["diagnosis"].(string); ok {
		outcome.Diagnosis = val
	}
	if val, ok := doc["needs_glasses"].(bool); ok {
		outcome.NeedsGlasses = val
	}
	if val, ok := doc["frame_code"].(string); ok {
		outcome.FrameCode = val
	}
	if val, ok := doc["completed_at"].(float64); ok {
		outcome.CompletedAt = time.Unix(int64(val), 0).UTC()
	}
	return outcome
}
