package services

import (
	"context"
	"log"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// HistoryService serves the screening history review dashboard: completed
// sessions are flattened into outcomes and indexed for search, with the
// session store as fallback when the search index is unavailable.
type HistoryService struct {
	sessions  repositories.SessionRepository
	searchRepo repositories.OutcomeSearchRepository
	directory providers.DirectoryProvider
}

// NewHistoryService creates a new history service
func NewHistoryService(
	sessions repositories.SessionRepository,
	searchRepo repositories.OutcomeSearchRepository,
	directory providers.DirectoryProvider,
) *HistoryService {
	return &HistoryService{
		sessions:  sessions,
		searchRepo: searchRepo,
		directory: directory,
	}
}

// IndexSession flattens a completed session and upserts it into the search
// index. Directory lookups are best-effort: an unreachable directory still
// indexes the outcome, just without the student display fields.
func (s *HistoryService) IndexSession(ctx context.Context, session *entities.ScreeningSession) error {
	if s.searchRepo == nil {
		return nil
	}
	if !session.IsCompleted() {
		return apperrors.NewValidationError("only completed sessions are indexed")
	}

	var student *entities.Student
	if s.directory != nil && session.StudentID != "" {
		loaded, err := s.directory.GetStudent(ctx, session.StudentID)
		if err != nil {
			log.Printf("failed to load student %s for indexing (ignored): %v", session.StudentID, err)
		} else {
			student = loaded
		}
	}

	return s.searchRepo.Index(ctx, entities.OutcomeFromSession(session, student))
}

// Search queries completed screening outcomes. The search index answers when
// available; otherwise the session store serves an unranked listing.
func (s *HistoryService) Search(ctx context.Context, query repositories.OutcomeQuery) ([]*entities.ScreeningOutcome, error) {
	if s.searchRepo != nil {
		outcomes, err := s.searchRepo.Search(ctx, query)
		if err == nil {
			return outcomes, nil
		}
		log.Printf("outcome search failed, falling back to session store: %v", err)
	}

	sessions, err := s.sessions.ListCompleted(ctx, repositories.SessionFilter{
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, err
	}

	outcomes := make([]*entities.ScreeningOutcome, 0, len(sessions))
	for _, session := range sessions {
		outcomes = append(outcomes, entities.OutcomeFromSession(session, nil))
	}
	return outcomes, nil
}

// Backfill re-indexes all completed sessions, used by the indexer command.
// Returns the number of sessions indexed.
func (s *HistoryService) Backfill(ctx context.Context, batchSize int) (int, error) {
	if s.searchRepo == nil {
		return 0, apperrors.NewInternalError("search repository not configured", nil)
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		sessions, err := s.sessions.ListCompleted(ctx, repositories.SessionFilter{
			Limit:  batchSize,
			Offset: offset,
		})
		if err != nil {
			return indexed, err
		}
		if len(sessions) == 0 {
			return indexed, nil
		}

		for _, session := range sessions {
			if err := s.IndexSession(ctx, session); err != nil {
				log.Printf("failed to index session %s (skipped): %v", session.ID, err)
				continue
			}
			indexed++
		}
	}
}
