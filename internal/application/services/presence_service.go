package services

import (
	"context"
	"log"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// PresenceService broadcasts advisory presence events. It is independently
// failable: every publish error is swallowed after logging, and a nil event
// bus turns the service into a no-op, so a missing or broken channel can
// never affect the workflow.
type PresenceService struct {
	eventBus providers.EventBus
}

// NewPresenceService creates a new presence service
func NewPresenceService(eventBus providers.EventBus) *PresenceService {
	return &PresenceService{
		eventBus: eventBus,
	}
}

// Notify publishes a presence event for the session, fire-and-forget.
func (s *PresenceService) Notify(ctx context.Context, eventType entities.PresenceEventType, session *entities.ScreeningSession) {
	if s == nil || s.eventBus == nil || session == nil || session.ID == "" {
		return
	}

	event := entities.NewPresenceEvent(eventType, session)
	channels := []string{
		providers.PresenceChannelAll,
		providers.SessionPresenceChannel(session.ID),
	}
	for _, channel := range channels {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			log.Printf("presence publish to %s failed (ignored): %v", channel, err)
		}
	}
}
