package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// CacheInvalidationService drops cache entries in response to presence
// events, so a completed screening is reflected in the frame catalog without
// waiting for TTL expiry.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for presence events and invalidating cache.
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.PresenceChannelAll)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence events: %w", err)
	}

	go s.processEvents(eventChan)
	log.Println("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Println("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.PresenceEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				// The bus closes subscriber channels when the pubsub
				// stream dies.
				log.Println("Presence subscription closed, stopping cache invalidation")
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent handles a single presence event.
//
// Strategy: let TTLs expire naturally for the listing routes (students,
// history) since they carry short TTLs and invalidating them on every step
// change would cause a cache stampede. Only a completed workflow touches the
// inventory keys: its reservation is closed at that point and the catalog
// should show the consumed stock immediately.
func (s *CacheInvalidationService) handleEvent(event *entities.PresenceEvent) {
	if event.EventType != entities.PresenceEventTypeCompleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cache.DeletePattern(ctx, "inventory:*"); err != nil {
		log.Printf("Warning: failed to invalidate inventory caches for session %s: %v", event.SessionID, err)
	} else {
		log.Printf("Invalidated inventory caches after session %s completed", event.SessionID)
	}
}

// InvalidateInventoryCaches drops every inventory cache entry. Used during
// maintenance, e.g. after a bulk stock import.
func (s *CacheInvalidationService) InvalidateInventoryCaches(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, "inventory:*"); err != nil {
		return fmt.Errorf("failed to invalidate inventory caches: %w", err)
	}
	log.Println("Invalidated inventory caches")
	return nil
}
