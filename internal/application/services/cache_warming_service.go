package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
)

// CacheWarmingService pre-loads the glasses frame catalog into cache at
// startup, so the first operators of the day do not pay the cold-read cost
// during the selection step.
type CacheWarmingService struct {
	inventory repositories.InventoryRepository
	cache     providers.CacheProvider
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	inventory repositories.InventoryRepository,
	cache providers.CacheProvider,
) *CacheWarmingService {
	return &CacheWarmingService{
		inventory: inventory,
		cache:     cache,
	}
}

// WarmCache warms the cache with the frame catalog.
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	log.Println("Starting cache warming...")

	if err := s.warmFrameCatalog(ctx); err != nil {
		log.Printf("Failed to warm frame catalog: %v", err)
		return err
	}

	log.Println("Cache warming completed")
	return nil
}

// warmFrameCatalog caches the in-stock frame list and each frame by code.
func (s *CacheWarmingService) warmFrameCatalog(ctx context.Context) error {
	frames, err := s.inventory.ListFrames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list frames: %w", err)
	}

	if data, err := json.Marshal(frames); err == nil {
		if err := s.cache.Set(ctx, "inventory:frames:list", data, 60); err != nil {
			log.Printf("Failed to cache frames list: %v", err)
		}
	}

	for _, frame := range frames {
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("inventory:frame:%s", frame.Code)
		if err := s.cache.Set(ctx, key, data, 300); err != nil {
			log.Printf("Failed to cache frame %s: %v", frame.Code, err)
		}
	}

	log.Printf("Warmed cache with %d frames", len(frames))
	return nil
}
