package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
)

// CachedInventoryAdapter wraps an InventoryRepository with Redis caching for
// the read paths. Stock-changing operations pass through and invalidate the
// affected keys so the frame catalog never shows stale stock after a
// reservation.
type CachedInventoryAdapter struct {
	adapter repositories.InventoryRepository
	cache   providers.CacheProvider
}

// NewCachedInventoryAdapter creates a new cached inventory adapter
func NewCachedInventoryAdapter(adapter repositories.InventoryRepository, cache providers.CacheProvider) repositories.InventoryRepository {
	return &CachedInventoryAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	frameByCodeTTL = 300 // 5 minutes for single frame
	framesListTTL  = 60  // 1 minute for the catalog list
)

func frameCacheKey(code string) string {
	return fmt.Sprintf("inventory:frame:%s", code)
}

const framesListCacheKey = "inventory:frames:list"

// GetFrame retrieves a frame by code with caching.
func (a *CachedInventoryAdapter) GetFrame(ctx context.Context, code string) (*entities.GlassesFrame, error) {
	cacheKey := frameCacheKey(code)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var frame entities.GlassesFrame
		if err := json.Unmarshal(cached, &frame); err == nil {
			return &frame, nil
		}
		log.Printf("Failed to unmarshal cached frame %s: %v", code, err)
	}

	frame, err := a.adapter.GetFrame(ctx, code)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(frame); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, frameByCodeTTL); err != nil {
				log.Printf("Failed to cache frame %s: %v", code, err)
			}
		}
	}()

	return frame, nil
}

// ListFrames retrieves the in-stock catalog with caching.
func (a *CachedInventoryAdapter) ListFrames(ctx context.Context) ([]*entities.GlassesFrame, error) {
	if cached, err := a.cache.Get(ctx, framesListCacheKey); err == nil {
		var frames []*entities.GlassesFrame
		if err := json.Unmarshal(cached, &frames); err == nil {
			return frames, nil
		}
		log.Printf("Failed to unmarshal cached frames list: %v", err)
	}

	frames, err := a.adapter.ListFrames(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(frames); err == nil {
			if err := a.cache.Set(bgCtx, framesListCacheKey, data, framesListTTL); err != nil {
				log.Printf("Failed to cache frames list: %v", err)
			}
		}
	}()

	return frames, nil
}

// Reserve delegates and invalidates the frame's cached stock.
func (a *CachedInventoryAdapter) Reserve(ctx context.Context, sessionID, frameCode string) (*entities.FrameReservation, error) {
	reservation, err := a.adapter.Reserve(ctx, sessionID, frameCode)
	if err != nil {
		return nil, err
	}
	a.invalidateFrame(ctx, frameCode)
	return reservation, nil
}

// Release delegates and invalidates the inventory caches; the released unit
// is back in stock.
func (a *CachedInventoryAdapter) Release(ctx context.Context, reservationID string) error {
	if err := a.adapter.Release(ctx, reservationID); err != nil {
		return err
	}
	a.invalidateAll(ctx)
	return nil
}

// MarkDelivered delegates. Stock was already consumed at reservation time, so
// only the reservation state changes and no cache entry is touched.
func (a *CachedInventoryAdapter) MarkDelivered(ctx context.Context, reservationID string) error {
	return a.adapter.MarkDelivered(ctx, reservationID)
}

func (a *CachedInventoryAdapter) invalidateFrame(ctx context.Context, frameCode string) {
	if err := a.cache.Delete(ctx, frameCacheKey(frameCode)); err != nil {
		log.Printf("Failed to invalidate cached frame %s: %v", frameCode, err)
	}
	if err := a.cache.Delete(ctx, framesListCacheKey); err != nil {
		log.Printf("Failed to invalidate cached frames list: %v", err)
	}
}

// invalidateAll drops every inventory cache entry. Used on release, where the
// reservation's frame code is not known to this layer.
func (a *CachedInventoryAdapter) invalidateAll(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, "inventory:*"); err != nil {
		log.Printf("Failed to invalidate inventory caches: %v", err)
	}
}
