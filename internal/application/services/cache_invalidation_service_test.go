package services_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visionwell/vision-screening/backend/internal/application/services"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// memoryCache is an in-memory CacheProvider recording deletions.
type memoryCache struct {
	mu       sync.RWMutex
	data     map[string][]byte
	patterns []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, errors.New("cache miss")
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	m.data = make(map[string][]byte)
	return nil
}

func (m *memoryCache) deletedPatterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

// channelEventBus delivers published events to subscribers in-process.
type channelEventBus struct {
	mu   sync.Mutex
	subs map[string][]chan *entities.PresenceEvent
}

func newChannelEventBus() *channelEventBus {
	return &channelEventBus{subs: make(map[string][]chan *entities.PresenceEvent)}
}

func (b *channelEventBus) Publish(ctx context.Context, channel string, event *entities.PresenceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[channel] {
		sub <- event
	}
	return nil
}

func (b *channelEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.PresenceEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.PresenceEvent, 8)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *channelEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, channel)
	return nil
}

func (b *channelEventBus) Close() error { return nil }

// closeAll closes every subscriber channel, mimicking the bus dropping its
// subscriptions when the underlying pubsub connection dies.
func (b *channelEventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, subs := range b.subs {
		for _, sub := range subs {
			close(sub)
		}
		delete(b.subs, channel)
	}
}

func TestCacheInvalidationService_CompletedSessionDropsInventoryKeys(t *testing.T) {
	cache := newMemoryCache()
	bus := newChannelEventBus()
	svc := services.NewCacheInvalidationService(cache, bus)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.NoError(t, cache.Set(context.Background(), "inventory:frames:list", []byte("[]"), 60))

	session := &entities.ScreeningSession{
		ID:          "sess-1",
		OperatorID:  "op-1",
		CurrentStep: entities.StepSchoolDelivery,
		Status:      entities.SessionStatusCompleted,
	}
	event := entities.NewPresenceEvent(entities.PresenceEventTypeCompleted, session)
	require.NoError(t, bus.Publish(context.Background(), providers.PresenceChannelAll, event))

	assert.Eventually(t, func() bool {
		return len(cache.deletedPatterns()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"inventory:*"}, cache.deletedPatterns())
}

func TestCacheInvalidationService_StepChangesLeaveCacheAlone(t *testing.T) {
	cache := newMemoryCache()
	bus := newChannelEventBus()
	svc := services.NewCacheInvalidationService(cache, bus)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	session := &entities.ScreeningSession{ID: "sess-1", OperatorID: "op-1"}
	event := entities.NewPresenceEvent(entities.PresenceEventTypeStepChanged, session)
	require.NoError(t, bus.Publish(context.Background(), providers.PresenceChannelAll, event))

	// Give the consumer a moment; nothing should be deleted.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, cache.deletedPatterns())
}

func TestCacheInvalidationService_StopsWhenSubscriptionCloses(t *testing.T) {
	cache := newMemoryCache()
	bus := newChannelEventBus()
	svc := services.NewCacheInvalidationService(cache, bus)

	before := runtime.NumGoroutine()
	require.NoError(t, svc.Start())
	defer svc.Stop()

	// The bus closing its subscriber channels must terminate the consumer
	// instead of leaving it spinning on the closed channel.
	bus.closeAll()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, cache.deletedPatterns())
}

func TestCacheInvalidationService_ManualInvalidation(t *testing.T) {
	cache := newMemoryCache()
	svc := services.NewCacheInvalidationService(cache, newChannelEventBus())

	err := svc.InvalidateInventoryCaches(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"inventory:*"}, cache.deletedPatterns())
}
