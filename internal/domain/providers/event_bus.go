package providers

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// EventBus carries advisory presence events between workflow service
// instances and their SSE subscribers. Delivery is best-effort: publishers
// never retry and subscribers may miss events.
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel.
	Publish(ctx context.Context, channel string, event *entities.PresenceEvent) error

	// Subscribe subscribes to events on a channel until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PresenceEvent, error)

	// Unsubscribe drops all subscribers of a channel.
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions.
	Close() error
}

// Presence channel naming.
const (
	// PresenceChannelAll carries every presence event.
	PresenceChannelAll = "presence:all"

	// presenceChannelSessionPrefix prefixes per-session channels.
	presenceChannelSessionPrefix = "presence:session:"
)

// SessionPresenceChannel returns the channel name for one session's presence
// events.
func SessionPresenceChannel(sessionID string) string {
	return presenceChannelSessionPrefix + sessionID
}
