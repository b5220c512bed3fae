package notifications

import (
	"context"
	"strings"
)

// Provider sends events to one destination.
type Provider interface {
	// Name returns the provider name (e.g., "webhook", "slack", "email", "pagerduty").
	Name() string

	// Send delivers the event.
	Send(ctx context.Context, event Event) error

	// SupportsEvent returns true if this provider handles the given event type.
	SupportsEvent(eventType EventType) bool

	// Validate checks if the provider configuration is valid.
	Validate(ctx context.Context) error
}

// supportsEvent reports whether eventType passes filter. An empty filter
// accepts every event.
func supportsEvent(filter []string, eventType EventType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, e := range filter {
		if strings.EqualFold(e, string(eventType)) {
			return true
		}
	}
	return false
}
