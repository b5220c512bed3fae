package notifications

import (
	"context"
	"sync"

	"github.com/systmms/tierup/internal/logging"
)

// Manager fans an event out to every registered provider. Notify returns once
// every provider has been tried; errors are logged and swallowed.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *logging.Logger
	dryRun    bool
}

// NewManager creates a manager. In dry-run mode providers are never called.
func NewManager(logger *logging.Logger, dryRun bool) *Manager {
	return &Manager{logger: logger, dryRun: dryRun}
}

// RegisterProvider adds a notification provider to the manager.
func (m *Manager) RegisterProvider(provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, provider)
}

// Providers returns a copy of the registered providers.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	providers := make([]Provider, len(m.providers))
	copy(providers, m.providers)
	return providers
}

// Notify sends event to every provider that supports it and returns the
// number of successful deliveries.
func (m *Manager) Notify(ctx context.Context, event Event) int {
	delivered := 0
	for _, provider := range m.Providers() {
		if !provider.SupportsEvent(event.Type) {
			continue
		}

		if m.dryRun {
			m.logger.Info("[dry-run] would notify %s: %s %s (%s)", provider.Name(), event.Type, event.Status, title(event))
			continue
		}

		err := provider.Send(ctx, event)
		recordSend(provider.Name(), err)
		if err != nil {
			m.logger.Warn("%s notification failed: %v", provider.Name(), err)
			continue
		}
		m.logger.Debug("%s notification sent (%s)", provider.Name(), event.Type)
		delivered++
	}
	return delivered
}
