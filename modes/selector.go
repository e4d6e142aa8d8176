package modes

import (
	"fmt"
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

const topicSelected = "modes:selected"

// Selector tracks the selected mode. It is safe for concurrent use.
type Selector struct {
	registry *Registry
	bus      evbus.Bus
	logger   *slog.Logger

	mu       sync.RWMutex
	selected Mode
}

// NewSelector returns a Selector positioned on the registry's default mode.
func NewSelector(registry *Registry, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Selector{
		registry: registry,
		bus:      evbus.New(),
		logger:   logger,
		selected: registry.Default(),
	}
}

// Select makes id the current mode. An unknown id selects the default mode
// and returns ErrUnknownMode; the returned Mode is the one now selected
// either way.
func (s *Selector) Select(id string) (Mode, error) {
	m, ok := s.registry.Lookup(id)
	var err error
	if !ok {
		m = s.registry.Default()
		err = fmt.Errorf("%w: %q", ErrUnknownMode, id)
		s.logger.Warn("unknown mode, using default",
			slog.String("mode", id),
			slog.String("default", m.ID),
		)
	}

	s.mu.Lock()
	changed := s.selected.ID != m.ID
	s.selected = m
	s.mu.Unlock()

	if changed {
		s.logger.Info("mode selected", slog.String("mode", m.ID))
		s.bus.Publish(topicSelected, m)
	}
	return m, err
}

// Selected returns the current mode.
func (s *Selector) Selected() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// FolderPath returns the data folder of the current mode.
func (s *Selector) FolderPath() string {
	return s.Selected().FolderPath()
}

// OnChange registers fn to be called synchronously, from the goroutine that
// called Select, whenever the selection changes. The bus is locked while fn
// runs: fn must not call Select or OnChange, or it deadlocks. Hand the mode
// to another goroutine if a change needs to trigger a new selection.
func (s *Selector) OnChange(fn func(Mode)) error {
	return s.bus.Subscribe(topicSelected, fn)
}
