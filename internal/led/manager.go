package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/ptzbridge/internal/events"
)

// Manager mirrors bridge state onto the board LEDs. The status LED blinks
// until a source is selected and while capture is stalled, and is solid
// while frames arrive. The activity LED is lit while consumers are connected.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	mu       sync.Mutex
	selected bool
	stalled  bool
	peers    int
	unsubs   []func()
}

// NewManager creates a manager. Start must be called to begin tracking.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start subscribes to bridge events and applies the initial pattern.
func (m *Manager) Start() {
	m.mu.Lock()
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(func(events.SourceSelectedEvent) {
			m.update(func() { m.selected = true })
		}),
		m.eventBus.Subscribe(func(e events.CaptureStateEvent) {
			m.update(func() { m.stalled = e.State == events.CaptureStalled })
		}),
		m.eventBus.Subscribe(func(e events.PeerEvent) {
			m.update(func() { m.peers = e.Peers })
		}),
	)
	m.apply()
	m.mu.Unlock()
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and turns the LEDs off.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.set(RoleStatus, PatternOff)
	m.set(RoleActivity, PatternOff)
}

func (m *Manager) update(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
	m.apply()
}

// apply must be called with mu held.
func (m *Manager) apply() {
	status := PatternSolid
	if !m.selected || m.stalled {
		status = PatternBlink
	}
	m.set(RoleStatus, status)

	activity := PatternOff
	if m.peers > 0 {
		activity = PatternSolid
	}
	m.set(RoleActivity, activity)
}

func (m *Manager) set(role, pattern string) {
	if err := m.controller.Set(role, pattern); err != nil {
		m.logger.Warn("Failed to set LED", "role", role, "pattern", pattern, "error", err)
	}
}
