package booking

import (
	"sync"

	"github.com/google/uuid"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/internal/observability/metrics"
	"github.com/intellagent/scheduling-service/internal/schedule"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// Manager owns the live wizard sessions and wires each new one into the
// automation sequencer. The sequencer holds a single target slot, so the
// most recently created session is the one chat-driven runs operate on.
type Manager struct {
	crm       Directory
	calc      *schedule.Calculator
	sequencer *automation.Sequencer
	defaultTZ string
	fillCfg   FillConfig
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger

	mu           sync.Mutex
	sessions     map[string]*Session
	unregistered map[string]func()
}

// NewManager builds a session manager.
func NewManager(directory Directory, calc *schedule.Calculator, seq *automation.Sequencer, defaultTZ string, fillCfg FillConfig, m *metrics.SchedulingMetrics, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		crm:          directory,
		calc:         calc,
		sequencer:    seq,
		defaultTZ:    defaultTZ,
		fillCfg:      fillCfg,
		metrics:      m,
		logger:       logger,
		sessions:     map[string]*Session{},
		unregistered: map[string]func(){},
	}
}

// Create starts a new wizard session and registers it as the automation
// target, replacing any previous registrant.
func (m *Manager) Create() *Session {
	id := uuid.New().String()
	s := NewSession(id, m.crm, m.calc, m.defaultTZ, m.metrics, m.logger)

	var unregister func()
	if m.sequencer != nil {
		unregister = m.sequencer.Register(AutomationHandle(s, m.fillCfg, m.logger))
	}

	m.mu.Lock()
	m.sessions[id] = s
	if unregister != nil {
		m.unregistered[id] = unregister
	}
	m.mu.Unlock()

	m.logger.Info("booking session created", "session_id", id)
	return s
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Close tears down a session. Its automation registration is released only
// if it still owns the target slot.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	unregister := m.unregistered[id]
	delete(m.unregistered, id)
	delete(m.sessions, id)
	m.mu.Unlock()

	if unregister != nil {
		unregister()
	}
}
