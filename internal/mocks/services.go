package mocks

import (
	"sync"

	"github.com/electra-charge/ems/internal/domain"
)

// PublishedLimit is one captured power limit command.
type PublishedLimit struct {
	ChargerID   string
	ConnectorID int
	LimitKW     float64
}

// MockCommandPublisher captures outbound commands for assertions.
type MockCommandPublisher struct {
	mu sync.Mutex

	Limits        []PublishedLimit
	BESSCommands  []domain.BESSCommand
	StartCommands []*domain.Session

	ConnectedState bool
	PublishErr     error
}

func NewMockCommandPublisher() *MockCommandPublisher {
	return &MockCommandPublisher{ConnectedState: true}
}

func (m *MockCommandPublisher) PublishPowerLimit(chargerID string, connectorID int, limitKW float64) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Limits = append(m.Limits, PublishedLimit{
		ChargerID:   chargerID,
		ConnectorID: connectorID,
		LimitKW:     limitKW,
	})
	return nil
}

func (m *MockCommandPublisher) PublishBESSCommand(cmd domain.BESSCommand) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BESSCommands = append(m.BESSCommands, cmd)
	return nil
}

func (m *MockCommandPublisher) PublishStartCommand(s *domain.Session) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCommands = append(m.StartCommands, s.Clone())
	return nil
}

func (m *MockCommandPublisher) Connected() bool {
	return m.ConnectedState
}

// LimitsFor returns the captured limits for one connector, in order.
func (m *MockCommandPublisher) LimitsFor(chargerID string, connectorID int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, l := range m.Limits {
		if l.ChargerID == chargerID && l.ConnectorID == connectorID {
			out = append(out, l.LimitKW)
		}
	}
	return out
}

// LastBESSCommand returns the most recent battery command, or nil.
func (m *MockCommandPublisher) LastBESSCommand() *domain.BESSCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.BESSCommands) == 0 {
		return nil
	}
	cmd := m.BESSCommands[len(m.BESSCommands)-1]
	return &cmd
}

// Reset clears all captured commands.
func (m *MockCommandPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Limits = nil
	m.BESSCommands = nil
	m.StartCommands = nil
}
