package mocks

import (
	"context"
	"sync"

	"github.com/electra-charge/ems/internal/domain"
)

// MockPersistenceSink records every write so tests can assert on what the
// coordinator persisted. Set FailAll to simulate a dead database.
type MockPersistenceSink struct {
	mu sync.Mutex

	Sessions         []*domain.Session
	PowerUpdates     []*domain.SessionPowerUpdate
	PowerMetrics     []*domain.PowerMetric
	BESSLogs         []*domain.BESSStatusLog
	Events           []*domain.Event
	ConnectorUpdates []ConnectorStatusUpdate

	FailAll         bool
	SaveSessionFunc func(ctx context.Context, s *domain.Session) error
}

type ConnectorStatusUpdate struct {
	ChargerID   string
	ConnectorID int
	Status      domain.ConnectorStatus
}

func NewMockPersistenceSink() *MockPersistenceSink {
	return &MockPersistenceSink{}
}

func (m *MockPersistenceSink) SaveSession(ctx context.Context, s *domain.Session) error {
	if m.SaveSessionFunc != nil {
		return m.SaveSessionFunc(ctx, s)
	}
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions = append(m.Sessions, s.Clone())
	return nil
}

func (m *MockPersistenceSink) AppendPowerUpdate(ctx context.Context, u *domain.SessionPowerUpdate) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.PowerUpdates = append(m.PowerUpdates, &cp)
	return nil
}

func (m *MockPersistenceSink) AppendPowerMetric(ctx context.Context, pm *domain.PowerMetric) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pm
	m.PowerMetrics = append(m.PowerMetrics, &cp)
	return nil
}

func (m *MockPersistenceSink) AppendBESSLog(ctx context.Context, l *domain.BESSStatusLog) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.BESSLogs = append(m.BESSLogs, &cp)
	return nil
}

func (m *MockPersistenceSink) AppendEvent(ctx context.Context, e *domain.Event) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MockPersistenceSink) UpdateConnectorStatus(ctx context.Context, chargerID string, connectorID int, status domain.ConnectorStatus) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectorUpdates = append(m.ConnectorUpdates, ConnectorStatusUpdate{
		ChargerID:   chargerID,
		ConnectorID: connectorID,
		Status:      status,
	})
	return nil
}

// EventKinds lists the kinds of the recorded events, in order.
func (m *MockPersistenceSink) EventKinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventKind, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Kind)
	}
	return out
}

// LastSession returns the most recently saved session, or nil.
func (m *MockPersistenceSink) LastSession() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sessions) == 0 {
		return nil
	}
	return m.Sessions[len(m.Sessions)-1]
}

// MockStationRepository records topology upserts.
type MockStationRepository struct {
	mu         sync.Mutex
	Stations   []*domain.Station
	Chargers   []*domain.Charger
	Connectors []*domain.Connector
	FailAll    bool
}

func NewMockStationRepository() *MockStationRepository {
	return &MockStationRepository{}
}

func (m *MockStationRepository) UpsertStation(ctx context.Context, st *domain.Station) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stations = append(m.Stations, st)
	return nil
}

func (m *MockStationRepository) UpsertCharger(ctx context.Context, c *domain.Charger) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Chargers = append(m.Chargers, c)
	return nil
}

func (m *MockStationRepository) UpsertConnector(ctx context.Context, c *domain.Connector) error {
	if m.FailAll {
		return domain.ErrPersistence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connectors = append(m.Connectors, c)
	return nil
}

func (m *MockStationRepository) FindChargers(ctx context.Context, stationID string) ([]domain.Charger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Charger
	for _, c := range m.Chargers {
		if c.StationID == stationID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MockStationRepository) FindConnectors(ctx context.Context, chargerID string) ([]domain.Connector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Connector
	for _, c := range m.Connectors {
		if c.ChargerID == chargerID {
			out = append(out, *c)
		}
	}
	return out, nil
}
