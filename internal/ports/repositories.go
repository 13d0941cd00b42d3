package ports

import (
	"context"

	"github.com/electra-charge/ems/internal/domain"
)

// PersistenceSink is the coordinator's write path. Implementations must not
// block indefinitely; failures are reported as wrapped domain.ErrPersistence
// and never roll back in-memory state.
type PersistenceSink interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	AppendPowerUpdate(ctx context.Context, u *domain.SessionPowerUpdate) error
	AppendPowerMetric(ctx context.Context, m *domain.PowerMetric) error
	AppendBESSLog(ctx context.Context, l *domain.BESSStatusLog) error
	AppendEvent(ctx context.Context, e *domain.Event) error
	UpdateConnectorStatus(ctx context.Context, chargerID string, connectorID int, status domain.ConnectorStatus) error
}

// StationRepository seeds and reads the static topology tables.
type StationRepository interface {
	UpsertStation(ctx context.Context, st *domain.Station) error
	UpsertCharger(ctx context.Context, c *domain.Charger) error
	UpsertConnector(ctx context.Context, c *domain.Connector) error
	FindChargers(ctx context.Context, stationID string) ([]domain.Charger, error)
	FindConnectors(ctx context.Context, chargerID string) ([]domain.Connector, error)
}

// SessionReader serves the HTTP read endpoints.
type SessionReader interface {
	FindSession(ctx context.Context, sessionID string) (*domain.Session, error)
	FindActiveSessions(ctx context.Context) ([]domain.Session, error)
}
