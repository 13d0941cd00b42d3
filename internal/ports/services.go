package ports

import (
	"context"
	"time"

	"github.com/electra-charge/ems/internal/domain"
)

// StartSessionInput carries a session/start event, from either the REST
// adapter or the message fabric.
type StartSessionInput struct {
	SessionID       string
	ChargerID       string
	ConnectorID     int
	VehicleMaxPower float64
	UserID          string
	RFIDTag         string
	Timestamp       time.Time
}

// UpdateSessionInput carries a session/update event.
type UpdateSessionInput struct {
	SessionID       string
	ConsumedPower   float64
	VehicleMaxPower float64
	TotalEnergy     float64
	VehicleSOC      *float64
	Timestamp       time.Time
}

// ChargerTelemetryInput is free-running device telemetry; PowerW is watts
// as reported on the wire.
type ChargerTelemetryInput struct {
	ChargerID   string
	ConnectorID int
	SessionID   string
	PowerW      float64
	VehicleSOC  *float64
	Timestamp   time.Time
}

// StationStatus is the live site snapshot served by GET /station/status.
type StationStatus struct {
	StationID       string                   `json:"stationId"`
	Timestamp       time.Time                `json:"timestamp"`
	GridCapacity    float64                  `json:"gridCapacity"`
	GridPower       float64                  `json:"gridPower"`
	BESSPower       float64                  `json:"bessPower"`
	BESSSOC         *float64                 `json:"bessSOC,omitempty"`
	TotalAllocated  float64                  `json:"totalAllocated"`
	TotalConsumed   float64                  `json:"totalConsumed"`
	ActiveSessions  int                      `json:"activeSessions"`
	AvailablePower  float64                  `json:"availablePower"`
	FabricConnected bool                     `json:"fabricConnected"`
	Sessions        []domain.Session         `json:"sessions"`
	PowerAllocation []domain.PowerAllocation `json:"powerAllocation"`
}

// SessionCoordinator is the single entry point for session lifecycle
// mutations. Both inbound adapters speak this vocabulary.
type SessionCoordinator interface {
	StartSession(ctx context.Context, in StartSessionInput) (*domain.Session, error)
	StopSession(ctx context.Context, sessionID string, totalEnergy float64, reason domain.StopReason) error
	UpdateSession(ctx context.Context, in UpdateSessionInput) (float64, error)
	HandleChargerTelemetry(in ChargerTelemetryInput)
	HandleBatteryTelemetry(soc, power float64)
	StationStatus() StationStatus
}

// CommandPublisher is the coordinator's outbound side of the fabric.
type CommandPublisher interface {
	PublishPowerLimit(chargerID string, connectorID int, limitKW float64) error
	PublishBESSCommand(cmd domain.BESSCommand) error
	PublishStartCommand(s *domain.Session) error
	Connected() bool
}
