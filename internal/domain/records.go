package domain

import (
	"encoding/json"
	"time"
)

// Persistence rows for the time-series tables. The live Session entity is
// persisted as-is into charging_sessions; everything below is append-only.

type Station struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	StationID    string         `json:"station_id" gorm:"uniqueIndex"`
	GridCapacity float64        `json:"grid_capacity"`
	StaticLoad   float64        `json:"static_load"`
	Config       json.RawMessage `json:"config" gorm:"type:jsonb"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Station) TableName() string { return "stations" }

type Charger struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	StationID     string    `json:"station_id" gorm:"uniqueIndex:idx_station_charger"`
	ChargerID     string    `json:"charger_id" gorm:"uniqueIndex:idx_station_charger"`
	MaxPower      float64   `json:"max_power"`
	NumConnectors int       `json:"num_connectors"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Charger) TableName() string { return "chargers" }

type Connector struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	ChargerID   string          `json:"charger_id" gorm:"uniqueIndex:idx_charger_connector"`
	ConnectorID int             `json:"connector_id" gorm:"uniqueIndex:idx_charger_connector"`
	Type        ConnectorType   `json:"connector_type"`
	MaxPower    float64         `json:"max_power"`
	Status      ConnectorStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Connector) TableName() string { return "connectors" }

// SessionPowerUpdate is the per-session power history, one row per
// processed session/update message.
type SessionPowerUpdate struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	SessionID       string    `json:"session_id" gorm:"index"`
	Timestamp       time.Time `json:"timestamp" gorm:"index"`
	ConsumedPower   float64   `json:"consumed_power"`
	AllocatedPower  float64   `json:"allocated_power"`
	VehicleMaxPower float64   `json:"vehicle_max_power"`
}

func (SessionPowerUpdate) TableName() string { return "session_power_updates" }

// PowerMetric is a site-level snapshot, written on every start/stop and on
// a sampled fraction of power updates.
type PowerMetric struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	StationID      string    `json:"station_id" gorm:"index"`
	Timestamp      time.Time `json:"timestamp" gorm:"index"`
	GridPower      float64   `json:"grid_power"`
	BESSPower      float64   `json:"bess_power"`
	TotalAllocated float64   `json:"total_allocated"`
	TotalConsumed  float64   `json:"total_consumed"`
	AvailablePower float64   `json:"available_power"`
	ActiveSessions int       `json:"active_sessions"`
}

func (PowerMetric) TableName() string { return "power_metrics" }

type BESSStatusLog struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	StationID          string    `json:"station_id" gorm:"index"`
	Timestamp          time.Time `json:"timestamp" gorm:"index"`
	Mode               BESSMode  `json:"mode"`
	Power              float64   `json:"power"`
	SOC                float64   `json:"soc"`
	Capacity           float64   `json:"capacity"`
	AvailableEnergy    float64   `json:"available_energy"`
	AvailableDischarge float64   `json:"available_discharge"`
	AvailableCharge    float64   `json:"available_charge"`
}

func (BESSStatusLog) TableName() string { return "bess_status_logs" }

type EventKind string

const (
	EventSessionStart EventKind = "session_start"
	EventSessionStop  EventKind = "session_stop"
	EventBESSBoost    EventKind = "bess_boost"
	EventBESSCharge   EventKind = "bess_charge"
	EventReallocation EventKind = "reallocation"
)

// Event is one audit row.
type Event struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Timestamp   time.Time      `json:"timestamp" gorm:"index"`
	Kind        EventKind      `json:"kind" gorm:"column:event_type;index"`
	Description string         `json:"description"`
	Payload     json.RawMessage `json:"payload" gorm:"type:jsonb"`
}

func (Event) TableName() string { return "events" }
