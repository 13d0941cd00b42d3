package fabric

import "time"

// Wire schemas. Timestamps are ISO-8601 with a Z suffix; encoding/json
// handles both directions through RFC 3339.

// ChargerTelemetryMessage is free-running device telemetry; power is watts
// on the wire.
type ChargerTelemetryMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	ChargerID   string    `json:"charger_id"`
	ConnectorID int       `json:"connector_id"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Power       float64   `json:"power"`
	SessionID   string    `json:"session_id,omitempty"`
	VehicleSOC  *float64  `json:"vehicle_soc,omitempty"`
	Status      string    `json:"status"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type SessionStartMessage struct {
	Timestamp       time.Time `json:"timestamp"`
	ChargerID       string    `json:"charger_id"`
	ConnectorID     int       `json:"connector_id"`
	SessionID       string    `json:"session_id"`
	VehicleMaxPower float64   `json:"vehicle_max_power"`
	UserID          string    `json:"user_id,omitempty"`
	RFIDTag         string    `json:"rfid_tag,omitempty"`
}

type SessionStopMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	ChargerID   string    `json:"charger_id"`
	ConnectorID int       `json:"connector_id"`
	SessionID   string    `json:"session_id"`
	TotalEnergy float64   `json:"total_energy"`
	Reason      string    `json:"reason"`
}

type SessionUpdateMessage struct {
	Timestamp       time.Time `json:"timestamp"`
	ChargerID       string    `json:"charger_id"`
	ConnectorID     int       `json:"connector_id"`
	SessionID       string    `json:"session_id"`
	ConsumedPower   float64   `json:"consumed_power"`
	VehicleMaxPower float64   `json:"vehicle_max_power"`
	VehicleSOC      *float64  `json:"vehicle_soc,omitempty"`
	EnergyDelivered float64   `json:"energy_delivered"`
}

type BESSStatusMessage struct {
	Timestamp         time.Time `json:"timestamp"`
	SOC               float64   `json:"soc"`
	Voltage           float64   `json:"voltage"`
	Current           float64   `json:"current"`
	Power             float64   `json:"power"`
	Temperature       float64   `json:"temperature"`
	Status            string    `json:"status"`
	AvailableCapacity float64   `json:"available_capacity"`
}

type PowerLimitCommand struct {
	Timestamp   time.Time `json:"timestamp"`
	ChargerID   string    `json:"charger_id"`
	ConnectorID int       `json:"connector_id"`
	PowerLimit  float64   `json:"power_limit"`
	Priority    string    `json:"priority"`
}

type StartCommand struct {
	Timestamp       time.Time `json:"timestamp"`
	SessionID       string    `json:"session_id"`
	ConnectorID     int       `json:"connector_id"`
	VehicleMaxPower float64   `json:"vehicle_max_power"`
}

type BESSCommandMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Power     float64   `json:"power"`
}
