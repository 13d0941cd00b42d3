package domain

import (
	"time"
)

type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStateCompleted SessionState = "completed"
)

type ConnectorType string

const (
	ConnectorTypeCCS2    ConnectorType = "CCS2"
	ConnectorTypeCHAdeMO ConnectorType = "CHAdeMO"
	ConnectorTypeType2   ConnectorType = "Type2"
	ConnectorTypeType1   ConnectorType = "Type1"
	ConnectorTypeGBT     ConnectorType = "GB/T"
	ConnectorTypeTesla   ConnectorType = "Tesla"
)

type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "available"
	ConnectorStatusOccupied    ConnectorStatus = "occupied"
	ConnectorStatusReserved    ConnectorStatus = "reserved"
	ConnectorStatusUnavailable ConnectorStatus = "unavailable"
	ConnectorStatusFaulted     ConnectorStatus = "faulted"
)

type StopReason string

const (
	StopReasonUser        StopReason = "user_stop"
	StopReasonVehicleFull StopReason = "vehicle_full"
	StopReasonError       StopReason = "error"
)

// Session is one active charging session bound to a single connector.
// The coordinator is the only writer of AllocatedPower and OfferedPower;
// after every coordinator transition the two are equal.
type Session struct {
	SessionID   string       `json:"session_id" gorm:"primaryKey;column:session_id"`
	ChargerID   string       `json:"charger_id" gorm:"index"`
	ConnectorID int          `json:"connector_id"`
	State       SessionState `json:"state" gorm:"index"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	VehicleMaxPower float64 `json:"vehicle_max_power"`
	AllocatedPower  float64 `json:"allocated_power"`
	ConsumedPower   float64 `json:"consumed_power"`
	OfferedPower    float64 `json:"offered_power"`

	TotalEnergy float64  `json:"total_energy"`
	VehicleSOC  *float64 `json:"vehicle_soc,omitempty"`

	UserID  string `json:"user_id,omitempty"`
	RFIDTag string `json:"rfid_tag,omitempty"`

	// LastUpdate is the device timestamp of the most recent processed
	// session/update message. Older messages are stale and dropped.
	LastUpdate time.Time `json:"last_update"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "charging_sessions" }

// Clone returns a copy safe to hand outside the coordinator goroutine.
func (s *Session) Clone() *Session {
	cp := *s
	if s.EndTime != nil {
		t := *s.EndTime
		cp.EndTime = &t
	}
	if s.VehicleSOC != nil {
		v := *s.VehicleSOC
		cp.VehicleSOC = &v
	}
	return &cp
}

// PowerAllocation is one row of the allocator's output vector.
type PowerAllocation struct {
	SessionID       string  `json:"session_id"`
	ChargerID       string  `json:"charger_id"`
	ConnectorID     int     `json:"connector_id"`
	AllocatedPower  float64 `json:"allocated_power"`
	ConsumedPower   float64 `json:"consumed_power"`
	VehicleMaxPower float64 `json:"vehicle_max_power"`
}
