package domain

import "time"

type BESSMode string

const (
	BESSModeIdle        BESSMode = "idle"
	BESSModeCharging    BESSMode = "charging"
	BESSModeDischarging BESSMode = "discharging"
	BESSModeBoost       BESSMode = "boost"
)

type BESSCommandKind string

const (
	BESSCommandCharge    BESSCommandKind = "charge"
	BESSCommandDischarge BESSCommandKind = "discharge"
	BESSCommandIdle      BESSCommandKind = "idle"
)

// BESSCommand is the setpoint the EMS sends to the battery. Power is a
// positive magnitude in kW; the command carries the direction.
type BESSCommand struct {
	Command BESSCommandKind `json:"command"`
	Power   float64         `json:"power"`
}

// BESSStatus is an immutable snapshot of the battery taken by the
// coordinator before invoking the allocator. Power is signed:
// positive = discharging, negative = charging.
type BESSStatus struct {
	Timestamp          time.Time `json:"timestamp"`
	Mode               BESSMode  `json:"mode"`
	Power              float64   `json:"power"`
	SOC                float64   `json:"soc"`
	CapacityKWh        float64   `json:"capacity"`
	AvailableEnergy    float64   `json:"available_energy"`
	AvailableDischarge float64   `json:"available_discharge"`
	AvailableCharge    float64   `json:"available_charge"`
}
