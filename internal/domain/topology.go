package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// StationTopology is the immutable site description loaded once at boot.
// All power figures are kilowatts.
type StationTopology struct {
	StationID    string         `json:"stationId"`
	GridCapacity float64        `json:"gridCapacity"`
	StaticLoad   float64        `json:"staticLoad"`
	Chargers     []ChargerSpec  `json:"chargers"`
	Battery      *BatteryParams `json:"battery,omitempty"`
}

type ChargerSpec struct {
	ID           string          `json:"id"`
	MaxPower     float64         `json:"maxPower"`
	Connectors   []ConnectorSpec `json:"connectors"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Model        string          `json:"model,omitempty"`
}

type ConnectorSpec struct {
	ConnectorID int           `json:"connector_id"`
	Type        ConnectorType `json:"connector_type"`
	MaxPower    float64       `json:"max_power"`
}

// BatteryParams describes the on-site BESS. SOC bounds are percentages.
type BatteryParams struct {
	CapacityKWh float64 `json:"initialCapacity"`
	MaxPowerKW  float64 `json:"power"`
	MinSOC      float64 `json:"minSOC"`
	MaxSOC      float64 `json:"maxSOC"`
}

const (
	DefaultStaticLoad = 3.0
	DefaultMinSOC     = 10.0
	DefaultMaxSOC     = 100.0
)

// LoadTopology reads and validates the station topology file.
func LoadTopology(path string) (*StationTopology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var topo StationTopology
	topo.StaticLoad = DefaultStaticLoad
	if err := json.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	topo.applyDefaults()
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return &topo, nil
}

func (t *StationTopology) applyDefaults() {
	if t.Battery != nil {
		if t.Battery.MinSOC == 0 {
			t.Battery.MinSOC = DefaultMinSOC
		}
		if t.Battery.MaxSOC == 0 {
			t.Battery.MaxSOC = DefaultMaxSOC
		}
	}
}

// Validate rejects configurations the engine cannot run with. This is the
// only place a bad parameter is fatal; everything downstream assumes a
// valid topology.
func (t *StationTopology) Validate() error {
	if t.StationID == "" {
		return fmt.Errorf("topology: stationId is required")
	}
	if t.GridCapacity <= 0 {
		return fmt.Errorf("topology: gridCapacity must be positive, got %.1f", t.GridCapacity)
	}
	if t.StaticLoad < 0 {
		return fmt.Errorf("topology: staticLoad must not be negative, got %.1f", t.StaticLoad)
	}
	for _, ch := range t.Chargers {
		if ch.ID == "" {
			return fmt.Errorf("topology: charger with empty id")
		}
		if ch.MaxPower <= 0 {
			return fmt.Errorf("topology: charger %s maxPower must be positive", ch.ID)
		}
		seen := make(map[int]bool, len(ch.Connectors))
		for _, cn := range ch.Connectors {
			if cn.MaxPower <= 0 {
				return fmt.Errorf("topology: charger %s connector %d max_power must be positive", ch.ID, cn.ConnectorID)
			}
			if seen[cn.ConnectorID] {
				return fmt.Errorf("topology: charger %s has duplicate connector %d", ch.ID, cn.ConnectorID)
			}
			seen[cn.ConnectorID] = true
		}
	}
	if t.Battery != nil {
		b := t.Battery
		if b.CapacityKWh <= 0 || b.MaxPowerKW <= 0 {
			return fmt.Errorf("topology: battery capacity and power must be positive")
		}
		if b.MinSOC < 0 || b.MaxSOC > 100 || b.MinSOC >= b.MaxSOC {
			return fmt.Errorf("topology: battery SOC bounds invalid (min %.1f, max %.1f)", b.MinSOC, b.MaxSOC)
		}
	}
	return nil
}

// Charger returns the spec for a charger id, or nil when unknown.
func (t *StationTopology) Charger(chargerID string) *ChargerSpec {
	for i := range t.Chargers {
		if t.Chargers[i].ID == chargerID {
			return &t.Chargers[i]
		}
	}
	return nil
}

// Connector returns the connector spec on a charger, or nil when unknown.
func (c *ChargerSpec) Connector(connectorID int) *ConnectorSpec {
	for i := range c.Connectors {
		if c.Connectors[i].ConnectorID == connectorID {
			return &c.Connectors[i]
		}
	}
	return nil
}

// GridAvailable is the headroom left for charging after the static site load.
func (t *StationTopology) GridAvailable() float64 {
	return t.GridCapacity - t.StaticLoad
}
