package allocator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-charge/ems/internal/domain"
)

func twoConnectorCharger(id string, maxPower, connectorMax float64) domain.ChargerSpec {
	return domain.ChargerSpec{
		ID:       id,
		MaxPower: maxPower,
		Connectors: []domain.ConnectorSpec{
			{ConnectorID: 1, Type: domain.ConnectorTypeCCS2, MaxPower: connectorMax},
			{ConnectorID: 2, Type: domain.ConnectorTypeCCS2, MaxPower: connectorMax},
		},
	}
}

func singleConnectorCharger(id string, maxPower, connectorMax float64) domain.ChargerSpec {
	return domain.ChargerSpec{
		ID:       id,
		MaxPower: maxPower,
		Connectors: []domain.ConnectorSpec{
			{ConnectorID: 1, Type: domain.ConnectorTypeCCS2, MaxPower: connectorMax},
		},
	}
}

func session(id, chargerID string, connectorID int, vehicleMax float64) *domain.Session {
	return &domain.Session{
		SessionID:       id,
		ChargerID:       chargerID,
		ConnectorID:     connectorID,
		State:           domain.SessionStateActive,
		VehicleMaxPower: vehicleMax,
	}
}

func TestAllocateEmpty(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
	}

	res := Allocate(nil, topo, nil)

	assert.Empty(t, res.Allocations)
	assert.Equal(t, 397.0, res.GridAvailable)
	assert.Equal(t, 1.0, res.Factor)
	assert.Zero(t, res.TotalDemand)
}

func TestTwoWayShareOnOneCharger(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers:     []domain.ChargerSpec{twoConnectorCharger("CP001", 200, 150)},
	}
	sessions := []*domain.Session{
		session("s1", "CP001", 1, 150),
		session("s2", "CP001", 2, 150),
	}

	res := Allocate(sessions, topo, nil)

	// The charger budget splits evenly; grid slack is untouched.
	assert.Equal(t, 100.0, res.Allocated("s1"))
	assert.Equal(t, 100.0, res.Allocated("s2"))
	assert.Equal(t, 1.0, res.Factor)
	assert.Equal(t, 200.0, res.TotalDemand)
}

func TestGridConstrainedFourWayShare(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			twoConnectorCharger("CP001", 200, 150),
			twoConnectorCharger("CP002", 200, 150),
		},
	}
	sessions := []*domain.Session{
		session("s1", "CP001", 1, 150),
		session("s2", "CP001", 2, 150),
		session("s3", "CP002", 1, 150),
		session("s4", "CP002", 2, 150),
	}

	res := Allocate(sessions, topo, nil)

	assert.Equal(t, 400.0, res.TotalDemand)
	assert.InDelta(t, 397.0/400.0, res.Factor, 1e-9)
	for _, a := range res.Allocations {
		assert.InDelta(t, 99.2, a.AllocatedPower, 0.15, "session %s", a.SessionID)
	}
	assert.LessOrEqual(t, res.TotalAllocated(), res.TotalAvailable+1e-9)
}

func TestBESSExtendsAvailablePower(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			singleConnectorCharger("CP001", 200, 150),
			singleConnectorCharger("CP002", 200, 150),
			singleConnectorCharger("CP003", 200, 150),
			singleConnectorCharger("CP004", 200, 150),
		},
	}
	var sessions []*domain.Session
	for i := 1; i <= 4; i++ {
		sessions = append(sessions, session(fmt.Sprintf("s%d", i), fmt.Sprintf("CP%03d", i), 1, 150))
	}
	bess := &domain.BESSStatus{AvailableDischarge: 100}

	res := Allocate(sessions, topo, bess)

	assert.Equal(t, 600.0, res.TotalDemand)
	assert.Equal(t, 497.0, res.TotalAvailable)
	assert.InDelta(t, 497.0/600.0, res.Factor, 1e-9)
	for _, a := range res.Allocations {
		assert.InDelta(t, 124.2, a.AllocatedPower, 0.15, "session %s", a.SessionID)
	}
	assert.LessOrEqual(t, res.TotalAllocated(), 497.0+1e-9)
}

func TestReallocationAfterDeparture(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			singleConnectorCharger("CP002", 200, 150),
			singleConnectorCharger("CP003", 200, 150),
			singleConnectorCharger("CP004", 200, 150),
		},
	}
	sessions := []*domain.Session{
		session("s2", "CP002", 1, 150),
		session("s3", "CP003", 1, 150),
		session("s4", "CP004", 1, 150),
	}

	res := Allocate(sessions, topo, nil)

	assert.Equal(t, 450.0, res.TotalDemand)
	for _, a := range res.Allocations {
		assert.InDelta(t, 132.3, a.AllocatedPower, 0.05, "session %s", a.SessionID)
	}
	assert.LessOrEqual(t, res.TotalAllocated(), 397.0+1e-9)
}

func TestAllocationRespectsVehicleAndConnectorBounds(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			{
				ID:       "CP001",
				MaxPower: 300,
				Connectors: []domain.ConnectorSpec{
					{ConnectorID: 1, Type: domain.ConnectorTypeCCS2, MaxPower: 50},
					{ConnectorID: 2, Type: domain.ConnectorTypeType2, MaxPower: 22},
				},
			},
		},
	}
	sessions := []*domain.Session{
		session("s1", "CP001", 1, 150), // connector caps at 50
		session("s2", "CP001", 2, 11),  // vehicle caps at 11
	}

	res := Allocate(sessions, topo, nil)

	assert.Equal(t, 50.0, res.Allocated("s1"))
	assert.Equal(t, 11.0, res.Allocated("s2"))
}

func TestUnknownChargerContributesNothing(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers:     []domain.ChargerSpec{twoConnectorCharger("CP001", 200, 150)},
	}
	sessions := []*domain.Session{
		session("s1", "CP001", 1, 150),
		session("s2", "ghost", 1, 150),
	}

	res := Allocate(sessions, topo, nil)

	assert.Equal(t, 150.0, res.Allocated("s1"))
	assert.Zero(t, res.Allocated("s2"))
}

func TestRoundingCorrectionDropsFromHighestID(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 10.1,
		StaticLoad:   0,
		Chargers: []domain.ChargerSpec{
			singleConnectorCharger("CP001", 20, 20),
			singleConnectorCharger("CP002", 20, 20),
			singleConnectorCharger("CP003", 20, 20),
		},
	}
	sessions := []*domain.Session{
		session("a", "CP001", 1, 10),
		session("b", "CP002", 1, 10),
		session("c", "CP003", 1, 10),
	}

	res := Allocate(sessions, topo, nil)

	// Per-session rounding overshoots by 0.1; the correction comes off
	// the highest session id.
	require.Len(t, res.Allocations, 3)
	assert.Equal(t, 3.4, res.Allocated("a"))
	assert.Equal(t, 3.4, res.Allocated("b"))
	assert.Equal(t, 3.3, res.Allocated("c"))
	assert.LessOrEqual(t, res.TotalAllocated(), 10.1+1e-9)
}

func TestAllocationIsDeterministic(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 100,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			twoConnectorCharger("CP001", 200, 150),
			twoConnectorCharger("CP002", 200, 150),
		},
	}
	sessions := []*domain.Session{
		session("s1", "CP001", 1, 150),
		session("s2", "CP001", 2, 150),
		session("s3", "CP002", 1, 150),
		session("s4", "CP002", 2, 150),
	}

	first := Allocate(sessions, topo, nil)
	for i := 0; i < 10; i++ {
		again := Allocate(sessions, topo, nil)
		assert.Equal(t, first.Allocations, again.Allocations)
	}
}

func TestAllocateDoesNotMutateSessions(t *testing.T) {
	topo := &domain.StationTopology{
		StationID:    "st",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers:     []domain.ChargerSpec{twoConnectorCharger("CP001", 200, 150)},
	}
	s := session("s1", "CP001", 1, 150)
	s.AllocatedPower = 42

	Allocate([]*domain.Session{s}, topo, nil)

	assert.Equal(t, 42.0, s.AllocatedPower)
}
