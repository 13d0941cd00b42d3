package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTopologyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTopology(t *testing.T) {
	path := writeTopologyFile(t, `{
		"stationId": "station-001",
		"gridCapacity": 400,
		"staticLoad": 5,
		"chargers": [
			{
				"id": "CP001",
				"maxPower": 200,
				"connectors": [
					{"connector_id": 1, "connector_type": "ccs2", "max_power": 150},
					{"connector_id": 2, "connector_type": "type2", "max_power": 22}
				]
			}
		],
		"battery": {
			"initialCapacity": 200,
			"power": 100,
			"minSOC": 15,
			"maxSOC": 90
		}
	}`)

	topo, err := LoadTopology(path)
	require.NoError(t, err)

	assert.Equal(t, "station-001", topo.StationID)
	assert.Equal(t, 400.0, topo.GridCapacity)
	assert.Equal(t, 5.0, topo.StaticLoad)
	assert.Equal(t, 395.0, topo.GridAvailable())

	charger := topo.Charger("CP001")
	require.NotNil(t, charger)
	assert.Equal(t, 200.0, charger.MaxPower)
	require.NotNil(t, charger.Connector(2))
	assert.Equal(t, 22.0, charger.Connector(2).MaxPower)
	assert.Nil(t, charger.Connector(3))
	assert.Nil(t, topo.Charger("ghost"))

	require.NotNil(t, topo.Battery)
	assert.Equal(t, 15.0, topo.Battery.MinSOC)
	assert.Equal(t, 90.0, topo.Battery.MaxSOC)
}

func TestLoadTopologyDefaults(t *testing.T) {
	path := writeTopologyFile(t, `{
		"stationId": "station-001",
		"gridCapacity": 150,
		"chargers": [],
		"battery": {"initialCapacity": 100, "power": 50}
	}`)

	topo, err := LoadTopology(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultStaticLoad, topo.StaticLoad)
	assert.Equal(t, DefaultMinSOC, topo.Battery.MinSOC)
	assert.Equal(t, DefaultMaxSOC, topo.Battery.MaxSOC)
}

func TestLoadTopologyMissingFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadTopologyBadJSON(t *testing.T) {
	path := writeTopologyFile(t, `{"stationId": `)
	_, err := LoadTopology(path)
	assert.Error(t, err)
}

func TestTopologyValidation(t *testing.T) {
	valid := func() StationTopology {
		return StationTopology{
			StationID:    "station-001",
			GridCapacity: 400,
			StaticLoad:   3,
			Chargers: []ChargerSpec{
				{
					ID:       "CP001",
					MaxPower: 200,
					Connectors: []ConnectorSpec{
						{ConnectorID: 1, Type: ConnectorTypeCCS2, MaxPower: 150},
					},
				},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*StationTopology)
	}{
		{"missing station id", func(t *StationTopology) { t.StationID = "" }},
		{"zero grid capacity", func(t *StationTopology) { t.GridCapacity = 0 }},
		{"negative static load", func(t *StationTopology) { t.StaticLoad = -1 }},
		{"charger without id", func(t *StationTopology) { t.Chargers[0].ID = "" }},
		{"zero charger power", func(t *StationTopology) { t.Chargers[0].MaxPower = 0 }},
		{"zero connector power", func(t *StationTopology) { t.Chargers[0].Connectors[0].MaxPower = 0 }},
		{"duplicate connector", func(t *StationTopology) {
			t.Chargers[0].Connectors = append(t.Chargers[0].Connectors,
				ConnectorSpec{ConnectorID: 1, Type: ConnectorTypeCCS2, MaxPower: 150})
		}},
		{"battery without capacity", func(t *StationTopology) {
			t.Battery = &BatteryParams{MaxPowerKW: 50, MinSOC: 10, MaxSOC: 100}
		}},
		{"inverted soc bounds", func(t *StationTopology) {
			t.Battery = &BatteryParams{CapacityKWh: 100, MaxPowerKW: 50, MinSOC: 90, MaxSOC: 20}
		}},
		{"soc above 100", func(t *StationTopology) {
			t.Battery = &BatteryParams{CapacityKWh: 100, MaxPowerKW: 50, MinSOC: 10, MaxSOC: 120}
		}},
	}

	require.NoError(t, func() error { topo := valid(); return topo.Validate() }())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			topo := valid()
			tc.mutate(&topo)
			assert.Error(t, topo.Validate())
		})
	}
}
