package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/mocks"
)

func TestSeedTopology(t *testing.T) {
	repo := mocks.NewMockStationRepository()
	topo := &domain.StationTopology{
		StationID:    "station-001",
		GridCapacity: 400,
		StaticLoad:   3,
		Chargers: []domain.ChargerSpec{
			{
				ID:       "CP001",
				MaxPower: 200,
				Connectors: []domain.ConnectorSpec{
					{ConnectorID: 1, Type: domain.ConnectorTypeCCS2, MaxPower: 150},
					{ConnectorID: 2, Type: domain.ConnectorTypeType2, MaxPower: 22},
				},
			},
			{
				ID:       "CP002",
				MaxPower: 50,
				Connectors: []domain.ConnectorSpec{
					{ConnectorID: 1, Type: domain.ConnectorTypeCCS2, MaxPower: 50},
				},
			},
		},
	}

	require.NoError(t, SeedTopology(context.Background(), repo, topo, zap.NewNop()))

	require.Len(t, repo.Stations, 1)
	assert.Equal(t, "station-001", repo.Stations[0].StationID)
	assert.Equal(t, 400.0, repo.Stations[0].GridCapacity)
	assert.NotEmpty(t, repo.Stations[0].Config)

	require.Len(t, repo.Chargers, 2)
	assert.Equal(t, 2, repo.Chargers[0].NumConnectors)
	assert.Equal(t, 1, repo.Chargers[1].NumConnectors)

	require.Len(t, repo.Connectors, 3)
	for _, cn := range repo.Connectors {
		assert.Equal(t, domain.ConnectorStatusAvailable, cn.Status)
	}
}

func TestSeedTopologyStopsOnRepositoryError(t *testing.T) {
	repo := mocks.NewMockStationRepository()
	repo.FailAll = true

	err := SeedTopology(context.Background(), repo, &domain.StationTopology{
		StationID:    "station-001",
		GridCapacity: 400,
	}, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
