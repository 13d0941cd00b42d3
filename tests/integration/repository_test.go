//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-charge/ems/internal/adapter/storage/postgres"
	"github.com/electra-charge/ems/internal/domain"
)

func TestTopologyUpsertIsIdempotent(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewEMSRepository(env.DB, env.Logger)
	ctx := context.Background()

	station := &domain.Station{
		StationID:    "station-001",
		GridCapacity: 150,
		StaticLoad:   3,
		Config:       []byte(`{"stationId":"station-001"}`),
	}
	require.NoError(t, repo.UpsertStation(ctx, station))

	station.GridCapacity = 200
	require.NoError(t, repo.UpsertStation(ctx, &domain.Station{
		StationID:    "station-001",
		GridCapacity: 200,
		StaticLoad:   3,
		Config:       []byte(`{"stationId":"station-001"}`),
	}))

	var count int64
	require.NoError(t, env.DB.Model(&domain.Station{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var got domain.Station
	require.NoError(t, env.DB.First(&got, "station_id = ?", "station-001").Error)
	assert.Equal(t, 200.0, got.GridCapacity)
}

func TestConnectorStatusRoundTrip(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewEMSRepository(env.DB, env.Logger)
	ctx := context.Background()

	require.NoError(t, repo.UpsertCharger(ctx, &domain.Charger{
		StationID:     "station-001",
		ChargerID:     "charger-01",
		MaxPower:      150,
		NumConnectors: 2,
	}))
	require.NoError(t, repo.UpsertConnector(ctx, &domain.Connector{
		ChargerID:   "charger-01",
		ConnectorID: 1,
		Type:        domain.ConnectorTypeCCS2,
		MaxPower:    150,
		Status:      domain.ConnectorStatusAvailable,
	}))

	require.NoError(t, repo.UpdateConnectorStatus(ctx, "charger-01", 1, domain.ConnectorStatusOccupied))

	connectors, err := repo.FindConnectors(ctx, "charger-01")
	require.NoError(t, err)
	require.Len(t, connectors, 1)
	assert.Equal(t, domain.ConnectorStatusOccupied, connectors[0].Status)
}

func TestSessionLifecyclePersistence(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewEMSRepository(env.DB, env.Logger)
	ctx := context.Background()

	sess := &domain.Session{
		SessionID:       "sess-1",
		ChargerID:       "charger-01",
		ConnectorID:     1,
		State:           domain.SessionStateActive,
		StartTime:       time.Now().UTC(),
		VehicleMaxPower: 50,
		AllocatedPower:  50,
		OfferedPower:    50,
	}
	require.NoError(t, repo.SaveSession(ctx, sess))

	active, err := repo.FindActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "sess-1", active[0].SessionID)

	// Same primary key updates in place.
	sess.ConsumedPower = 42
	require.NoError(t, repo.SaveSession(ctx, sess))

	got, err := repo.FindSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.ConsumedPower)

	end := time.Now().UTC()
	sess.State = domain.SessionStateCompleted
	sess.EndTime = &end
	require.NoError(t, repo.SaveSession(ctx, sess))

	active, err = repo.FindActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestFindSessionNotFound(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewEMSRepository(env.DB, env.Logger)

	_, err := repo.FindSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAppendOnlyTables(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewEMSRepository(env.DB, env.Logger)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.AppendPowerUpdate(ctx, &domain.SessionPowerUpdate{
		SessionID:     "sess-1",
		Timestamp:     now,
		ConsumedPower: 30,
	}))
	require.NoError(t, repo.AppendPowerMetric(ctx, &domain.PowerMetric{
		StationID: "station-001",
		Timestamp: now,
	}))
	require.NoError(t, repo.AppendBESSLog(ctx, &domain.BESSStatusLog{
		StationID: "station-001",
		Timestamp: now,
		Mode:      domain.BESSModeIdle,
		SOC:       80,
	}))
	require.NoError(t, repo.AppendEvent(ctx, &domain.Event{
		Timestamp:   now,
		Kind:        domain.EventSessionStart,
		Description: "session started",
		Payload:     []byte(`{"session_id":"sess-1"}`),
	}))

	var events []domain.Event
	require.NoError(t, env.DB.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSessionStart, events[0].Kind)
}
