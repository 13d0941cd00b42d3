package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-charge/ems/internal/domain"
)

func activeSession(id, chargerID string, connectorID int) *domain.Session {
	return &domain.Session{
		SessionID:   id,
		ChargerID:   chargerID,
		ConnectorID: connectorID,
		State:       domain.SessionStateActive,
	}
}

func TestAddGetRemove(t *testing.T) {
	r := New()

	_, ok := r.Get("s1")
	assert.False(t, ok)

	s := activeSession("s1", "CP001", 1)
	r.Add(s)

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	r.Remove("s1")
	_, ok = r.Get("s1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestConnectorOccupied(t *testing.T) {
	r := New()
	r.Add(activeSession("s1", "CP001", 1))

	assert.True(t, r.ConnectorOccupied("CP001", 1))
	assert.False(t, r.ConnectorOccupied("CP001", 2))
	assert.False(t, r.ConnectorOccupied("CP002", 1))
}

func TestActiveOnCharger(t *testing.T) {
	r := New()
	r.Add(activeSession("s1", "CP001", 1))
	r.Add(activeSession("s2", "CP001", 2))
	r.Add(activeSession("s3", "CP002", 1))

	assert.Equal(t, 2, r.ActiveOnCharger("CP001"))
	assert.Equal(t, 1, r.ActiveOnCharger("CP002"))
	assert.Zero(t, r.ActiveOnCharger("CP003"))
}

func TestAllOrderedBySessionID(t *testing.T) {
	r := New()
	r.Add(activeSession("s3", "CP002", 1))
	r.Add(activeSession("s1", "CP001", 1))
	r.Add(activeSession("s2", "CP001", 2))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].SessionID)
	assert.Equal(t, "s2", all[1].SessionID)
	assert.Equal(t, "s3", all[2].SessionID)
}

func TestSnapshotReturnsClones(t *testing.T) {
	r := New()
	live := activeSession("s1", "CP001", 1)
	live.AllocatedPower = 50
	r.Add(live)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.NotSame(t, live, snap[0])

	snap[0].AllocatedPower = 99
	assert.Equal(t, 50.0, live.AllocatedPower)
}

func TestTotalConsumed(t *testing.T) {
	r := New()
	assert.Zero(t, r.TotalConsumed())

	s1 := activeSession("s1", "CP001", 1)
	s1.ConsumedPower = 30
	s2 := activeSession("s2", "CP001", 2)
	s2.ConsumedPower = 12.5
	r.Add(s1)
	r.Add(s2)

	assert.Equal(t, 42.5, r.TotalConsumed())
}
