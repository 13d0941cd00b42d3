package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/mocks"
)

func testSettings() SinkSettings {
	s := DefaultSinkSettings()
	s.FailureThreshold = 3
	s.Timeout = time.Hour // keep the breaker open for the whole test
	return s
}

func TestSinkPassesThroughWrites(t *testing.T) {
	inner := mocks.NewMockPersistenceSink()
	sink := NewSink(inner, testSettings(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sink.SaveSession(ctx, &domain.Session{SessionID: "s1"}))
	require.NoError(t, sink.AppendEvent(ctx, &domain.Event{Kind: domain.EventSessionStart}))
	require.NoError(t, sink.UpdateConnectorStatus(ctx, "CP001", 1, domain.ConnectorStatusOccupied))

	assert.Len(t, inner.Sessions, 1)
	assert.Len(t, inner.Events, 1)
	assert.Len(t, inner.ConnectorUpdates, 1)
}

func TestSinkOpensAfterConsecutiveFailures(t *testing.T) {
	inner := mocks.NewMockPersistenceSink()
	inner.FailAll = true
	sink := NewSink(inner, testSettings(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := sink.SaveSession(ctx, &domain.Session{SessionID: "s1"})
		assert.ErrorIs(t, err, domain.ErrPersistence)
	}

	// Breaker is open now: the write fails fast without reaching the store.
	inner.FailAll = false
	err := sink.SaveSession(ctx, &domain.Session{SessionID: "s1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, inner.Sessions)
}

func TestSinkRecoversAfterTimeout(t *testing.T) {
	settings := testSettings()
	settings.Timeout = 10 * time.Millisecond

	inner := mocks.NewMockPersistenceSink()
	inner.FailAll = true
	sink := NewSink(inner, settings, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, sink.SaveSession(ctx, &domain.Session{SessionID: "s1"}))
	}

	inner.FailAll = false
	time.Sleep(20 * time.Millisecond)

	// Half-open probe succeeds and the breaker closes again.
	require.NoError(t, sink.SaveSession(ctx, &domain.Session{SessionID: "s1"}))
	assert.Len(t, inner.Sessions, 1)
}
