package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/observability/telemetry"
	"github.com/electra-charge/ems/internal/ports"
)

// SinkSettings tunes the breaker in front of the persistence sink.
type SinkSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultSinkSettings() SinkSettings {
	return SinkSettings{
		Name:             "persistence",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Sink decorates a PersistenceSink with a circuit breaker. When the
// database is down the breaker opens and writes fail fast instead of
// holding the coordinator on connection timeouts. Every failure, fast or
// slow, counts against the persistence error metric.
type Sink struct {
	inner ports.PersistenceSink
	cb    *gobreaker.CircuitBreaker
	log   *zap.Logger
}

func NewSink(inner ports.PersistenceSink, settings SinkSettings, log *zap.Logger) *Sink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("persistence breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Sink{
		inner: inner,
		cb:    cb,
		log:   log,
	}
}

func (s *Sink) execute(op string, fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		telemetry.PersistenceErrorsTotal.Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
		}
		return err
	}
	return nil
}

func (s *Sink) SaveSession(ctx context.Context, sess *domain.Session) error {
	return s.execute("save session", func() error { return s.inner.SaveSession(ctx, sess) })
}

func (s *Sink) AppendPowerUpdate(ctx context.Context, u *domain.SessionPowerUpdate) error {
	return s.execute("append power update", func() error { return s.inner.AppendPowerUpdate(ctx, u) })
}

func (s *Sink) AppendPowerMetric(ctx context.Context, m *domain.PowerMetric) error {
	return s.execute("append power metric", func() error { return s.inner.AppendPowerMetric(ctx, m) })
}

func (s *Sink) AppendBESSLog(ctx context.Context, l *domain.BESSStatusLog) error {
	return s.execute("append bess log", func() error { return s.inner.AppendBESSLog(ctx, l) })
}

func (s *Sink) AppendEvent(ctx context.Context, e *domain.Event) error {
	return s.execute("append event", func() error { return s.inner.AppendEvent(ctx, e) })
}

func (s *Sink) UpdateConnectorStatus(ctx context.Context, chargerID string, connectorID int, status domain.ConnectorStatus) error {
	return s.execute("update connector status", func() error {
		return s.inner.UpdateConnectorStatus(ctx, chargerID, connectorID, status)
	})
}
