package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/adapter/queue"
	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/observability/telemetry"
	"github.com/electra-charge/ems/internal/ports"
)

const (
	defaultPendingLimit  = 256
	defaultHandleTimeout = 30 * time.Second
)

type pendingMessage struct {
	subject string
	data    []byte
}

// Adapter bridges the message fabric and the coordinator: it decodes
// inbound device traffic into coordinator calls and publishes outbound
// commands. Undecodable messages are logged and discarded, never retried.
type Adapter struct {
	stationID string
	mq        queue.MessageQueue
	coord     ports.SessionCoordinator
	log       *zap.Logger

	mu           sync.Mutex
	pending      []pendingMessage
	pendingLimit int
}

func NewAdapter(stationID string, mq queue.MessageQueue, coord ports.SessionCoordinator, log *zap.Logger) *Adapter {
	return &Adapter{
		stationID:    stationID,
		mq:           mq,
		coord:        coord,
		log:          log,
		pendingLimit: defaultPendingLimit,
	}
}

// SetCoordinator breaks the construction cycle: the coordinator publishes
// through the adapter, the adapter feeds events to the coordinator. Call
// before Subscribe.
func (a *Adapter) SetCoordinator(coord ports.SessionCoordinator) {
	a.coord = coord
}

// Subscribe wires every inbound subject. NATS invokes handlers on
// per-subscription goroutines, so blocking on the coordinator queue here
// is safe.
func (a *Adapter) Subscribe() error {
	subs := []struct {
		subject string
		handler func(data []byte) error
	}{
		{subjectChargerTelemetry(a.stationID), a.onChargerTelemetry},
		{subjectSessionStart(a.stationID), a.onSessionStart},
		{subjectSessionStop(a.stationID), a.onSessionStop},
		{subjectSessionUpdate(a.stationID), a.onSessionUpdate},
		{subjectBESSStatus(a.stationID), a.onBESSStatus},
		{subjectBESSTelemetry(a.stationID), a.onBESSStatus},
	}
	for _, s := range subs {
		if err := a.mq.Subscribe(s.subject, s.handler); err != nil {
			return err
		}
		a.log.Info("subscribed", zap.String("subject", s.subject))
	}
	return nil
}

func (a *Adapter) Connected() bool {
	return a.mq.IsConnected()
}

func (a *Adapter) onChargerTelemetry(data []byte) error {
	var msg ChargerTelemetryMessage
	if err := a.decode("charger.telemetry", data, &msg); err != nil {
		return nil
	}
	telemetry.FabricMessagesTotal.WithLabelValues("charger.telemetry", "in").Inc()
	a.coord.HandleChargerTelemetry(ports.ChargerTelemetryInput{
		ChargerID:   msg.ChargerID,
		ConnectorID: msg.ConnectorID,
		SessionID:   msg.SessionID,
		PowerW:      msg.Power,
		VehicleSOC:  msg.VehicleSOC,
		Timestamp:   msg.Timestamp,
	})
	return nil
}

func (a *Adapter) onSessionStart(data []byte) error {
	var msg SessionStartMessage
	if err := a.decode("session.start", data, &msg); err != nil {
		return nil
	}
	telemetry.FabricMessagesTotal.WithLabelValues("session.start", "in").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), defaultHandleTimeout)
	defer cancel()
	_, err := a.coord.StartSession(ctx, ports.StartSessionInput{
		SessionID:       msg.SessionID,
		ChargerID:       msg.ChargerID,
		ConnectorID:     msg.ConnectorID,
		VehicleMaxPower: msg.VehicleMaxPower,
		UserID:          msg.UserID,
		RFIDTag:         msg.RFIDTag,
		Timestamp:       msg.Timestamp,
	})
	if err != nil {
		a.log.Warn("session start rejected",
			zap.String("sessionId", msg.SessionID),
			zap.String("chargerId", msg.ChargerID),
			zap.Error(err))
	}
	return nil
}

func (a *Adapter) onSessionStop(data []byte) error {
	var msg SessionStopMessage
	if err := a.decode("session.stop", data, &msg); err != nil {
		return nil
	}
	telemetry.FabricMessagesTotal.WithLabelValues("session.stop", "in").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), defaultHandleTimeout)
	defer cancel()
	err := a.coord.StopSession(ctx, msg.SessionID, msg.TotalEnergy, domain.StopReason(msg.Reason))
	if errors.Is(err, domain.ErrSessionNotFound) {
		a.log.Warn("stop for unknown session", zap.String("sessionId", msg.SessionID))
		return nil
	}
	return err
}

func (a *Adapter) onSessionUpdate(data []byte) error {
	var msg SessionUpdateMessage
	if err := a.decode("session.update", data, &msg); err != nil {
		return nil
	}
	telemetry.FabricMessagesTotal.WithLabelValues("session.update", "in").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), defaultHandleTimeout)
	defer cancel()
	_, err := a.coord.UpdateSession(ctx, ports.UpdateSessionInput{
		SessionID:       msg.SessionID,
		ConsumedPower:   msg.ConsumedPower,
		VehicleMaxPower: msg.VehicleMaxPower,
		TotalEnergy:     msg.EnergyDelivered,
		VehicleSOC:      msg.VehicleSOC,
		Timestamp:       msg.Timestamp,
	})
	switch {
	case errors.Is(err, domain.ErrStaleUpdate):
		a.log.Debug("stale session update", zap.String("sessionId", msg.SessionID))
		return nil
	case errors.Is(err, domain.ErrSessionNotFound):
		a.log.Warn("update for unknown session", zap.String("sessionId", msg.SessionID))
		return nil
	}
	return err
}

func (a *Adapter) onBESSStatus(data []byte) error {
	var msg BESSStatusMessage
	if err := a.decode("bess.status", data, &msg); err != nil {
		return nil
	}
	telemetry.FabricMessagesTotal.WithLabelValues("bess.status", "in").Inc()
	a.coord.HandleBatteryTelemetry(msg.SOC, msg.Power)
	return nil
}

func (a *Adapter) decode(topic string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		telemetry.ProtocolErrorsTotal.Inc()
		a.log.Error("undecodable message discarded",
			zap.String("topic", topic),
			zap.Int("bytes", len(data)),
			zap.Error(err))
		return fmt.Errorf("decode %s: %w", topic, domain.ErrProtocolError)
	}
	return nil
}

// PublishPowerLimit tells a charger the new offered power for a connector.
func (a *Adapter) PublishPowerLimit(chargerID string, connectorID int, limitKW float64) error {
	cmd := PowerLimitCommand{
		Timestamp:   time.Now().UTC(),
		ChargerID:   chargerID,
		ConnectorID: connectorID,
		PowerLimit:  limitKW,
		Priority:    "normal",
	}
	return a.publish(subjectPowerLimit(a.stationID, chargerID, connectorID), "power_limit", cmd)
}

func (a *Adapter) PublishBESSCommand(cmd domain.BESSCommand) error {
	msg := BESSCommandMessage{
		Timestamp: time.Now().UTC(),
		Command:   string(cmd.Command),
		Power:     cmd.Power,
	}
	return a.publish(subjectBESSCommand(a.stationID), "bess.command", msg)
}

func (a *Adapter) PublishStartCommand(s *domain.Session) error {
	msg := StartCommand{
		Timestamp:       time.Now().UTC(),
		SessionID:       s.SessionID,
		ConnectorID:     s.ConnectorID,
		VehicleMaxPower: s.VehicleMaxPower,
	}
	return a.publish(subjectStartCommand(a.stationID, s.ChargerID), "start_command", msg)
}

func (a *Adapter) publish(subject, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !a.mq.IsConnected() {
		a.buffer(subject, data)
		return nil
	}
	a.flushPending()
	if err := a.mq.Publish(subject, data); err != nil {
		a.buffer(subject, data)
		return err
	}
	telemetry.FabricMessagesTotal.WithLabelValues(topic, "out").Inc()
	return nil
}

// buffer holds a command until the broker comes back. The buffer is
// bounded; the oldest command is dropped first because a superseding
// setpoint is already behind it.
func (a *Adapter) buffer(subject string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) >= a.pendingLimit {
		dropped := a.pending[0]
		a.pending = a.pending[1:]
		a.log.Warn("outbound buffer full, dropping oldest", zap.String("subject", dropped.subject))
	}
	a.pending = append(a.pending, pendingMessage{subject: subject, data: data})
}

func (a *Adapter) flushPending() {
	a.mu.Lock()
	backlog := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, m := range backlog {
		if err := a.mq.Publish(m.subject, m.data); err != nil {
			a.mu.Lock()
			a.pending = append(a.pending, m)
			a.mu.Unlock()
			return
		}
		telemetry.FabricMessagesTotal.WithLabelValues("buffered", "out").Inc()
	}
	if len(backlog) > 0 {
		a.log.Info("flushed buffered commands", zap.Int("count", len(backlog)))
	}
}
