package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/ems/allocator"
	"github.com/electra-charge/ems/internal/observability/telemetry"
	"github.com/electra-charge/ems/internal/ports"
)

func (c *Coordinator) handleStart(in ports.StartSessionInput) (*domain.Session, error) {
	charger := c.topo.Charger(in.ChargerID)
	if charger == nil {
		return nil, fmt.Errorf("charger %s: %w", in.ChargerID, domain.ErrUnknownCharger)
	}
	if charger.Connector(in.ConnectorID) == nil {
		return nil, fmt.Errorf("charger %s connector %d: %w", in.ChargerID, in.ConnectorID, domain.ErrUnknownConnector)
	}
	if c.reg.ConnectorOccupied(in.ChargerID, in.ConnectorID) {
		return nil, fmt.Errorf("charger %s connector %d: %w", in.ChargerID, in.ConnectorID, domain.ErrConnectorBusy)
	}

	// Fabric-originated starts carry the device's session id. A start
	// without one came over REST, so the charger must be told to begin
	// delivery once the session is registered.
	operatorStart := in.SessionID == ""

	now := time.Now().UTC()
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}

	sess := &domain.Session{
		SessionID:       in.SessionID,
		ChargerID:       in.ChargerID,
		ConnectorID:     in.ConnectorID,
		State:           domain.SessionStateActive,
		StartTime:       now,
		VehicleMaxPower: in.VehicleMaxPower,
		UserID:          in.UserID,
		RFIDTag:         in.RFIDTag,
		LastUpdate:      ts,
	}
	c.reg.Add(sess)

	res := allocator.Allocate(c.reg.All(), c.topo, nil)
	c.applyAllocations(res)

	ctx, cancel := c.persistCtx()
	defer cancel()

	c.persistSink(ctx, sess.SessionID, func() error {
		return c.sink.UpdateConnectorStatus(ctx, in.ChargerID, in.ConnectorID, domain.ConnectorStatusOccupied)
	})
	c.persistAllocated(ctx, res)
	c.appendEvent(ctx, domain.EventSessionStart,
		fmt.Sprintf("Session %s started on %s:%d", sess.SessionID, sess.ChargerID, sess.ConnectorID),
		map[string]any{
			"session_id":        sess.SessionID,
			"charger_id":        sess.ChargerID,
			"connector_id":      sess.ConnectorID,
			"allocated_power":   sess.AllocatedPower,
			"active_on_charger": c.reg.ActiveOnCharger(sess.ChargerID),
		})
	c.appendPowerMetric(ctx, res)

	c.runBESSPolicy(ctx, res, false)
	c.publishAllLimits(res)
	if operatorStart {
		if err := c.pub.PublishStartCommand(sess); err != nil {
			c.log.Error("failed to publish start command",
				zap.String("session_id", sess.SessionID), zap.Error(err))
		}
	}
	c.updateGauges()

	c.log.Info("session started",
		zap.String("session_id", sess.SessionID),
		zap.String("charger_id", sess.ChargerID),
		zap.Int("connector_id", sess.ConnectorID),
		zap.Float64("allocated_kw", sess.AllocatedPower),
	)
	return sess.Clone(), nil
}

func (c *Coordinator) handleStop(sessionID string, totalEnergy float64, reason domain.StopReason) error {
	sess, ok := c.reg.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}

	now := time.Now().UTC()
	sess.State = domain.SessionStateCompleted
	sess.EndTime = &now
	sess.TotalEnergy = totalEnergy
	c.reg.Remove(sessionID)

	res := allocator.Allocate(c.reg.All(), c.topo, nil)
	c.applyAllocations(res)

	ctx, cancel := c.persistCtx()
	defer cancel()

	c.persistSink(ctx, sessionID, func() error { return c.sink.SaveSession(ctx, sess) })
	c.persistSink(ctx, sessionID, func() error {
		return c.sink.UpdateConnectorStatus(ctx, sess.ChargerID, sess.ConnectorID, domain.ConnectorStatusAvailable)
	})
	c.persistAllocated(ctx, res)
	c.appendEvent(ctx, domain.EventSessionStop,
		fmt.Sprintf("Session %s stopped (%s)", sessionID, reason),
		map[string]any{"session_id": sessionID, "energy": totalEnergy, "reason": string(reason)})
	if len(res.Allocations) > 0 {
		c.appendEvent(ctx, domain.EventReallocation,
			fmt.Sprintf("Reallocated %d sessions after %s stopped", len(res.Allocations), sessionID),
			map[string]any{"sessions": len(res.Allocations), "total_allocated": res.TotalAllocated()})
	}
	c.appendPowerMetric(ctx, res)

	c.runBESSPolicy(ctx, res, false)
	c.publishAllLimits(res)
	telemetry.EnergyDeliveredTotal.Add(totalEnergy)
	c.updateGauges()

	c.log.Info("session stopped",
		zap.String("session_id", sessionID),
		zap.Float64("total_energy_kwh", totalEnergy),
		zap.String("reason", string(reason)),
	)
	return nil
}

func (c *Coordinator) handleUpdate(in ports.UpdateSessionInput) (float64, error) {
	sess, ok := c.reg.Get(in.SessionID)
	if !ok {
		return 0, fmt.Errorf("session %s: %w", in.SessionID, domain.ErrSessionNotFound)
	}

	if !in.Timestamp.IsZero() && in.Timestamp.Before(sess.LastUpdate) {
		c.log.Warn("stale session update dropped",
			zap.String("session_id", in.SessionID),
			zap.Time("message_ts", in.Timestamp),
			zap.Time("last_processed_ts", sess.LastUpdate),
		)
		telemetry.StaleUpdatesTotal.Inc()
		return sess.AllocatedPower, fmt.Errorf("session %s: %w", in.SessionID, domain.ErrStaleUpdate)
	}
	if in.TotalEnergy < sess.TotalEnergy {
		c.log.Warn("total energy went backward, update rejected",
			zap.String("session_id", in.SessionID),
			zap.Float64("stored_kwh", sess.TotalEnergy),
			zap.Float64("incoming_kwh", in.TotalEnergy),
		)
		telemetry.StaleUpdatesTotal.Inc()
		return sess.AllocatedPower, fmt.Errorf("session %s: %w", in.SessionID, domain.ErrStaleUpdate)
	}
	if in.VehicleSOC != nil && sess.VehicleSOC != nil && *in.VehicleSOC < *sess.VehicleSOC {
		c.log.Warn("vehicle soc went backward, update rejected",
			zap.String("session_id", in.SessionID),
			zap.Float64("stored_soc", *sess.VehicleSOC),
			zap.Float64("incoming_soc", *in.VehicleSOC),
		)
		telemetry.StaleUpdatesTotal.Inc()
		return sess.AllocatedPower, fmt.Errorf("session %s: %w", in.SessionID, domain.ErrStaleUpdate)
	}

	prevOffered := make(map[string]float64, c.reg.Len())
	for _, s := range c.reg.All() {
		prevOffered[s.SessionID] = s.OfferedPower
	}

	sess.ConsumedPower = in.ConsumedPower
	sess.VehicleMaxPower = in.VehicleMaxPower
	sess.TotalEnergy = in.TotalEnergy
	if in.VehicleSOC != nil {
		soc := *in.VehicleSOC
		sess.VehicleSOC = &soc
	}
	if !in.Timestamp.IsZero() {
		sess.LastUpdate = in.Timestamp
	}

	snapshot := c.bessSnapshot()
	res := allocator.Allocate(c.reg.All(), c.topo, snapshot)
	c.applyAllocations(res)
	newAllocated := res.Allocated(in.SessionID)

	ctx, cancel := c.persistCtx()
	defer cancel()

	c.persistSink(ctx, in.SessionID, func() error { return c.sink.SaveSession(ctx, sess) })
	c.persistSink(ctx, in.SessionID, func() error {
		return c.sink.AppendPowerUpdate(ctx, &domain.SessionPowerUpdate{
			SessionID:       in.SessionID,
			Timestamp:       time.Now().UTC(),
			ConsumedPower:   in.ConsumedPower,
			AllocatedPower:  newAllocated,
			VehicleMaxPower: in.VehicleMaxPower,
		})
	})
	c.retryDirty(ctx)

	c.updateCount++
	if c.updateCount%c.opts.MetricSampleEvery == 0 {
		c.appendPowerMetric(ctx, res)
	}

	c.publishChangedLimits(res, prevOffered)

	c.runBESSPolicy(ctx, res, true)
	c.updateGauges()

	c.log.Debug("session updated",
		zap.String("session_id", in.SessionID),
		zap.Float64("consumed_kw", in.ConsumedPower),
		zap.Float64("allocated_kw", newAllocated),
	)
	return newAllocated, nil
}

func (c *Coordinator) handleChargerTelemetry(in ports.ChargerTelemetryInput) {
	if in.SessionID == "" {
		return
	}
	sess, ok := c.reg.Get(in.SessionID)
	if !ok {
		return
	}
	sess.ConsumedPower = in.PowerW / 1000
	if in.VehicleSOC != nil && (sess.VehicleSOC == nil || *in.VehicleSOC >= *sess.VehicleSOC) {
		soc := *in.VehicleSOC
		sess.VehicleSOC = &soc
	}
}

func (c *Coordinator) handleBatteryTelemetry(soc, power float64) {
	if c.bess == nil {
		return
	}
	c.bess.UpdateFromTelemetry(soc, power)

	ctx, cancel := c.persistCtx()
	defer cancel()
	bs := c.bess.Status()
	if err := c.sink.AppendBESSLog(ctx, &domain.BESSStatusLog{
		StationID:          c.topo.StationID,
		Timestamp:          bs.Timestamp,
		Mode:               bs.Mode,
		Power:              bs.Power,
		SOC:                bs.SOC,
		Capacity:           bs.CapacityKWh,
		AvailableEnergy:    bs.AvailableEnergy,
		AvailableDischarge: bs.AvailableDischarge,
		AvailableCharge:    bs.AvailableCharge,
	}); err != nil {
		c.log.Error("failed to persist bess status", zap.Error(err))
	}
	c.updateGauges()
}

// applyAllocations writes the allocator's output onto the live sessions;
// offered mirrors allocated after every transition.
func (c *Coordinator) applyAllocations(res allocator.Result) {
	for _, a := range res.Allocations {
		if s, ok := c.reg.Get(a.SessionID); ok {
			s.AllocatedPower = a.AllocatedPower
			s.OfferedPower = a.AllocatedPower
		}
	}
}

// runBESSPolicy arbitrates charge/discharge/idle after a session event and
// publishes the command. With deadband set, unchanged setpoints stay off
// the wire.
func (c *Coordinator) runBESSPolicy(ctx context.Context, res allocator.Result, deadband bool) {
	if c.bess == nil {
		return
	}

	gridAvailable := c.topo.GridAvailable()
	totalConsumed := c.reg.TotalConsumed()

	var cmd domain.BESSCommand
	switch {
	case res.TotalDemand > gridAvailable:
		boost := c.bess.CalculateBoostPower(gridAvailable, res.TotalDemand)
		if boost > 0 {
			cmd = c.bess.SetDischarge(boost)
		} else {
			cmd = c.bess.SetIdle()
		}
	case totalConsumed < gridAvailable*chargeOpportunityRatio:
		charge := c.bess.CalculateChargeOpportunity(gridAvailable, totalConsumed)
		if charge > 0 {
			cmd = c.bess.SetCharge(charge)
		} else {
			cmd = c.bess.SetIdle()
		}
	default:
		cmd = c.bess.SetIdle()
	}

	signed := cmd.Power
	if cmd.Command == domain.BESSCommandCharge {
		signed = -cmd.Power
	}
	if deadband && cmd.Command == c.lastBESSKind && math.Abs(signed-c.lastBESSPower) <= bessCommandDeadband {
		return
	}
	c.lastBESSPower = signed
	c.lastBESSKind = cmd.Command

	if err := c.pub.PublishBESSCommand(cmd); err != nil {
		c.log.Error("failed to publish bess command", zap.Error(err))
	}

	switch cmd.Command {
	case domain.BESSCommandDischarge:
		c.appendEvent(ctx, domain.EventBESSBoost,
			fmt.Sprintf("BESS boosting %.1fkW", cmd.Power),
			map[string]any{"power": cmd.Power})
	case domain.BESSCommandCharge:
		c.appendEvent(ctx, domain.EventBESSCharge,
			fmt.Sprintf("BESS charging at %.1fkW", cmd.Power),
			map[string]any{"power": cmd.Power})
	}

	c.log.Info("bess command",
		zap.String("command", string(cmd.Command)),
		zap.Float64("power_kw", cmd.Power),
	)
}

func (c *Coordinator) publishAllLimits(res allocator.Result) {
	for _, a := range res.Allocations {
		if err := c.pub.PublishPowerLimit(a.ChargerID, a.ConnectorID, a.AllocatedPower); err != nil {
			c.log.Error("failed to publish power limit",
				zap.String("session_id", a.SessionID), zap.Error(err))
		}
	}
}

// publishChangedLimits applies the update-path hysteresis: a session gets
// a fresh limit on the wire only when its allocation moved beyond the
// hysteresis relative to the limit published before this event.
func (c *Coordinator) publishChangedLimits(res allocator.Result, prevOffered map[string]float64) {
	for _, a := range res.Allocations {
		if math.Abs(a.AllocatedPower-prevOffered[a.SessionID]) <= c.opts.HysteresisKW {
			continue
		}
		if err := c.pub.PublishPowerLimit(a.ChargerID, a.ConnectorID, a.AllocatedPower); err != nil {
			c.log.Error("failed to publish power limit",
				zap.String("session_id", a.SessionID), zap.Error(err))
		}
		c.log.Info("power limit updated",
			zap.String("session_id", a.SessionID),
			zap.Float64("limit_kw", a.AllocatedPower),
		)
	}
}

// persistAllocated saves every session the allocation pass touched.
func (c *Coordinator) persistAllocated(ctx context.Context, res allocator.Result) {
	for _, a := range res.Allocations {
		if s, ok := c.reg.Get(a.SessionID); ok {
			id := a.SessionID
			sess := s
			c.persistSink(ctx, id, func() error { return c.sink.SaveSession(ctx, sess) })
		}
	}
}

// persistSink runs one write; on failure the session is flagged and the
// write is retried on the next event that touches it. In-memory state
// stays authoritative either way.
func (c *Coordinator) persistSink(ctx context.Context, sessionID string, write func() error) {
	if err := write(); err != nil {
		c.log.Error("persistence write failed",
			zap.String("session_id", sessionID), zap.Error(err))
		if sessionID != "" {
			c.dirty[sessionID] = true
		}
		return
	}
	delete(c.dirty, sessionID)
}

// retryDirty re-saves sessions whose last write failed.
func (c *Coordinator) retryDirty(ctx context.Context) {
	for id := range c.dirty {
		sess, ok := c.reg.Get(id)
		if !ok {
			delete(c.dirty, id)
			continue
		}
		if err := c.sink.SaveSession(ctx, sess); err != nil {
			c.log.Warn("persistence retry failed", zap.String("session_id", id), zap.Error(err))
			continue
		}
		delete(c.dirty, id)
	}
}

func (c *Coordinator) appendEvent(ctx context.Context, kind domain.EventKind, description string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	if err := c.sink.AppendEvent(ctx, &domain.Event{
		Timestamp:   time.Now().UTC(),
		Kind:        kind,
		Description: description,
		Payload:     raw,
	}); err != nil {
		c.log.Error("failed to persist audit event", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (c *Coordinator) appendPowerMetric(ctx context.Context, res allocator.Result) {
	totalConsumed := c.reg.TotalConsumed() + c.topo.StaticLoad
	bessPower := 0.0
	if c.bess != nil {
		bessPower = c.bess.Status().Power
	}
	m := &domain.PowerMetric{
		StationID:      c.topo.StationID,
		Timestamp:      time.Now().UTC(),
		GridPower:      totalConsumed - bessPower,
		BESSPower:      bessPower,
		TotalAllocated: res.TotalAllocated(),
		TotalConsumed:  totalConsumed,
		AvailablePower: c.topo.GridCapacity - totalConsumed + bessPower,
		ActiveSessions: c.reg.Len(),
	}
	if err := c.sink.AppendPowerMetric(ctx, m); err != nil {
		c.log.Error("failed to persist power metric", zap.Error(err))
	}
}
