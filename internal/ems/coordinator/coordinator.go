// Package coordinator serializes every session and battery event for one
// site. A single goroutine owns the registry and the BESS state; inbound
// adapters enqueue events and wait on a reply, so any interleaving of
// devices yields one coherent post-state per event.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/ems/bess"
	"github.com/electra-charge/ems/internal/ems/registry"
	"github.com/electra-charge/ems/internal/observability/telemetry"
	"github.com/electra-charge/ems/internal/ports"
)

const (
	// Re-publish a session's limit only when the allocation moved by
	// more than this during a power update.
	DefaultHysteresisKW = 0.5

	// BESS commands are re-published when the setpoint moved by more
	// than this.
	bessCommandDeadband = 0.1

	// Charge opportunities are considered only below this fraction of
	// the grid headroom.
	chargeOpportunityRatio = 0.7

	defaultQueueSize         = 256
	defaultMetricSampleEvery = 5
	defaultPersistTimeout    = 30 * time.Second
)

type Options struct {
	HysteresisKW      float64
	MetricSampleEvery int
	PersistTimeout    time.Duration
	QueueSize         int
}

func (o *Options) fill() {
	if o.HysteresisKW == 0 {
		o.HysteresisKW = DefaultHysteresisKW
	}
	if o.MetricSampleEvery == 0 {
		o.MetricSampleEvery = defaultMetricSampleEvery
	}
	if o.PersistTimeout == 0 {
		o.PersistTimeout = defaultPersistTimeout
	}
	if o.QueueSize == 0 {
		o.QueueSize = defaultQueueSize
	}
}

type Coordinator struct {
	topo *domain.StationTopology
	reg  *registry.Registry
	bess *bess.Controller // nil when the site has no battery
	sink ports.PersistenceSink
	pub  ports.CommandPublisher
	log  *zap.Logger
	opts Options

	events chan func()

	// State below is touched only by the coordinator goroutine.
	updateCount   int
	lastBESSPower float64
	lastBESSKind  domain.BESSCommandKind
	dirty         map[string]bool // sessions with a failed persistence write
}

func New(topo *domain.StationTopology, reg *registry.Registry, bessCtrl *bess.Controller, sink ports.PersistenceSink, pub ports.CommandPublisher, log *zap.Logger, opts Options) *Coordinator {
	opts.fill()
	return &Coordinator{
		topo:         topo,
		reg:          reg,
		bess:         bessCtrl,
		sink:         sink,
		pub:          pub,
		log:          log,
		opts:         opts,
		events:       make(chan func(), opts.QueueSize),
		lastBESSKind: domain.BESSCommandIdle,
		dirty:        make(map[string]bool),
	}
}

// Run consumes the event queue until ctx is cancelled. Exactly one Run per
// coordinator.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Info("coordinator started", zap.String("station_id", c.topo.StationID))
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-ctx.Done():
			c.log.Info("coordinator stopped")
			return
		}
	}
}

// do runs fn on the coordinator goroutine and waits for it. The caller's
// context bounds both the enqueue and the wait.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case c.events <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue is the fire-and-forget path for telemetry. A full queue drops
// the event; the next report replaces it anyway.
func (c *Coordinator) enqueue(fn func()) {
	select {
	case c.events <- fn:
	default:
		c.log.Warn("coordinator queue full, dropping telemetry event")
	}
}

func (c *Coordinator) StartSession(ctx context.Context, in ports.StartSessionInput) (*domain.Session, error) {
	var (
		sess *domain.Session
		err  error
	)
	if derr := c.do(ctx, func() { sess, err = c.handleStart(in) }); derr != nil {
		return nil, derr
	}
	return sess, err
}

func (c *Coordinator) StopSession(ctx context.Context, sessionID string, totalEnergy float64, reason domain.StopReason) error {
	var err error
	if derr := c.do(ctx, func() { err = c.handleStop(sessionID, totalEnergy, reason) }); derr != nil {
		return derr
	}
	return err
}

func (c *Coordinator) UpdateSession(ctx context.Context, in ports.UpdateSessionInput) (float64, error) {
	var (
		allocated float64
		err       error
	)
	if derr := c.do(ctx, func() { allocated, err = c.handleUpdate(in) }); derr != nil {
		return 0, derr
	}
	return allocated, err
}

func (c *Coordinator) HandleChargerTelemetry(in ports.ChargerTelemetryInput) {
	c.enqueue(func() { c.handleChargerTelemetry(in) })
}

func (c *Coordinator) HandleBatteryTelemetry(soc, power float64) {
	c.enqueue(func() { c.handleBatteryTelemetry(soc, power) })
}

// StationStatus builds the live snapshot from cloned state; it does not
// enter the event queue and never blocks device ingress.
func (c *Coordinator) StationStatus() ports.StationStatus {
	sessions := c.reg.Snapshot()
	totalConsumed := c.topo.StaticLoad
	totalAllocated := 0.0
	allocs := make([]domain.PowerAllocation, 0, len(sessions))
	out := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		totalConsumed += s.ConsumedPower
		totalAllocated += s.AllocatedPower
		allocs = append(allocs, domain.PowerAllocation{
			SessionID:       s.SessionID,
			ChargerID:       s.ChargerID,
			ConnectorID:     s.ConnectorID,
			AllocatedPower:  s.AllocatedPower,
			ConsumedPower:   s.ConsumedPower,
			VehicleMaxPower: s.VehicleMaxPower,
		})
		out = append(out, *s)
	}

	st := ports.StationStatus{
		StationID:       c.topo.StationID,
		Timestamp:       time.Now().UTC(),
		GridCapacity:    c.topo.GridCapacity,
		TotalAllocated:  totalAllocated,
		TotalConsumed:   totalConsumed,
		ActiveSessions:  len(sessions),
		FabricConnected: c.pub.Connected(),
		Sessions:        out,
		PowerAllocation: allocs,
	}

	bessPower := 0.0
	if c.bess != nil {
		bs := c.bess.Status()
		bessPower = bs.Power
		soc := bs.SOC
		st.BESSSOC = &soc
	}
	st.BESSPower = bessPower
	st.GridPower = totalConsumed - bessPower
	st.AvailablePower = c.topo.GridCapacity - totalConsumed + bessPower
	return st
}

// bessSnapshot is the reservoir view an event works against; the same
// snapshot feeds the allocator and the arbitration policy.
func (c *Coordinator) bessSnapshot() *domain.BESSStatus {
	if c.bess == nil {
		return nil
	}
	s := c.bess.Status()
	return &s
}

func (c *Coordinator) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opts.PersistTimeout)
}

func (c *Coordinator) updateGauges() {
	telemetry.ActiveSessions.Set(float64(c.reg.Len()))
	total := 0.0
	for _, s := range c.reg.All() {
		total += s.AllocatedPower
	}
	telemetry.TotalAllocatedKW.Set(total)
	telemetry.GridHeadroomKW.Set(c.topo.GridAvailable() - total)
	if c.bess != nil {
		bs := c.bess.Status()
		telemetry.BESSSOC.Set(bs.SOC)
		telemetry.BESSPowerKW.Set(bs.Power)
	}
}
