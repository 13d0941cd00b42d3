// Package bess models the on-site battery and decides when to boost
// delivery from it or recharge it from spare grid capacity.
package bess

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
)

const (
	// Below this charge power the battery stays idle instead of cycling.
	DefaultMinChargePower = 5.0

	// Commands and mode detection ignore power moves smaller than this.
	powerDeadband = 0.1
)

// Controller holds the reservoir state. The coordinator goroutine is the
// only caller of the mutating methods; the mutex covers Status reads from
// the HTTP path.
type Controller struct {
	mu sync.Mutex

	params         domain.BatteryParams
	soc            float64
	power          float64 // positive = discharging, negative = charging
	mode           domain.BESSMode
	minChargePower float64

	log *zap.Logger
}

func NewController(params domain.BatteryParams, log *zap.Logger) *Controller {
	return &Controller{
		params:         params,
		soc:            params.MaxSOC,
		mode:           domain.BESSModeIdle,
		minChargePower: DefaultMinChargePower,
		log:            log,
	}
}

// SetMinChargePower overrides the minimum useful charge threshold.
func (c *Controller) SetMinChargePower(kw float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minChargePower = kw
}

// Status snapshots the reservoir. The coordinator takes one snapshot per
// event and hands the same snapshot to the allocator and the policy.
func (c *Controller) Status() domain.BESSStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.BESSStatus{
		Timestamp:          time.Now().UTC(),
		Mode:               c.mode,
		Power:              c.power,
		SOC:                c.soc,
		CapacityKWh:        c.params.CapacityKWh,
		AvailableEnergy:    c.availableEnergyLocked(),
		AvailableDischarge: c.availableDischargeLocked(),
		AvailableCharge:    c.availableChargeLocked(),
	}
}

func (c *Controller) availableEnergyLocked() float64 {
	usable := math.Max(0, c.soc-c.params.MinSOC)
	return usable / 100 * c.params.CapacityKWh
}

// availableDischargeLocked bounds the discharge power by the nameplate and
// by one hour of drain of the usable energy.
func (c *Controller) availableDischargeLocked() float64 {
	if c.soc <= c.params.MinSOC {
		return 0
	}
	return math.Min(c.params.MaxPowerKW, c.availableEnergyLocked())
}

func (c *Controller) availableChargeLocked() float64 {
	if c.soc >= c.params.MaxSOC {
		return 0
	}
	headroom := (c.params.MaxSOC - c.soc) / 100 * c.params.CapacityKWh
	return math.Min(c.params.MaxPowerKW, headroom)
}

// CalculateBoostPower returns the discharge power needed to cover the gap
// between session demand and grid headroom, bounded by what the reservoir
// can deliver.
func (c *Controller) CalculateBoostPower(gridAvailable, totalDemand float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	shortage := math.Max(0, totalDemand-gridAvailable)
	if shortage == 0 {
		return 0
	}
	boost := math.Min(shortage, c.availableDischargeLocked())
	c.log.Info("bess boost calculated",
		zap.Float64("shortage_kw", shortage),
		zap.Float64("available_kw", c.availableDischargeLocked()),
		zap.Float64("boost_kw", boost),
	)
	return boost
}

// CalculateChargeOpportunity returns the recommended charge power when the
// site load leaves spare grid capacity, or zero when charging is not worth
// starting.
func (c *Controller) CalculateChargeOpportunity(gridAvailable, currentLoad float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.soc >= c.params.MaxSOC {
		return 0
	}
	spare := gridAvailable - currentLoad
	if spare <= 0 {
		return 0
	}
	charge := math.Min(spare, c.availableChargeLocked())
	if charge < c.minChargePower {
		return 0
	}
	c.log.Info("bess charge opportunity",
		zap.Float64("spare_kw", spare),
		zap.Float64("charge_kw", charge),
	)
	return charge
}

// SetDischarge commands a demand-driven discharge. The mode becomes BOOST;
// the reservoir accounting is identical to a plain discharge.
func (c *Controller) SetDischarge(power float64) domain.BESSCommand {
	c.mu.Lock()
	actual := math.Min(power, c.availableDischargeLocked())
	if actual < powerDeadband {
		c.mu.Unlock()
		return c.SetIdle()
	}
	c.mode = domain.BESSModeBoost
	c.power = actual
	c.mu.Unlock()
	return domain.BESSCommand{Command: domain.BESSCommandDischarge, Power: actual}
}

func (c *Controller) SetCharge(power float64) domain.BESSCommand {
	c.mu.Lock()
	actual := math.Min(power, c.availableChargeLocked())
	if actual < powerDeadband {
		c.mu.Unlock()
		return c.SetIdle()
	}
	c.mode = domain.BESSModeCharging
	c.power = -actual
	c.mu.Unlock()
	return domain.BESSCommand{Command: domain.BESSCommandCharge, Power: actual}
}

func (c *Controller) SetIdle() domain.BESSCommand {
	c.mu.Lock()
	c.mode = domain.BESSModeIdle
	c.power = 0
	c.mu.Unlock()
	return domain.BESSCommand{Command: domain.BESSCommandIdle, Power: 0}
}

// ApplyPower integrates a power setpoint over a duration, simulating the
// reservoir when no real telemetry arrives. Positive power discharges.
func (c *Controller) ApplyPower(power float64, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	energyKWh := power * d.Seconds() / 3600
	deltaSOC := energyKWh / c.params.CapacityKWh * 100
	c.soc = clamp(c.soc-deltaSOC, c.params.MinSOC, c.params.MaxSOC)
	c.power = power
	c.mode = modeForPower(power)

	c.log.Debug("bess power applied",
		zap.Float64("power_kw", power),
		zap.Duration("duration", d),
		zap.Float64("soc", c.soc),
	)
}

// UpdateFromTelemetry overrides the simulated state with a real report.
func (c *Controller) UpdateFromTelemetry(soc, power float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.soc = clamp(soc, c.params.MinSOC, c.params.MaxSOC)
	c.power = power
	c.mode = modeForPower(power)
}

func modeForPower(power float64) domain.BESSMode {
	switch {
	case math.Abs(power) < powerDeadband:
		return domain.BESSModeIdle
	case power > 0:
		return domain.BESSModeDischarging
	default:
		return domain.BESSModeCharging
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
