package bess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
)

func testParams() domain.BatteryParams {
	return domain.BatteryParams{
		CapacityKWh: 200,
		MaxPowerKW:  100,
		MinSOC:      10,
		MaxSOC:      100,
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	return NewController(testParams(), zap.NewNop())
}

func TestInitialStatus(t *testing.T) {
	c := newTestController(t)

	st := c.Status()
	assert.Equal(t, domain.BESSModeIdle, st.Mode)
	assert.Equal(t, 100.0, st.SOC)
	assert.Zero(t, st.Power)
	// Full battery: one hour of usable energy exceeds the nameplate.
	assert.Equal(t, 180.0, st.AvailableEnergy)
	assert.Equal(t, 100.0, st.AvailableDischarge)
	assert.Zero(t, st.AvailableCharge)
}

func TestAvailableDischargeBoundedByUsableEnergy(t *testing.T) {
	c := newTestController(t)

	c.UpdateFromTelemetry(80, 0)
	st := c.Status()
	assert.Equal(t, 140.0, st.AvailableEnergy)
	assert.Equal(t, 100.0, st.AvailableDischarge)

	c.UpdateFromTelemetry(40, 0)
	st = c.Status()
	assert.Equal(t, 60.0, st.AvailableEnergy)
	assert.Equal(t, 60.0, st.AvailableDischarge)

	c.UpdateFromTelemetry(10, 0)
	assert.Zero(t, c.Status().AvailableDischarge)
}

func TestCalculateBoostPower(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(80, 0)

	// Demand 600 against 397 of grid: shortage 203, nameplate caps at 100.
	assert.Equal(t, 100.0, c.CalculateBoostPower(397, 600))

	// Demand within grid headroom needs no boost.
	assert.Zero(t, c.CalculateBoostPower(397, 350))

	// A small shortage is covered exactly.
	assert.Equal(t, 30.0, c.CalculateBoostPower(397, 427))
}

func TestCalculateBoostPowerAtMinSOC(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(10, 0)

	assert.Zero(t, c.CalculateBoostPower(397, 600))
}

func TestCalculateChargeOpportunity(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(60, 0)

	// Spare 374, headroom 80 kWh bounds the charge.
	assert.Equal(t, 80.0, c.CalculateChargeOpportunity(397, 23))

	// No spare capacity, no charge.
	assert.Zero(t, c.CalculateChargeOpportunity(397, 400))
}

func TestChargeOpportunitySkipsTrickle(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(60, 0)

	assert.Zero(t, c.CalculateChargeOpportunity(397, 394))

	c.SetMinChargePower(1)
	assert.Equal(t, 3.0, c.CalculateChargeOpportunity(397, 394))
}

func TestChargeOpportunityAtMaxSOC(t *testing.T) {
	c := newTestController(t)

	assert.Zero(t, c.CalculateChargeOpportunity(397, 0))
}

func TestSetDischarge(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(80, 0)

	cmd := c.SetDischarge(60)
	assert.Equal(t, domain.BESSCommandDischarge, cmd.Command)
	assert.Equal(t, 60.0, cmd.Power)

	st := c.Status()
	assert.Equal(t, domain.BESSModeBoost, st.Mode)
	assert.Equal(t, 60.0, st.Power)
}

func TestSetDischargeClampsToAvailable(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(40, 0)

	cmd := c.SetDischarge(150)
	assert.Equal(t, 60.0, cmd.Power)
}

func TestSetDischargeBelowDeadbandIdles(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(10, 0)

	cmd := c.SetDischarge(50)
	assert.Equal(t, domain.BESSCommandIdle, cmd.Command)
	assert.Equal(t, domain.BESSModeIdle, c.Status().Mode)
}

func TestSetCharge(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(60, 0)

	cmd := c.SetCharge(50)
	assert.Equal(t, domain.BESSCommandCharge, cmd.Command)
	assert.Equal(t, 50.0, cmd.Power)

	st := c.Status()
	assert.Equal(t, domain.BESSModeCharging, st.Mode)
	assert.Equal(t, -50.0, st.Power)
}

func TestSetIdle(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(80, 0)
	c.SetDischarge(60)

	cmd := c.SetIdle()
	assert.Equal(t, domain.BESSCommandIdle, cmd.Command)
	assert.Zero(t, cmd.Power)
	assert.Equal(t, domain.BESSModeIdle, c.Status().Mode)
	assert.Zero(t, c.Status().Power)
}

func TestApplyPowerIntegratesSOC(t *testing.T) {
	c := newTestController(t)

	// 50 kW for 30 minutes drains 25 kWh, 12.5% of a 200 kWh pack.
	c.ApplyPower(50, 30*time.Minute)

	st := c.Status()
	assert.InDelta(t, 87.5, st.SOC, 1e-9)
	assert.Equal(t, domain.BESSModeDischarging, st.Mode)
	assert.Equal(t, 50.0, st.Power)
}

func TestApplyPowerChargesTowardMaxSOC(t *testing.T) {
	c := newTestController(t)
	c.UpdateFromTelemetry(60, 0)

	c.ApplyPower(-40, time.Hour)

	assert.InDelta(t, 80.0, c.Status().SOC, 1e-9)
	assert.Equal(t, domain.BESSModeCharging, c.Status().Mode)
}

func TestApplyPowerClampsAtBounds(t *testing.T) {
	c := newTestController(t)

	c.ApplyPower(100, 10*time.Hour)
	assert.Equal(t, 10.0, c.Status().SOC)

	c.ApplyPower(-100, 10*time.Hour)
	assert.Equal(t, 100.0, c.Status().SOC)
}

func TestTelemetryClampsSOC(t *testing.T) {
	c := newTestController(t)

	c.UpdateFromTelemetry(5, 0)
	assert.Equal(t, 10.0, c.Status().SOC)

	c.UpdateFromTelemetry(120, 0)
	assert.Equal(t, 100.0, c.Status().SOC)
}

func TestModeFollowsTelemetryPower(t *testing.T) {
	c := newTestController(t)

	c.UpdateFromTelemetry(80, 40)
	assert.Equal(t, domain.BESSModeDischarging, c.Status().Mode)

	c.UpdateFromTelemetry(80, -40)
	assert.Equal(t, domain.BESSModeCharging, c.Status().Mode)

	c.UpdateFromTelemetry(80, 0.05)
	assert.Equal(t, domain.BESSModeIdle, c.Status().Mode)
}
