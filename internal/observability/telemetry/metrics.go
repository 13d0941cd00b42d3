package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_active_charging_sessions",
		Help: "Number of active charging sessions",
	})

	TotalAllocatedKW = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_total_allocated_kw",
		Help: "Total power currently allocated to sessions in kW",
	})

	GridHeadroomKW = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_grid_headroom_kw",
		Help: "Grid headroom remaining after allocations in kW",
	})

	BESSSOC = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_bess_soc_percent",
		Help: "BESS state of charge",
	})

	BESSPowerKW = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_bess_power_kw",
		Help: "BESS power, positive when discharging",
	})

	EnergyDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ems_energy_delivered_kwh_total",
		Help: "Total energy delivered across completed sessions in kWh",
	})

	FabricMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_fabric_messages_total",
		Help: "Messages exchanged with the fabric",
	}, []string{"topic", "direction"})

	ProtocolErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ems_protocol_errors_total",
		Help: "Inbound messages dropped as undecodable",
	})

	StaleUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ems_stale_updates_total",
		Help: "Session updates rejected as stale",
	})

	PersistenceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ems_persistence_errors_total",
		Help: "Failed persistence writes",
	})
)
