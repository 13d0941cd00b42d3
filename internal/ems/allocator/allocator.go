// Package allocator computes the fair-share power allocation across all
// active charging sessions. The computation is a pure function of its
// inputs: it never mutates the sessions and cannot fail.
package allocator

import (
	"math"

	"github.com/electra-charge/ems/internal/domain"
)

// Result is the allocation vector plus the aggregates it was derived from.
type Result struct {
	Allocations    []domain.PowerAllocation
	GridAvailable  float64
	BESSAvailable  float64
	TotalAvailable float64
	TotalDemand    float64
	Factor         float64
}

// Allocated returns the granted power for a session, zero when absent.
func (r *Result) Allocated(sessionID string) float64 {
	for _, a := range r.Allocations {
		if a.SessionID == sessionID {
			return a.AllocatedPower
		}
	}
	return 0
}

// TotalAllocated sums the allocation vector.
func (r *Result) TotalAllocated() float64 {
	total := 0.0
	for _, a := range r.Allocations {
		total += a.AllocatedPower
	}
	return total
}

// Allocate distributes the available power over the sessions. Sessions must
// be ordered by session id; the ordering pins down the rounding correction.
// bess may be nil (no battery, or boost not permitted).
func Allocate(sessions []*domain.Session, topo *domain.StationTopology, bess *domain.BESSStatus) Result {
	res := Result{
		GridAvailable: topo.GridAvailable(),
		Factor:        1.0,
	}
	if bess != nil {
		res.BESSAvailable = bess.AvailableDischarge
	}
	res.TotalAvailable = res.GridAvailable + res.BESSAvailable

	if len(sessions) == 0 {
		return res
	}

	activeOnCharger := make(map[string]int, len(sessions))
	for _, s := range sessions {
		activeOnCharger[s.ChargerID]++
	}

	demands := make([]float64, len(sessions))
	for i, s := range sessions {
		demands[i] = sessionDemand(s, topo, activeOnCharger[s.ChargerID])
		res.TotalDemand += demands[i]
	}

	if res.TotalDemand > res.TotalAvailable && res.TotalDemand > 0 {
		res.Factor = res.TotalAvailable / res.TotalDemand
	}

	res.Allocations = make([]domain.PowerAllocation, len(sessions))
	for i, s := range sessions {
		res.Allocations[i] = domain.PowerAllocation{
			SessionID:       s.SessionID,
			ChargerID:       s.ChargerID,
			ConnectorID:     s.ConnectorID,
			AllocatedPower:  round1(demands[i] * res.Factor),
			ConsumedPower:   s.ConsumedPower,
			VehicleMaxPower: s.VehicleMaxPower,
		}
	}

	correctRounding(res.Allocations, res.TotalAvailable)
	return res
}

// sessionDemand is what the session would draw with no site-wide limits:
// the vehicle's ceiling, bounded by the connector nameplate and by an even
// split of the charger's shared budget.
func sessionDemand(s *domain.Session, topo *domain.StationTopology, activeOnCharger int) float64 {
	charger := topo.Charger(s.ChargerID)
	if charger == nil {
		return 0
	}
	if activeOnCharger < 1 {
		activeOnCharger = 1
	}
	limit := charger.MaxPower / float64(activeOnCharger)
	if cn := charger.Connector(s.ConnectorID); cn != nil && cn.MaxPower < limit {
		limit = cn.MaxPower
	}
	return math.Min(s.VehicleMaxPower, limit)
}

// correctRounding walks back the cumulative overshoot that per-session
// rounding can produce. Allocations are ordered by session id; 0.1 kW
// steps come off the highest-id session first, moving to the next one only
// when it is drained, so the pass is deterministic.
func correctRounding(allocs []domain.PowerAllocation, totalAvailable float64) {
	const step = 0.1
	sum := 0.0
	for _, a := range allocs {
		sum += a.AllocatedPower
	}
	for i := len(allocs) - 1; i >= 0 && sum > totalAvailable+1e-9; {
		if allocs[i].AllocatedPower >= step {
			allocs[i].AllocatedPower = round1(allocs[i].AllocatedPower - step)
			sum -= step
		} else {
			i--
		}
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
