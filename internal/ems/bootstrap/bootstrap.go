// Package bootstrap seeds the topology tables from the station config at
// startup so the read endpoints and reporting queries have rows to join
// against.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/ports"
)

// SeedTopology upserts the station, its chargers, and their connectors.
// Connector status is seeded available; the coordinator flips it as
// sessions come and go.
func SeedTopology(ctx context.Context, repo ports.StationRepository, topo *domain.StationTopology, log *zap.Logger) error {
	raw, err := json.Marshal(topo)
	if err != nil {
		return fmt.Errorf("failed to serialize topology: %w", err)
	}

	now := time.Now().UTC()
	station := &domain.Station{
		StationID:    topo.StationID,
		GridCapacity: topo.GridCapacity,
		StaticLoad:   topo.StaticLoad,
		Config:       raw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.UpsertStation(ctx, station); err != nil {
		return err
	}

	for _, ch := range topo.Chargers {
		charger := &domain.Charger{
			StationID:     topo.StationID,
			ChargerID:     ch.ID,
			MaxPower:      ch.MaxPower,
			NumConnectors: len(ch.Connectors),
			Manufacturer:  ch.Manufacturer,
			Model:         ch.Model,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repo.UpsertCharger(ctx, charger); err != nil {
			return err
		}

		for _, cn := range ch.Connectors {
			connector := &domain.Connector{
				ChargerID:   ch.ID,
				ConnectorID: cn.ConnectorID,
				Type:        cn.Type,
				MaxPower:    cn.MaxPower,
				Status:      domain.ConnectorStatusAvailable,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := repo.UpsertConnector(ctx, connector); err != nil {
				return err
			}
		}
	}

	log.Info("topology seeded",
		zap.String("stationId", topo.StationID),
		zap.Int("chargers", len(topo.Chargers)))
	return nil
}
