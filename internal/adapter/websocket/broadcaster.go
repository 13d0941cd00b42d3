package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/adapter/cache"
	"github.com/electra-charge/ems/internal/ports"
)

// StatusBroadcaster pushes the live station snapshot to every websocket
// client on a fixed cadence and refreshes the status cache along the way.
type StatusBroadcaster struct {
	hub      *Hub
	coord    ports.SessionCoordinator
	statuses *cache.StatusCache
	interval time.Duration
	log      *zap.Logger
}

func NewStatusBroadcaster(hub *Hub, coord ports.SessionCoordinator, statuses *cache.StatusCache, interval time.Duration, log *zap.Logger) *StatusBroadcaster {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StatusBroadcaster{
		hub:      hub,
		coord:    coord,
		statuses: statuses,
		interval: interval,
		log:      log,
	}
}

func (b *StatusBroadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publish(ctx)
		}
	}
}

func (b *StatusBroadcaster) publish(ctx context.Context) {
	status := b.coord.StationStatus()

	if b.statuses != nil {
		if err := b.statuses.Store(ctx, status); err != nil {
			b.log.Debug("status cache store failed", zap.Error(err))
		}
	}

	data, err := json.Marshal(status)
	if err != nil {
		b.log.Error("failed to marshal station status", zap.Error(err))
		return
	}
	b.hub.Broadcast(data)
}
