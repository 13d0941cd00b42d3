package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/electra-charge/ems/internal/ports"
)

const statusTTL = 30 * time.Second

// StatusCache keeps the most recent station snapshot so dashboards can
// read it without touching the coordinator on every request.
type StatusCache struct {
	cache ports.Cache
}

func NewStatusCache(c ports.Cache) *StatusCache {
	return &StatusCache{cache: c}
}

func statusKey(stationID string) string {
	return fmt.Sprintf("ems:station:%s:status", stationID)
}

func (s *StatusCache) Store(ctx context.Context, st ports.StationStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, statusKey(st.StationID), data, statusTTL)
}

func (s *StatusCache) Load(ctx context.Context, stationID string) (*ports.StationStatus, error) {
	raw, err := s.cache.Get(ctx, statusKey(stationID))
	if err != nil {
		return nil, err
	}
	var st ports.StationStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	return &st, nil
}
