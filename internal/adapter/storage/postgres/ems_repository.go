package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/electra-charge/ems/internal/domain"
)

// EMSRepository backs all three persistence ports with one *gorm.DB. Write
// failures come back wrapped in domain.ErrPersistence so callers can treat
// the store as degraded without inspecting driver errors.
type EMSRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewEMSRepository(db *gorm.DB, log *zap.Logger) *EMSRepository {
	return &EMSRepository{
		db:  db,
		log: log,
	}
}

func (r *EMSRepository) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}

func (r *EMSRepository) SaveSession(ctx context.Context, s *domain.Session) error {
	return r.wrap("save session", r.db.WithContext(ctx).Save(s).Error)
}

func (r *EMSRepository) AppendPowerUpdate(ctx context.Context, u *domain.SessionPowerUpdate) error {
	return r.wrap("append power update", r.db.WithContext(ctx).Create(u).Error)
}

func (r *EMSRepository) AppendPowerMetric(ctx context.Context, m *domain.PowerMetric) error {
	return r.wrap("append power metric", r.db.WithContext(ctx).Create(m).Error)
}

func (r *EMSRepository) AppendBESSLog(ctx context.Context, l *domain.BESSStatusLog) error {
	return r.wrap("append bess log", r.db.WithContext(ctx).Create(l).Error)
}

func (r *EMSRepository) AppendEvent(ctx context.Context, e *domain.Event) error {
	return r.wrap("append event", r.db.WithContext(ctx).Create(e).Error)
}

func (r *EMSRepository) UpdateConnectorStatus(ctx context.Context, chargerID string, connectorID int, status domain.ConnectorStatus) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Connector{}).
		Where("charger_id = ? AND connector_id = ?", chargerID, connectorID).
		Update("status", status).Error
	return r.wrap("update connector status", err)
}

func (r *EMSRepository) UpsertStation(ctx context.Context, st *domain.Station) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "station_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"grid_capacity", "static_load", "config", "updated_at"}),
	}).Create(st).Error
	return r.wrap("upsert station", err)
}

func (r *EMSRepository) UpsertCharger(ctx context.Context, c *domain.Charger) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "station_id"}, {Name: "charger_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_power", "num_connectors", "manufacturer", "model", "updated_at"}),
	}).Create(c).Error
	return r.wrap("upsert charger", err)
}

func (r *EMSRepository) UpsertConnector(ctx context.Context, c *domain.Connector) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "charger_id"}, {Name: "connector_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "max_power", "updated_at"}),
	}).Create(c).Error
	return r.wrap("upsert connector", err)
}

func (r *EMSRepository) FindChargers(ctx context.Context, stationID string) ([]domain.Charger, error) {
	var out []domain.Charger
	err := r.db.WithContext(ctx).Where("station_id = ?", stationID).Order("charger_id").Find(&out).Error
	return out, err
}

func (r *EMSRepository) FindConnectors(ctx context.Context, chargerID string) ([]domain.Connector, error) {
	var out []domain.Connector
	err := r.db.WithContext(ctx).Where("charger_id = ?", chargerID).Order("connector_id").Find(&out).Error
	return out, err
}

func (r *EMSRepository) FindSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).First(&s, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *EMSRepository) FindActiveSessions(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := r.db.WithContext(ctx).
		Where("state = ?", domain.SessionStateActive).
		Order("start_time").Find(&out).Error
	return out, err
}
