package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/electra-charge/ems/internal/domain"
)

// NewConnection opens a PostgreSQL connection through GORM.
func NewConnection(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to PostgreSQL")
	return db, nil
}

// RunMigrations creates or updates every table the sink writes to.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Station{},
		&domain.Charger{},
		&domain.Connector{},
		&domain.Session{},
		&domain.SessionPowerUpdate{},
		&domain.PowerMetric{},
		&domain.BESSStatusLog{},
		&domain.Event{},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
