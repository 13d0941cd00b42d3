//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/electra-charge/ems/internal/adapter/storage/postgres"
)

// TestEnv holds the shared database for the integration suite.
type TestEnv struct {
	DB        *gorm.DB
	Container testcontainers.Container
	Logger    *zap.Logger
}

var testEnv *TestEnv

// SetupTestEnvironment starts (or reuses) a postgres container and runs
// the migrations. Set DATABASE_URL to target an external database in CI.
func SetupTestEnvironment(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	logger, _ := zap.NewDevelopment()
	ctx := context.Background()

	url := os.Getenv("DATABASE_URL")
	var container testcontainers.Container

	if url == "" {
		pgContainer, err := tcpostgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:16-alpine"),
			tcpostgres.WithDatabase("ems_test"),
			tcpostgres.WithUsername("ems"),
			tcpostgres.WithPassword("ems_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			t.Fatalf("Failed to start postgres container: %v", err)
		}
		container = pgContainer

		host, err := pgContainer.Host(ctx)
		if err != nil {
			t.Fatalf("Failed to get postgres host: %v", err)
		}
		port, err := pgContainer.MappedPort(ctx, "5432")
		if err != nil {
			t.Fatalf("Failed to get postgres port: %v", err)
		}
		url = fmt.Sprintf("postgres://ems:ems_test@%s:%s/ems_test?sslmode=disable", host, port.Port())
	}

	db, err := postgres.NewConnection(url, logger)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	testEnv = &TestEnv{
		DB:        db,
		Container: container,
		Logger:    logger,
	}
	return testEnv
}

// CleanDatabase truncates every table the sink writes to.
func CleanDatabase(t *testing.T, db *gorm.DB) {
	t.Helper()
	tables := []string{
		"events",
		"bess_status_logs",
		"power_metrics",
		"session_power_updates",
		"charging_sessions",
		"connectors",
		"chargers",
		"stations",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("Failed to truncate %s: %v", table, err)
		}
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	if testEnv != nil {
		postgres.Close(testEnv.DB)
		if testEnv.Container != nil {
			testEnv.Container.Terminate(context.Background())
		}
	}
	os.Exit(code)
}
