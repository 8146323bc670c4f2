// Package testhelpers provides utilities for integration testing against a
// real PostgreSQL instance.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/database"
)

// postgresImage is the PostgreSQL image used for integration tests.
const postgresImage = "postgres:16-alpine"

// EngineDB holds a test database connection with migrations applied.
//
// DB connects as the container superuser, which PostgreSQL exempts from row
// level security; use it for fixtures and assertions that must see every
// tenant. AppDB connects as an unprivileged application role, so repository
// calls through it get the same RLS enforcement as production.
type EngineDB struct {
	Container testcontainers.Container
	DB        *database.DB
	AppDB     *database.DB
	ConnStr   string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared PostgreSQL container with migrations applied.
// The container is created once and reused across all tests in the run.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB()
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

func setupEngineDB() (*EngineDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "kawsay_engine_test",
			"POSTGRES_USER":     "kawsay",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://kawsay:test_password@%s:%s/kawsay_engine_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, "../../migrations", zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// The container user is a superuser and bypasses row level security.
	// Repositories run through a plain application role instead.
	appRoleStmts := []string{
		`CREATE ROLE kawsay_app LOGIN PASSWORD 'test_password'`,
		`GRANT USAGE ON SCHEMA public TO kawsay_app`,
		`GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO kawsay_app`,
	}
	for _, stmt := range appRoleStmts {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create application role: %w", err)
		}
	}

	appConnStr := fmt.Sprintf("postgres://kawsay_app:test_password@%s:%s/kawsay_engine_test?sslmode=disable",
		host, port.Port())
	appDB, err := database.NewConnection(ctx, &database.Config{
		URL:            appConnStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect as application role: %w", err)
	}

	return &EngineDB{
		Container: container,
		DB:        db,
		AppDB:     appDB,
		ConnStr:   connStr,
	}, nil
}

// TenantContext returns a context carrying a tenant-scoped connection from
// the application pool, the way the HTTP middleware scopes each request.
// The scope is released when the test finishes.
func (e *EngineDB) TenantContext(t *testing.T, tenantID string) context.Context {
	t.Helper()

	scope, err := e.AppDB.WithTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Failed to acquire tenant scope: %v", err)
	}
	t.Cleanup(scope.Close)

	return database.SetTenantScope(context.Background(), scope)
}
