package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/config"
	"github.com/BradenHooton/amgate/internal/database"
	"github.com/BradenHooton/amgate/internal/repositories"
	"github.com/BradenHooton/amgate/internal/services"
)

// TestDB owns a throwaway Postgres container with the schema applied
type TestDB struct {
	Container testcontainers.Container
	Config    config.DatabaseConfig
	DB        *database.DB
}

// SetupTestDatabase starts postgres:16-alpine, connects through the production
// connection path and applies the embedded migrations
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("amgate"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	fail := func(step string, err error) (*TestDB, error) {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return fail("failed to get container host", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fail("failed to get mapped port", err)
	}

	cfg := config.DatabaseConfig{
		Host:              host,
		Port:              port.Int(),
		User:              "postgres",
		Password:          "postgres",
		Name:              "amgate",
		SSLMode:           "disable",
		MaxConns:          20,
		MinConns:          1,
		MaxConnLifetime:   5 * time.Minute,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.NewConnection(ctx, &cfg, logger)
	if err != nil {
		return fail("failed to connect", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fail("failed to run migrations", err)
	}

	return &TestDB{Container: container, Config: cfg, DB: db}, nil
}

// Teardown closes the pool and stops the container
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.DB != nil {
		db.DB.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables empties both store tables between tests
func (db *TestDB) CleanupTables(ctx context.Context) error {
	if _, err := db.DB.Pool.Exec(ctx, "TRUNCATE TABLE login_attempts, scope_approvals"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// Stores bundles the Postgres-backed stores under test
type Stores struct {
	LoginAttempts  *services.LoginAttemptService
	ScopeApprovals *services.ScopeApprovalService
	AttemptRepo    *repositories.LoginAttemptRepository
	ApprovalRepo   *repositories.ScopeApprovalRepository
}

// NewStores wires both stores to the test database with the given clock
func (db *TestDB) NewStores(clk clock.Clock) *Stores {
	attemptRepo := repositories.NewLoginAttemptRepository(db.DB)
	approvalRepo := repositories.NewScopeApprovalRepository(db.DB)

	return &Stores{
		LoginAttempts:  services.NewLoginAttemptService(attemptRepo, services.WithClock(clk)),
		ScopeApprovals: services.NewScopeApprovalService(approvalRepo, services.WithClock(clk)),
		AttemptRepo:    attemptRepo,
		ApprovalRepo:   approvalRepo,
	}
}

// CountRows counts every row of a table, expired or not
func (db *TestDB) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	err := db.DB.Pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	return n, err
}
