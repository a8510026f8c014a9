package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/database"
)

// PostgresTestImage is the PostgreSQL image used for integration tests.
const PostgresTestImage = "postgres:16-alpine"

const (
	testDBUser     = "ultraqc"
	testDBPassword = "test_password"
	testDBName     = "ultraqc_test"
)

// TestDB holds a shared test database container and a superuser connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDBName,
			"POSTGRES_USER":     testDBUser,
			"POSTGRES_PASSWORD": testDBPassword,
		},
		// Postgres logs readiness twice: once for the init server, once for the real one.
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

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, host, port.Port(), testDBName)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}

// AppDB holds the application database connection with migrations applied.
// Use this for testing repositories, services and handlers against a real database.
type AppDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	sharedAppDB     *AppDB
	sharedAppDBOnce sync.Once
	sharedAppDBErr  error
)

// GetAppDB returns a shared, migrated database for integration tests.
func GetAppDB(t *testing.T) *AppDB {
	t.Helper()

	testDB := GetTestDB(t)

	sharedAppDBOnce.Do(func() {
		sharedAppDB, sharedAppDBErr = setupAppDB(testDB)
	})

	if sharedAppDBErr != nil {
		t.Fatalf("Failed to setup application database: %v", sharedAppDBErr)
	}

	return sharedAppDB
}

func setupAppDB(testDB *TestDB) (*AppDB, error) {
	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            testDB.ConnStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to application database: %w", err)
	}

	// golang-migrate needs a database/sql handle
	sqlDB, err := sql.Open("pgx", testDB.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &AppDB{
		DB:      db,
		ConnStr: testDB.ConnStr,
	}, nil
}

// Reset truncates every application table so each test starts from an empty schema.
func (a *AppDB) Reset(t *testing.T) {
	t.Helper()
	_, err := a.DB.Pool.Exec(context.Background(), `
		TRUNCATE plot_data, plot_category, plot_config, sample_data, sample_data_type,
		         sample, report_meta, report, uploads, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// Context returns a context carrying a pool-backed database scope.
func (a *AppDB) Context() context.Context {
	return a.DB.WithPoolScope(context.Background())
}

// CreateUser inserts an active user and returns its id.
func (a *AppDB) CreateUser(t *testing.T, username string, apiToken string) int64 {
	t.Helper()
	var token *string
	if apiToken != "" {
		token = &apiToken
	}
	var id int64
	err := a.DB.Pool.QueryRow(context.Background(), `
		INSERT INTO users (username, email, active, api_token)
		VALUES ($1, $2, TRUE, $3)
		RETURNING user_id`,
		username, username+"@example.com", token).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return id
}
