//go:build integration

package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testDB is a disposable Postgres with the service schema applied.
type testDB struct {
	DB *database.DB
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "attendance",
			"POSTGRES_PASSWORD": "attendance",
			"POSTGRES_DB":       "attendance_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://attendance:attendance@%s:%s/attendance_test?sslmode=disable", host, port.Port())
	db, err := database.NewPostgreSQLDB(dsn, database.PoolOptions{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	applyMigrations(t, ctx, db)
	return &testDB{DB: db}
}

func applyMigrations(t *testing.T, ctx context.Context, db *database.DB) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join("..", "..", "..", "..", "migrations", "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migrations found")
	sort.Strings(files)

	for _, f := range files {
		sql, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = db.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to apply %s", filepath.Base(f))
	}
}

// seedEmployee inserts a company and one active employee and returns their ids.
func (s *testDB) seedEmployee(t *testing.T) (companyID, employeeID string) {
	t.Helper()
	ctx := context.Background()
	companyID = uuid.NewString()
	employeeID = uuid.NewString()

	_, err := s.DB.Exec(ctx, `INSERT INTO companies (id, name, timezone) VALUES ($1, $2, 'Asia/Jakarta')`,
		companyID, "Acme "+companyID[:8])
	require.NoError(t, err)
	_, err = s.DB.Exec(ctx, `INSERT INTO employees (id, company_id, employee_code, full_name) VALUES ($1, $2, $3, $4)`,
		employeeID, companyID, "EMP-"+employeeID[:8], "Test Employee")
	require.NoError(t, err)
	return companyID, employeeID
}
