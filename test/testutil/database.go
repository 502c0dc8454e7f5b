package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"litscout/internal/models"
)

// DatabaseTestUtil provides a disposable database for repository tests.
type DatabaseTestUtil struct {
	container  *postgres.PostgresContainer
	db         *gorm.DB
	cleanup    func()
	isPostgres bool
}

// SetupTestDatabase creates a test database, either PostgreSQL in a
// container or SQLite in memory.
func SetupTestDatabase(t *testing.T, usePostgres bool) *DatabaseTestUtil {
	ctx := context.Background()
	if usePostgres {
		return setupPostgresContainer(t, ctx)
	}
	return setupSQLiteInMemory(t)
}

func setupPostgresContainer(t *testing.T, ctx context.Context) *DatabaseTestUtil {
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(pgdriver.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Paper{}, &models.SessionRecord{}))

	return &DatabaseTestUtil{
		container:  pgContainer,
		db:         db,
		isPostgres: true,
		cleanup: func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				t.Logf("failed to terminate container: %s", err)
			}
		},
	}
}

func setupSQLiteInMemory(t *testing.T) *DatabaseTestUtil {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Paper{}, &models.SessionRecord{}))

	return &DatabaseTestUtil{
		db:         db,
		isPostgres: false,
		cleanup:    func() {},
	}
}

// DB returns the underlying GORM handle.
func (d *DatabaseTestUtil) DB() *gorm.DB { return d.db }

// Cleanup tears down the test database.
func (d *DatabaseTestUtil) Cleanup() {
	if d.cleanup != nil {
		d.cleanup()
	}
}

// TruncateAllTables clears every table for a clean slate between tests.
func (d *DatabaseTestUtil) TruncateAllTables(t *testing.T) {
	tables := []string{"papers", "search_sessions"}

	for _, table := range tables {
		var stmt string
		if d.isPostgres {
			stmt = fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)
		} else {
			stmt = fmt.Sprintf("DELETE FROM %s", table)
		}
		if err := d.db.Exec(stmt).Error; err != nil {
			continue
		}
	}
}

// AssertTableCount asserts the row count of a table.
func (d *DatabaseTestUtil) AssertTableCount(t *testing.T, table string, expected int64) {
	var count int64
	err := d.db.Table(table).Count(&count).Error
	require.NoError(t, err)
	require.Equal(t, expected, count, "table %s should have %d records", table, expected)
}

// CreateTestPaper inserts a paper with sensible defaults, applying any
// non-zero fields from overrides.
func (d *DatabaseTestUtil) CreateTestPaper(t *testing.T, overrides *models.Paper) *models.Paper {
	paper := models.NewPaper(fmt.Sprintf("test_%d", time.Now().UnixNano()), "Test Paper", models.SourceArxiv)

	if overrides != nil {
		if overrides.PaperID != "" {
			paper.PaperID = overrides.PaperID
		}
		if overrides.Title != "" {
			paper.Title = overrides.Title
		}
		if overrides.DOI != "" {
			paper.DOI = overrides.DOI
		}
		if overrides.SessionID != "" {
			paper.SessionID = overrides.SessionID
		}
		if overrides.Source != "" {
			paper.Source = overrides.Source
		}
	}
	paper.Normalize()

	require.NoError(t, d.db.Create(paper).Error)
	return paper
}
