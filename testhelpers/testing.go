package testhelpers

import (
	"context"
	"os"
	"testing"

	"stitchmart/internal/models"
	"stitchmart/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TestDB holds the database connection for integration tests
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL and applies the schema. The test is
// skipped when no database is configured or -short is set.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			_, err := pool.Exec(context.Background(), `TRUNCATE transactions, designs, categories, users`)
			pool.Close()
			return err
		},
	}
}

// NewTestDesign returns a valid, complete design that tests can adjust before storing.
func NewTestDesign(title string, price string) *models.Design {
	d := models.NewDesign()
	d.Title = title
	d.Description = title + " embroidery pattern"
	d.Price = decimal.RequireFromString(price)
	d.Difficulty = models.DifficultyBeginner
	d.StitchCount = 1000
	d.AssetState = models.AssetStateComplete
	return d
}

// NewTestCategory returns a top-level category with its slug derived from name.
func NewTestCategory(name string) *models.Category {
	c := &models.Category{ID: uuid.New(), Description: name + " designs", SubcategoryIDs: []uuid.UUID{}}
	c.Rename(name)
	return c
}
