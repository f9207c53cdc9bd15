package testhelpers

import (
	"context"
	"testing"

	"stitchmart/internal/models"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDesignRepositoryIntegration runs the design repository against a real database.
func TestDesignRepositoryIntegration(t *testing.T) {
	db := SetupTestDB(t)
	defer func() { _ = db.Cleanup() }()

	ctx := context.Background()
	categories := repositories.NewCategoryRepo(db.Pool)
	designs := repositories.NewDesignRepo(db.Pool)

	flowers := NewTestCategory("Flowers")
	require.NoError(t, categories.Create(ctx, flowers))

	rose := NewTestDesign("Rose", "10")
	rose.CategoryIDs = []uuid.UUID{flowers.ID}
	rose.Tags = []string{"floral"}
	require.NoError(t, designs.Create(ctx, rose))

	pending := NewTestDesign("Pending tulip", "5")
	pending.AssetState = models.AssetStatePending
	require.NoError(t, designs.Create(ctx, pending))

	filter, _, _ := models.BuildDesignFilter(models.DesignListParams{Search: "FLORAL", Category: flowers.ID.String()})
	filter.AssetState = models.AssetStateComplete

	found, err := designs.Find(ctx, filter)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rose.ID, found[0].ID)

	total, err := designs.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = designs.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.NoError(t, designs.Delete(ctx, pending.ID))
	_, err = designs.GetByID(ctx, pending.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
