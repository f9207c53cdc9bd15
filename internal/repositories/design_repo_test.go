package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var designColumnNames = []string{
	"id", "title", "description", "price", "difficulty", "stitch_count", "images", "design_files",
	"categories", "formats", "tags", "downloads", "sales", "rating_average", "rating_count",
	"featured", "popular", "asset_state", "created_at", "updated_at",
}

type DesignRepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	repo     DesignRepository
	designID uuid.UUID
	context  context.Context
}

func (suite *DesignRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewDesignRepo(mock)
	suite.designID = uuid.New()
	suite.context = context.Background()
}

func (suite *DesignRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestDesignRepoTestSuite(t *testing.T) {
	suite.Run(t, new(DesignRepoTestSuite))
}

func (suite *DesignRepoTestSuite) designRow(id uuid.UUID, title string) []interface{} {
	now := time.Now()
	return []interface{}{
		id, title, "A floral design", "12.99", "Intermediate", 15000,
		[]byte(`[{"url":"/uploads/designs/x/images/a.png","alt":"front"}]`),
		[]byte(`{"DST":"/uploads/designs/x/files/design_dst.dst"}`),
		[]uuid.UUID{uuid.New()}, []string{"DST"}, []string{"roses"}, 3, 7, 4.5, 2,
		true, false, "complete", now, now,
	}
}

func (suite *DesignRepoTestSuite) TestGetByID_Success() {
	rows := pgxmock.NewRows(designColumnNames).AddRow(suite.designRow(suite.designID, "Roses")...)
	suite.mock.ExpectQuery(`SELECT id, title, .* FROM designs WHERE id = \$1`).
		WithArgs(suite.designID).
		WillReturnRows(rows)

	d, err := suite.repo.GetByID(suite.context, suite.designID)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "Roses", d.Title)
	assert.True(suite.T(), d.Price.Equal(decimal.RequireFromString("12.99")))
	assert.Equal(suite.T(), models.DifficultyIntermediate, d.Difficulty)
	assert.Equal(suite.T(), []models.Format{models.FormatDST}, d.Formats)
	assert.Equal(suite.T(), "/uploads/designs/x/files/design_dst.dst", d.DesignFiles[models.FormatDST])
	require.Len(suite.T(), d.Images, 1)
	assert.Equal(suite.T(), "front", d.Images[0].Alt)
	assert.Equal(suite.T(), 4.5, d.Rating.Average)
	assert.Equal(suite.T(), models.AssetStateComplete, d.AssetState)
}

func (suite *DesignRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`FROM designs WHERE id = \$1`).
		WithArgs(suite.designID).
		WillReturnError(pgx.ErrNoRows)

	_, err := suite.repo.GetByID(suite.context, suite.designID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DesignRepoTestSuite) TestCreate_Success() {
	d := models.NewDesign()
	d.Title = "Roses"
	d.Description = "A floral design"
	d.Price = decimal.RequireFromString("12.99")
	d.Difficulty = models.DifficultyBeginner
	now := time.Now()

	suite.mock.ExpectQuery(`INSERT INTO designs \(id, title, .*\) VALUES \(\$1, .*\$18, NOW\(\), NOW\(\)\) RETURNING created_at, updated_at`).
		WithArgs(d.ID, d.Title, d.Description, d.Price, "Beginner", 0, []byte(`[]`), []byte(`{}`),
			d.CategoryIDs, []string{}, d.Tags, 0, 0, 0.0, 0, false, false, "pending_assets").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err := suite.repo.Create(suite.context, d)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), now, d.CreatedAt)
}

func (suite *DesignRepoTestSuite) TestFind_BuildsFilterSortAndPage() {
	category := uuid.New()
	lo := decimal.NewFromInt(10)
	hi := decimal.NewFromInt(20)
	filter := models.DesignFilter{
		Search:     "rose_50%",
		CategoryID: &category,
		Difficulty: models.DifficultyAdvanced,
		MinPrice:   &lo,
		MaxPrice:   &hi,
		AssetState: models.AssetStateComplete,
		Sort:       []models.SortKey{{Field: models.SortPrice, Desc: false}},
		Skip:       20,
		Limit:      10,
	}

	rows := pgxmock.NewRows(designColumnNames).
		AddRow(suite.designRow(uuid.New(), "Rose A")...).
		AddRow(suite.designRow(uuid.New(), "Rose B")...)
	suite.mock.ExpectQuery(
		`FROM designs WHERE \(title ILIKE \$1 OR description ILIKE \$1 OR EXISTS \(SELECT 1 FROM unnest\(tags\) AS t\(tag\) WHERE t.tag ILIKE \$1\)\) `+
			`AND \$2 = ANY\(categories\) AND difficulty = \$3 AND price >= \$4 AND price <= \$5 AND asset_state = \$6 `+
			`ORDER BY price ASC LIMIT \$7 OFFSET \$8`).
		WithArgs(`%rose\_50\%%`, category, "Advanced", lo, hi, "complete", 10, 20).
		WillReturnRows(rows)

	designs, err := suite.repo.Find(suite.context, filter)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), designs, 2)
}

func (suite *DesignRepoTestSuite) TestFind_CuratedMultiKeySort() {
	suite.mock.ExpectQuery(`FROM designs WHERE featured = \$1 ORDER BY sales DESC, rating_average DESC LIMIT \$2`).
		WithArgs(true, 8).
		WillReturnRows(pgxmock.NewRows(designColumnNames))

	designs, err := suite.repo.Find(suite.context, models.FeaturedFilter(0))
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), designs)
}

func (suite *DesignRepoTestSuite) TestFind_MatchNone() {
	suite.mock.ExpectQuery(`FROM designs WHERE FALSE ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows(designColumnNames))

	designs, err := suite.repo.Find(suite.context, models.DesignFilter{MatchNone: true, Limit: 20})
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), designs)
}

func (suite *DesignRepoTestSuite) TestCount_NoFilters() {
	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM designs$`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	total, err := suite.repo.Count(suite.context, models.DesignFilter{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 42, total)
}

func (suite *DesignRepoTestSuite) TestSetAssets_NotFound() {
	suite.mock.ExpectExec(`UPDATE designs SET images = \$1, design_files = \$2, asset_state = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "complete", suite.designID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.SetAssets(suite.context, suite.designID, nil, nil, models.AssetStateComplete)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DesignRepoTestSuite) TestSetFlag_Success() {
	row := suite.designRow(suite.designID, "Roses")
	suite.mock.ExpectQuery(`UPDATE designs SET popular = \$1, updated_at = NOW\(\) WHERE id = \$2 RETURNING id, title`).
		WithArgs(true, suite.designID).
		WillReturnRows(pgxmock.NewRows(designColumnNames).AddRow(row...))

	d, err := suite.repo.SetFlag(suite.context, suite.designID, "popular", true)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.designID, d.ID)
}

func (suite *DesignRepoTestSuite) TestSetFlag_NotFound() {
	suite.mock.ExpectQuery(`UPDATE designs SET featured = \$1`).
		WithArgs(true, suite.designID).
		WillReturnError(pgx.ErrNoRows)

	_, err := suite.repo.SetFlag(suite.context, suite.designID, "featured", true)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DesignRepoTestSuite) TestSetFlag_UnknownFlag() {
	_, err := suite.repo.SetFlag(suite.context, suite.designID, "title", true)
	assert.Error(suite.T(), err)
}

func (suite *DesignRepoTestSuite) TestDelete() {
	suite.mock.ExpectExec(`DELETE FROM designs WHERE id = \$1`).
		WithArgs(suite.designID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	suite.mock.ExpectExec(`DELETE FROM designs WHERE id = \$1`).
		WithArgs(suite.designID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(suite.T(), suite.repo.Delete(suite.context, suite.designID))
	assert.ErrorIs(suite.T(), suite.repo.Delete(suite.context, suite.designID), ErrNotFound)
}

func (suite *DesignRepoTestSuite) TestDelete_DatabaseError() {
	dbErr := errors.New("connection refused")
	suite.mock.ExpectExec(`DELETE FROM designs`).
		WithArgs(suite.designID).
		WillReturnError(dbErr)

	err := suite.repo.Delete(suite.context, suite.designID)
	assert.ErrorIs(suite.T(), err, dbErr)
}

func (suite *DesignRepoTestSuite) TestListPendingBefore() {
	cutoff := time.Now().Add(-time.Hour)
	orphan := uuid.New()
	suite.mock.ExpectQuery(`SELECT id FROM designs WHERE asset_state = \$1 AND created_at < \$2`).
		WithArgs("pending_assets", cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(orphan))

	ids, err := suite.repo.ListPendingBefore(suite.context, cutoff)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []uuid.UUID{orphan}, ids)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\x`, escapeLike(`c:\x`))
}
