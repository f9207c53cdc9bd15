package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DesignServiceTestSuite struct {
	suite.Suite
	ctx context.Context
	c   *catalog
}

func (s *DesignServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.c = newCatalog(s.T(), nil)
}

func TestDesignServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DesignServiceTestSuite))
}

func (s *DesignServiceTestSuite) create(title string, uploads AssetUploads) *models.Design {
	d, err := s.c.service.Create(s.ctx, draftDesign(title, "10"), uploads)
	s.Require().NoError(err)
	return d
}

func (s *DesignServiceTestSuite) TestCreateStoresAssetsInOrder() {
	d := s.create("Rose", AssetUploads{
		Images: []Upload{fileUpload("a.PNG", "first"), fileUpload("b.jpg", "second")},
		Files: map[models.Format]Upload{
			models.FormatPES: fileUpload("rose.pes", "pes-bytes"),
			models.FormatDST: fileUpload("noext", "dst-bytes"),
		},
	})

	s.Equal(models.AssetStateComplete, d.AssetState)
	s.Require().Len(d.Images, 2)
	s.Regexp(regexp.MustCompile(`/images/image_\d+_0_[0-9a-f]{8}\.png$`), d.Images[0].URL)
	s.Regexp(regexp.MustCompile(`/images/image_\d+_1_[0-9a-f]{8}\.jpg$`), d.Images[1].URL)
	s.Equal("Rose", d.Images[0].Alt)
	s.True(strings.HasSuffix(d.DesignFiles[models.FormatPES], "/files/design_pes.pes"))
	s.True(strings.HasSuffix(d.DesignFiles[models.FormatDST], "/files/design_dst.dst"))
	s.Equal(0, d.Sales)

	stored, err := s.c.designs.GetByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.AssetStateComplete, stored.AssetState)
	s.Equal(d.Images, stored.Images)
	s.Equal(4, s.c.assets.Count(d.ID))
	s.Equal(1.0, testutil.ToFloat64(s.c.metrics.DesignsCreated))
}

func (s *DesignServiceTestSuite) TestCreateResetsCounters() {
	draft := draftDesign("Tulip", "4.50")
	draft.Sales = 99
	draft.Downloads = 12
	draft.Images = []models.Image{{URL: "http://elsewhere/x.png"}}

	d, err := s.c.service.Create(s.ctx, draft, AssetUploads{})
	s.Require().NoError(err)
	s.Zero(d.Sales)
	s.Zero(d.Downloads)
	s.Empty(d.Images)
}

func (s *DesignServiceTestSuite) TestCreateRejectsInvalidDraft() {
	draft := draftDesign("", "10")
	draft.Price = decimal.NewFromInt(-1)

	_, err := s.c.service.Create(s.ctx, draft, AssetUploads{})
	s.Require().Error(err)
	s.True(common.IsKind(err, common.KindValidation))

	var appErr *common.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Contains(appErr.Fields, "title")
	s.Contains(appErr.Fields, "price")

	total, _ := s.c.designs.Count(s.ctx, models.DesignFilter{})
	s.Zero(total)
}

func (s *DesignServiceTestSuite) TestCreateRejectsUnknownFormat() {
	_, err := s.c.service.Create(s.ctx, draftDesign("Rose", "1"), AssetUploads{
		Files: map[models.Format]Upload{"ZIP": fileUpload("rose.zip", "x")},
	})
	s.True(common.IsKind(err, common.KindValidation))
}

func (s *DesignServiceTestSuite) TestCreateLeavesPendingSkeletonOnAssetFailure() {
	s.c.assets.FailWrite = func(area storage.Area, name string) error {
		if strings.Contains(name, "_1_") {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := s.c.service.Create(s.ctx, draftDesign("Daisy", "3"), AssetUploads{
		Images: []Upload{fileUpload("a.png", "a"), fileUpload("b.png", "b")},
	})
	s.Require().Error(err)
	s.True(common.IsKind(err, common.KindStorage))

	var appErr *common.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Contains(appErr.Fields, "images[1]")
	s.NotContains(appErr.Fields, "images[0]")
	s.Contains(appErr.Message, "left pending")

	pending, err := s.c.designs.Find(s.ctx, models.DesignFilter{AssetState: models.AssetStatePending})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Contains(appErr.Message, pending[0].ID.String())

	page, err := s.c.query.List(s.ctx, models.DesignListParams{})
	s.Require().NoError(err)
	s.Empty(page.Designs)

	_, err = s.c.query.Get(s.ctx, pending[0].ID)
	s.True(common.IsKind(err, common.KindNotFound))
}

func (s *DesignServiceTestSuite) TestUpdateKeepsExistingImagesBeforeNewOnes() {
	d := s.create("Rose", AssetUploads{Images: []Upload{fileUpload("a.png", "A")}})
	a := d.Images[0]

	updated, err := s.c.service.Update(s.ctx, d.ID, &models.DesignPatch{KeepImages: []models.Image{a}},
		AssetUploads{Images: []Upload{fileUpload("b.png", "B")}})
	s.Require().NoError(err)
	s.Require().Len(updated.Images, 2)
	s.Equal(a.URL, updated.Images[0].URL)
	s.NotEqual(a.URL, updated.Images[1].URL)
}

func (s *DesignServiceTestSuite) TestUpdateKeepListFiltersAndReorders() {
	d := s.create("Rose", AssetUploads{Images: []Upload{
		fileUpload("1.png", "1"), fileUpload("2.png", "2"), fileUpload("3.png", "3"),
	}})
	first, third := d.Images[0], d.Images[2]
	third.Alt = "close-up"

	updated, err := s.c.service.Update(s.ctx, d.ID, &models.DesignPatch{
		KeepImages: []models.Image{third, {URL: "http://attacker.example/x.png"}, first},
	}, AssetUploads{})
	s.Require().NoError(err)
	s.Require().Len(updated.Images, 2)
	s.Equal(third.URL, updated.Images[0].URL)
	s.Equal("close-up", updated.Images[0].Alt)
	s.Equal(first.URL, updated.Images[1].URL)
}

func (s *DesignServiceTestSuite) TestUpdateWithoutKeepListRetainsAll() {
	d := s.create("Rose", AssetUploads{Images: []Upload{fileUpload("1.png", "1"), fileUpload("2.png", "2")}})
	title := "Wild rose"

	updated, err := s.c.service.Update(s.ctx, d.ID, &models.DesignPatch{Title: &title}, AssetUploads{})
	s.Require().NoError(err)
	s.Equal(d.Images, updated.Images)
	s.Equal("Wild rose", updated.Title)
	s.Equal(d.Description, updated.Description)
}

func (s *DesignServiceTestSuite) TestUpdateReuploadOfOneFormatLeavesOthers() {
	d := s.create("Rose", AssetUploads{Files: map[models.Format]Upload{
		models.FormatPES: fileUpload("rose.pes", "old-pes"),
		models.FormatDST: fileUpload("rose.dst", "dst"),
	}})

	updated, err := s.c.service.Update(s.ctx, d.ID, &models.DesignPatch{}, AssetUploads{Files: map[models.Format]Upload{
		models.FormatPES: fileUpload("new.pes", "new-pes"),
	}})
	s.Require().NoError(err)
	s.Equal(d.DesignFiles[models.FormatDST], updated.DesignFiles[models.FormatDST])
	s.Equal(d.DesignFiles[models.FormatPES], updated.DesignFiles[models.FormatPES])

	blob, ok := s.c.assets.Blob(d.ID, storage.AreaFiles, "design_pes.pes")
	s.Require().True(ok)
	s.Equal("new-pes", string(blob))
}

func (s *DesignServiceTestSuite) TestUpdateAssetFailureChangesNothing() {
	d := s.create("Rose", AssetUploads{})
	s.c.assets.FailWrite = func(storage.Area, string) error { return errors.New("read-only filesystem") }
	title := "Renamed"

	_, err := s.c.service.Update(s.ctx, d.ID, &models.DesignPatch{Title: &title},
		AssetUploads{Images: []Upload{fileUpload("a.png", "a")}})
	s.True(common.IsKind(err, common.KindStorage))

	stored, err := s.c.designs.GetByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Rose", stored.Title)
}

func (s *DesignServiceTestSuite) TestUpdateCompletesPendingDesign() {
	orphan := draftDesign("Orphan", "2")
	orphan.AssetState = models.AssetStatePending
	s.c.seed(orphan)

	updated, err := s.c.service.Update(s.ctx, orphan.ID, &models.DesignPatch{},
		AssetUploads{Images: []Upload{fileUpload("a.png", "a")}})
	s.Require().NoError(err)
	s.Equal(models.AssetStateComplete, updated.AssetState)

	got, err := s.c.query.Get(s.ctx, orphan.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 1)
}

func (s *DesignServiceTestSuite) TestUpdateMissingDesign() {
	_, err := s.c.service.Update(s.ctx, uuid.New(), &models.DesignPatch{}, AssetUploads{})
	s.True(common.IsKind(err, common.KindNotFound))
}

func (s *DesignServiceTestSuite) TestDeleteSucceedsWhenAssetCleanupFails() {
	d := s.create("Rose", AssetUploads{Images: []Upload{fileUpload("a.png", "a")}})
	s.c.assets.FailRemove = errors.New("permission denied")

	s.Require().NoError(s.c.service.Delete(s.ctx, d.ID))

	_, err := s.c.query.GetAny(s.ctx, d.ID)
	s.True(common.IsKind(err, common.KindNotFound))
	s.Equal(1.0, testutil.ToFloat64(s.c.metrics.AssetCleanups.WithLabelValues("error")))
}

func (s *DesignServiceTestSuite) TestDeleteMissingDesign() {
	err := s.c.service.Delete(s.ctx, uuid.New())
	s.True(common.IsKind(err, common.KindNotFound))
}

func (s *DesignServiceTestSuite) TestSetFlagOnMissingDesign() {
	id := uuid.New()
	_, err := s.c.service.SetFlag(s.ctx, id, FlagFeatured, true)
	s.True(common.IsKind(err, common.KindNotFound))

	total, _ := s.c.designs.Count(s.ctx, models.DesignFilter{})
	s.Zero(total)
}

func (s *DesignServiceTestSuite) TestSetFlagRejectsUnknownFlag() {
	d := s.create("Rose", AssetUploads{})
	_, err := s.c.service.SetFlag(s.ctx, d.ID, "sticky", true)
	s.True(common.IsKind(err, common.KindValidation))
}

func (s *DesignServiceTestSuite) TestFeaturedOnlyAfterToggle() {
	catA := &models.Category{ID: uuid.New(), Description: "a", SubcategoryIDs: []uuid.UUID{}}
	catA.Rename("Cat A")
	catB := &models.Category{ID: uuid.New(), Description: "b", SubcategoryIDs: []uuid.UUID{}}
	catB.Rename("Cat B")
	s.Require().NoError(s.c.categories.Create(s.ctx, catA))
	s.Require().NoError(s.c.categories.Create(s.ctx, catB))

	draft := draftDesign("Peony", "12.99")
	draft.Difficulty = models.DifficultyIntermediate
	draft.CategoryIDs = []uuid.UUID{catA.ID, catB.ID}
	d, err := s.c.service.Create(s.ctx, draft, AssetUploads{})
	s.Require().NoError(err)
	s.Len(d.Categories, 2)

	other := draftDesign("Other", "5")
	other.Featured = true
	s.c.seed(other)

	featured, err := s.c.query.Featured(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(featured, 1)
	s.Equal(other.ID, featured[0].ID)

	_, err = s.c.service.SetFlag(s.ctx, d.ID, FlagFeatured, true)
	s.Require().NoError(err)
	s.Require().NoError(s.c.designs.IncrementSales(s.ctx, d.ID))

	featured, err = s.c.query.Featured(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(featured, 2)
	s.Equal(d.ID, featured[0].ID)
	s.Equal(other.ID, featured[1].ID)
	s.Len(featured[0].Categories, 2)
}

func (s *DesignServiceTestSuite) TestSweepOrphans() {
	old := time.Now().Add(-48 * time.Hour)

	stale := draftDesign("Stale", "1")
	stale.AssetState = models.AssetStatePending
	stale.CreatedAt = old
	fresh := draftDesign("Fresh", "1")
	fresh.AssetState = models.AssetStatePending
	done := draftDesign("Done", "1")
	done.CreatedAt = old
	s.c.seed(stale, fresh, done)

	swept, err := s.c.service.SweepOrphans(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, swept)

	_, err = s.c.designs.GetByID(s.ctx, stale.ID)
	s.Error(err)
	_, err = s.c.designs.GetByID(s.ctx, fresh.ID)
	s.NoError(err)
	_, err = s.c.designs.GetByID(s.ctx, done.ID)
	s.NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.c.metrics.OrphansSwept))
}

func (s *DesignServiceTestSuite) TestSweepOrphansStoreFailure() {
	s.c.designs.Fail("ListPendingBefore", errors.New("connection refused"))
	_, err := s.c.service.SweepOrphans(s.ctx, time.Hour)
	s.True(common.IsKind(err, common.KindUpstream))
}
