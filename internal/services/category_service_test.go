package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/testhelpers"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type CategoryServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *testhelpers.CategoryStore
	logs  *observer.ObservedLogs
	svc   CategoryService
}

func (s *CategoryServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = testhelpers.NewCategoryStore()
	core, logs := observer.New(zap.InfoLevel)
	s.logs = logs
	s.svc = NewCategoryService(s.store, nil, time.Minute, zap.New(core))
}

func TestCategoryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CategoryServiceTestSuite))
}

func (s *CategoryServiceTestSuite) create(name string, parent *uuid.UUID) *models.Category {
	c, err := s.svc.Create(s.ctx, models.CategoryInput{Name: name, Description: name + " designs", ParentID: parent})
	s.Require().NoError(err)
	return c
}

func (s *CategoryServiceTestSuite) TestCreateDerivesSlug() {
	c := s.create("Roses & Blooms!", nil)
	s.Equal("roses-blooms", c.Slug)
	s.Nil(c.ParentID)

	updated, err := s.svc.Update(s.ctx, c.ID, models.CategoryInput{Name: "Roses & Blooms!", Description: "again"})
	s.Require().NoError(err)
	s.Equal("roses-blooms", updated.Slug)
}

func (s *CategoryServiceTestSuite) TestCreateDuplicateSlugConflicts() {
	s.create("Animals", nil)
	_, err := s.svc.Create(s.ctx, models.CategoryInput{Name: "animals!!", Description: "dup"})
	s.True(common.IsKind(err, common.KindConflict))
}

func (s *CategoryServiceTestSuite) TestCreateRejectsNameWithoutLetters() {
	_, err := s.svc.Create(s.ctx, models.CategoryInput{Name: "!!!", Description: "x"})
	s.True(common.IsKind(err, common.KindValidation))
}

func (s *CategoryServiceTestSuite) TestCreateWithParentLinksBothSides() {
	parent := s.create("Flowers", nil)
	child := s.create("Roses", &parent.ID)
	s.Require().NotNil(child.ParentID)
	s.Equal(parent.ID, *child.ParentID)

	got, err := s.svc.Get(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Equal([]models.CategorySummary{child.Summary()}, got.Subcategories)

	main, err := s.svc.Main(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(main, 1)
	s.Equal(parent.ID, main[0].ID)
	s.Len(main[0].Subcategories, 1)
}

func (s *CategoryServiceTestSuite) TestParentRules() {
	root := s.create("Root", nil)
	sub := s.create("Sub", &root.ID)

	_, err := s.svc.Create(s.ctx, models.CategoryInput{Name: "Deep", Description: "x", ParentID: &sub.ID})
	s.True(common.IsKind(err, common.KindValidation), "parent may not be a subcategory")

	missing := uuid.New()
	_, err = s.svc.Create(s.ctx, models.CategoryInput{Name: "Lost", Description: "x", ParentID: &missing})
	s.True(common.IsKind(err, common.KindNotFound))

	_, err = s.svc.LinkSubcategory(s.ctx, root.ID, root.ID)
	s.True(common.IsKind(err, common.KindValidation))

	other := s.create("Other", nil)
	_, err = s.svc.LinkSubcategory(s.ctx, other.ID, root.ID)
	s.True(common.IsKind(err, common.KindValidation), "a category with children cannot become a child")
}

func (s *CategoryServiceTestSuite) TestLinkHalfAppliedIsReported() {
	parent := s.create("Parent", nil)
	child := s.create("Child", nil)
	s.store.Fail("AddSubcategory", errors.New("connection lost"))

	_, err := s.svc.LinkSubcategory(s.ctx, parent.ID, child.ID)
	s.Require().Error(err)
	s.True(common.IsKind(err, common.KindUpstream))
	s.Contains(err.Error(), "parent list was not updated")
	s.Equal(1, s.logs.FilterMessage("subcategory link half applied").Len())

	stored, err := s.store.GetByID(s.ctx, child.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.ParentID)
	s.Equal(parent.ID, *stored.ParentID)
}

func (s *CategoryServiceTestSuite) TestGetMissing() {
	_, err := s.svc.Get(s.ctx, uuid.New())
	s.True(common.IsKind(err, common.KindNotFound))
}

func (s *CategoryServiceTestSuite) TestMainIsCached() {
	mr := miniredis.RunT(s.T())
	svc := NewCategoryService(s.store, caching.NewRedisCacheService(mr.Addr(), "", 0), time.Minute, zap.NewNop())

	_, err := svc.Create(s.ctx, models.CategoryInput{Name: "Seasonal", Description: "x"})
	s.Require().NoError(err)
	first, err := svc.Main(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	s.store.Fail("ListRootCategories", errors.New("offline"))
	second, err := svc.Main(s.ctx)
	s.Require().NoError(err)
	s.Equal(first[0].ID, second[0].ID)

	_, err = svc.Create(s.ctx, models.CategoryInput{Name: "Holiday", Description: "x"})
	s.Require().NoError(err)
	_, err = svc.Main(s.ctx)
	s.True(common.IsKind(err, common.KindUpstream), "create invalidates the cached tree")
}

func (s *CategoryServiceTestSuite) TestRenameDropsCachedDesignLists() {
	mr := miniredis.RunT(s.T())
	cache := caching.NewRedisCacheService(mr.Addr(), "", 0)
	svc := NewCategoryService(s.store, cache, time.Minute, zap.NewNop())
	floral := s.create("Floral", nil)

	listed := &models.Design{ID: uuid.New(), Title: "Rose", Categories: []models.CategorySummary{{ID: floral.ID, Name: floral.Name}}}
	s.Require().NoError(cache.SetDesignList(s.ctx, "featured", 8, []*models.Design{listed}, time.Minute))

	renamed, err := svc.Update(s.ctx, floral.ID, models.CategoryInput{Name: "Botanical", Description: "x"})
	s.Require().NoError(err)
	s.Equal("Botanical", renamed.Name)

	list, err := cache.GetDesignList(s.ctx, "featured", 8)
	s.Require().NoError(err)
	s.Nil(list, "a rename drops lists that carry the old category name")
}
