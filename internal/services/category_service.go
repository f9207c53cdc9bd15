package services

import (
	"context"
	"errors"
	"time"

	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CategoryService interface {
	// Main lists top-level categories with their subcategories expanded.
	Main(ctx context.Context) ([]*models.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, in models.CategoryInput) (*models.Category, error)
	Update(ctx context.Context, id uuid.UUID, in models.CategoryInput) (*models.Category, error)
	// LinkSubcategory points child at parent, then appends child to the
	// parent's list. The two writes are not atomic: if the second fails the
	// child already references the parent and the error says so.
	LinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) (*models.Category, error)
}

type categoryService struct {
	categories repositories.CategoryRepository
	cache      caching.CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

func NewCategoryService(categories repositories.CategoryRepository, cache caching.CacheService, cacheTTL time.Duration, logger *zap.Logger) CategoryService {
	return &categoryService{
		categories: categories,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

func (s *categoryService) Main(ctx context.Context) ([]*models.Category, error) {
	if s.cache != nil {
		cached, err := s.cache.GetMainCategories(ctx)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("key", "categories"), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	roots, err := s.categories.ListRootCategories(ctx)
	if err != nil {
		return nil, common.Upstream("list categories", err)
	}
	if err := s.populate(ctx, roots...); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetMainCategories(ctx, roots, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", "categories"), zap.Error(err))
		}
	}
	return roots, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Category")
	}
	if err := s.populate(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *categoryService) Create(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	c := &models.Category{
		ID:             uuid.New(),
		Description:    in.Description,
		Image:          in.Image,
		SubcategoryIDs: []uuid.UUID{},
	}
	c.Rename(in.Name)
	if c.Slug == "" {
		return nil, common.Validation("Validation failed", map[string]string{"name": "name must contain letters or digits"})
	}

	if in.ParentID != nil {
		if _, err := s.parent(ctx, *in.ParentID, c.ID); err != nil {
			return nil, err
		}
	}

	if err := s.categories.Create(ctx, c); err != nil {
		return nil, slugError(err)
	}
	s.invalidate(ctx)

	if in.ParentID != nil {
		if _, err := s.LinkSubcategory(ctx, *in.ParentID, c.ID); err != nil {
			return nil, err
		}
		c.ParentID = in.ParentID
	}
	c.Subcategories = []models.CategorySummary{}
	return c, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, in models.CategoryInput) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Category")
	}

	c.Rename(in.Name)
	if c.Slug == "" {
		return nil, common.Validation("Validation failed", map[string]string{"name": "name must contain letters or digits"})
	}
	c.Description = in.Description
	c.Image = in.Image

	relink := in.ParentID != nil && (c.ParentID == nil || *c.ParentID != *in.ParentID)
	if relink {
		if _, err := s.parent(ctx, *in.ParentID, c.ID); err != nil {
			return nil, err
		}
	}

	if err := s.categories.Update(ctx, c); err != nil {
		return nil, slugError(err)
	}
	s.invalidate(ctx)

	if relink {
		if _, err := s.LinkSubcategory(ctx, *in.ParentID, c.ID); err != nil {
			return nil, err
		}
		c.ParentID = in.ParentID
	}
	if err := s.populate(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *categoryService) LinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) (*models.Category, error) {
	parent, err := s.parent(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}
	child, err := s.categories.GetByID(ctx, childID)
	if err != nil {
		return nil, storeError(err, "Category")
	}
	if len(child.SubcategoryIDs) > 0 {
		return nil, common.Validation("categories nest at most two levels", map[string]string{
			"subcategory": "category has subcategories of its own",
		})
	}

	if err := s.categories.SetParent(ctx, childID, &parentID); err != nil {
		return nil, storeError(err, "Category")
	}
	if err := s.categories.AddSubcategory(ctx, parentID, childID); err != nil {
		s.logger.Error("subcategory link half applied",
			zap.Stringer("parent_id", parentID),
			zap.Stringer("child_id", childID),
			zap.Error(err))
		return nil, common.Upstream("child now references parent but the parent list was not updated", err)
	}
	s.invalidate(ctx)

	if !containsID(parent.SubcategoryIDs, childID) {
		parent.SubcategoryIDs = append(parent.SubcategoryIDs, childID)
	}
	if err := s.populate(ctx, parent); err != nil {
		return nil, err
	}
	return parent, nil
}

// parent loads a category that may take childID as a subcategory.
func (s *categoryService) parent(ctx context.Context, parentID, childID uuid.UUID) (*models.Category, error) {
	if parentID == childID {
		return nil, common.Validation("a category cannot be its own parent", map[string]string{"parent": "must differ from the category"})
	}
	parent, err := s.categories.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NotFound("Parent category")
		}
		return nil, storeError(err, "Category")
	}
	if parent.ParentID != nil {
		return nil, common.Validation("categories nest at most two levels", map[string]string{
			"parent": "parent is itself a subcategory",
		})
	}
	return parent, nil
}

func (s *categoryService) populate(ctx context.Context, categories ...*models.Category) error {
	var ids []uuid.UUID
	for _, c := range categories {
		ids = append(ids, c.SubcategoryIDs...)
	}
	var summaries map[uuid.UUID]models.CategorySummary
	if len(ids) > 0 {
		var err error
		summaries, err = s.categories.Summaries(ctx, ids)
		if err != nil {
			return common.Upstream("load subcategories", err)
		}
	}
	for _, c := range categories {
		c.Subcategories = make([]models.CategorySummary, 0, len(c.SubcategoryIDs))
		for _, id := range c.SubcategoryIDs {
			if sum, ok := summaries[id]; ok {
				c.Subcategories = append(c.Subcategories, sum)
			}
		}
	}
	return nil
}

// invalidate drops the category tree and the curated design lists, which
// embed category names. Cached single designs age out with their TTL.
func (s *categoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCategories(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("key", "categories"), zap.Error(err))
	}
	if err := s.cache.InvalidateDesignLists(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("scope", "lists"), zap.Error(err))
	}
}

func slugError(err error) error {
	if isConflict(err) {
		return common.Conflict("a category with this slug already exists")
	}
	return storeError(err, "Category")
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
