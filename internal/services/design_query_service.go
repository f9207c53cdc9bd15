package services

import (
	"context"
	"time"

	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/metrics"
	"stitchmart/internal/models"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	listFeatured = "featured"
	listPopular  = "popular"
)

// DesignQueryService is the public read side of the catalog.
type DesignQueryService interface {
	List(ctx context.Context, params models.DesignListParams) (*models.DesignPage, error)
	Featured(ctx context.Context, limit int) ([]*models.Design, error)
	Popular(ctx context.Context, limit int) ([]*models.Design, error)
	// Get returns a design visible to shoppers.
	Get(ctx context.Context, id uuid.UUID) (*models.Design, error)
	// GetAny returns a design in any asset state.
	GetAny(ctx context.Context, id uuid.UUID) (*models.Design, error)
	// Populate expands category references on designs in place.
	Populate(ctx context.Context, designs ...*models.Design) error
}

type designQueryService struct {
	designs    repositories.DesignRepository
	categories repositories.CategoryRepository
	cache      caching.CacheService
	cacheTTL   time.Duration
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewDesignQueryService wires the query engine. cache may be nil.
func NewDesignQueryService(designs repositories.DesignRepository, categories repositories.CategoryRepository, cache caching.CacheService, cacheTTL time.Duration, collector *metrics.Collector, logger *zap.Logger) DesignQueryService {
	return &designQueryService{
		designs:    designs,
		categories: categories,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    collector,
		logger:     logger,
	}
}

func (s *designQueryService) List(ctx context.Context, params models.DesignListParams) (*models.DesignPage, error) {
	filter, page, limit := models.BuildDesignFilter(params)
	filter.AssetState = models.AssetStateComplete

	total, err := s.designs.Count(ctx, filter)
	if err != nil {
		return nil, common.Upstream("count designs", err)
	}

	designs := []*models.Design{}
	if total > filter.Skip && !filter.MatchNone {
		designs, err = s.designs.Find(ctx, filter)
		if err != nil {
			return nil, common.Upstream("find designs", err)
		}
	}
	if err := s.Populate(ctx, designs...); err != nil {
		return nil, err
	}

	return &models.DesignPage{
		Designs:    designs,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

func (s *designQueryService) Featured(ctx context.Context, limit int) ([]*models.Design, error) {
	return s.curated(ctx, listFeatured, models.FeaturedFilter(limit))
}

func (s *designQueryService) Popular(ctx context.Context, limit int) ([]*models.Design, error) {
	return s.curated(ctx, listPopular, models.PopularFilter(limit))
}

func (s *designQueryService) curated(ctx context.Context, name string, filter models.DesignFilter) ([]*models.Design, error) {
	filter.AssetState = models.AssetStateComplete

	if s.cache != nil {
		cached, err := s.cache.GetDesignList(ctx, name, filter.Limit)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("list", name), zap.Error(err))
		} else if cached != nil {
			s.metrics.CacheHit()
			return cached, nil
		}
		s.metrics.CacheMiss()
	}

	designs, err := s.designs.Find(ctx, filter)
	if err != nil {
		return nil, common.Upstream("find "+name+" designs", err)
	}
	if err := s.Populate(ctx, designs...); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetDesignList(ctx, name, filter.Limit, designs, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("list", name), zap.Error(err))
		}
	}
	return designs, nil
}

func (s *designQueryService) Get(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDesign(ctx, id)
		if err != nil {
			s.logger.Warn("cache read failed", zap.Stringer("design_id", id), zap.Error(err))
		} else if cached != nil {
			s.metrics.CacheHit()
			return cached, nil
		}
		s.metrics.CacheMiss()
	}

	design, err := s.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if design.AssetState != models.AssetStateComplete {
		return nil, common.NotFound("Design")
	}

	if s.cache != nil {
		if err := s.cache.SetDesign(ctx, design, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.Stringer("design_id", id), zap.Error(err))
		}
	}
	return design, nil
}

func (s *designQueryService) GetAny(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	design, err := s.designs.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Design")
	}
	if err := s.Populate(ctx, design); err != nil {
		return nil, err
	}
	return design, nil
}

// Populate resolves every referenced category in one lookup. References to
// categories that no longer exist are dropped from the expanded form.
func (s *designQueryService) Populate(ctx context.Context, designs ...*models.Design) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, d := range designs {
		for _, id := range d.CategoryIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	var summaries map[uuid.UUID]models.CategorySummary
	if len(ids) > 0 {
		var err error
		summaries, err = s.categories.Summaries(ctx, ids)
		if err != nil {
			return common.Upstream("load categories", err)
		}
	}

	for _, d := range designs {
		d.Categories = make([]models.CategorySummary, 0, len(d.CategoryIDs))
		for _, id := range d.CategoryIDs {
			if c, ok := summaries[id]; ok {
				d.Categories = append(d.Categories, c)
			}
		}
	}
	return nil
}
