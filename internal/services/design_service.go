package services

import (
	"context"
	"errors"
	"fmt"
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
	FlagFeatured = "featured"
	FlagPopular  = "popular"
)

// DesignService implements the admin write side of the catalog.
type DesignService interface {
	// Create stores a skeleton, ingests its assets and marks it complete.
	// When ingestion fails the skeleton stays in pending_assets.
	Create(ctx context.Context, draft *models.Design, uploads AssetUploads) (*models.Design, error)
	Update(ctx context.Context, id uuid.UUID, patch *models.DesignPatch, uploads AssetUploads) (*models.Design, error)
	// Delete removes the record, then its assets on a best-effort basis.
	Delete(ctx context.Context, id uuid.UUID) error
	SetFlag(ctx context.Context, id uuid.UUID, flag string, value bool) (*models.Design, error)
	// SweepOrphans deletes designs stuck in pending_assets for longer than maxAge.
	SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error)
}

type designService struct {
	designs  repositories.DesignRepository
	query    DesignQueryService
	ingestor AssetIngestor
	cache    caching.CacheService
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

func NewDesignService(designs repositories.DesignRepository, query DesignQueryService, ingestor AssetIngestor, cache caching.CacheService, collector *metrics.Collector, logger *zap.Logger) DesignService {
	return &designService{
		designs:  designs,
		query:    query,
		ingestor: ingestor,
		cache:    cache,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *designService) Create(ctx context.Context, draft *models.Design, uploads AssetUploads) (*models.Design, error) {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	draft.Images = []models.Image{}
	draft.DesignFiles = map[models.Format]string{}
	draft.Downloads = 0
	draft.Sales = 0
	draft.Rating = models.Rating{}
	draft.AssetState = models.AssetStatePending
	if draft.CategoryIDs == nil {
		draft.CategoryIDs = []uuid.UUID{}
	}
	if draft.Formats == nil {
		draft.Formats = []models.Format{}
	}
	if draft.Tags == nil {
		draft.Tags = []string{}
	}

	if err := draft.Validate(); err != nil {
		return nil, validationError(err)
	}
	if err := validateFormats(uploads); err != nil {
		return nil, err
	}

	if err := s.designs.Create(ctx, draft); err != nil {
		return nil, storeError(err, "Design")
	}
	s.metrics.DesignCreated()
	log := s.logger.With(zap.Stringer("design_id", draft.ID))

	result := s.ingestor.Ingest(ctx, draft.ID, draft.Title, uploads)
	if err := result.Err(); err != nil {
		log.Warn("design left pending after asset failure", zap.Error(err))
		return nil, withDesignID(err, draft.ID)
	}

	if err := s.designs.SetAssets(ctx, draft.ID, result.Images, result.Files, models.AssetStateComplete); err != nil {
		log.Warn("design left pending after asset patch failure", zap.Error(err))
		return nil, withDesignID(common.Upstream("attach assets", err), draft.ID)
	}
	draft.Images = result.Images
	draft.DesignFiles = result.Files
	draft.AssetState = models.AssetStateComplete

	if err := s.query.Populate(ctx, draft); err != nil {
		return nil, err
	}
	s.invalidate(ctx, draft.ID)
	log.Info("design created", zap.Int("images", len(draft.Images)), zap.Int("files", len(draft.DesignFiles)))
	return draft, nil
}

func (s *designService) Update(ctx context.Context, id uuid.UUID, patch *models.DesignPatch, uploads AssetUploads) (*models.Design, error) {
	design, err := s.designs.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Design")
	}

	patch.Apply(design)
	if err := design.Validate(); err != nil {
		return nil, validationError(err)
	}
	if err := validateFormats(uploads); err != nil {
		return nil, err
	}

	result := s.ingestor.Ingest(ctx, id, design.Title, uploads)
	if err := result.Err(); err != nil {
		return nil, err
	}

	design.Images = models.MergeImages(design.Images, retainedImages(design.Images, patch.KeepImages), result.Images)
	design.DesignFiles = models.MergeDesignFiles(design.DesignFiles, result.Files)

	if err := s.designs.Update(ctx, design); err != nil {
		return nil, storeError(err, "Design")
	}
	if design.AssetState != models.AssetStateComplete {
		if err := s.designs.SetAssets(ctx, id, design.Images, design.DesignFiles, models.AssetStateComplete); err != nil {
			return nil, storeError(err, "Design")
		}
		design.AssetState = models.AssetStateComplete
	}

	if err := s.query.Populate(ctx, design); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return design, nil
}

func (s *designService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.designs.Delete(ctx, id); err != nil {
		return storeError(err, "Design")
	}
	s.metrics.DesignDeleted()
	s.invalidate(ctx, id)

	if err := s.ingestor.Remove(ctx, id); err != nil {
		s.logger.Warn("asset cleanup failed", zap.Stringer("design_id", id), zap.Error(err))
	}
	return nil
}

func (s *designService) SetFlag(ctx context.Context, id uuid.UUID, flag string, value bool) (*models.Design, error) {
	if flag != FlagFeatured && flag != FlagPopular {
		return nil, common.Validation("unknown flag", map[string]string{"flag": flag})
	}
	design, err := s.designs.SetFlag(ctx, id, flag, value)
	if err != nil {
		return nil, storeError(err, "Design")
	}
	if err := s.query.Populate(ctx, design); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return design, nil
}

func (s *designService) SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := s.designs.ListPendingBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, common.Upstream("list pending designs", err)
	}

	swept := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		err := s.designs.Delete(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return swept, common.Upstream("delete pending design", err)
		}
		swept++
		s.metrics.OrphanSwept()
		if err := s.ingestor.Remove(ctx, id); err != nil {
			s.logger.Warn("orphan asset cleanup failed", zap.Stringer("design_id", id), zap.Error(err))
		}
	}
	return swept, nil
}

func (s *designService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteDesign(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Stringer("design_id", id), zap.Error(err))
	}
	if err := s.cache.InvalidateDesignLists(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("scope", "lists"), zap.Error(err))
	}
}

// retainedImages keeps the caller's "keep" entries that refer to an image
// actually stored on the design, in the caller's order. Nil means keep all.
func retainedImages(stored, keep []models.Image) []models.Image {
	if keep == nil {
		return nil
	}
	byURL := make(map[string]models.Image, len(stored))
	for _, img := range stored {
		byURL[img.URL] = img
	}
	out := make([]models.Image, 0, len(keep))
	for _, k := range keep {
		if st, ok := byURL[k.URL]; ok {
			if k.Thumbnail == "" {
				k.Thumbnail = st.Thumbnail
			}
			out = append(out, k)
		}
	}
	return out
}

func validateFormats(uploads AssetUploads) error {
	for format := range uploads.Files {
		if !format.Valid() {
			return common.Validation("unsupported design file format", map[string]string{
				FileField(format): fmt.Sprintf("unsupported format %q", format),
			})
		}
	}
	return nil
}

func validationError(err error) error {
	var fields models.FieldErrors
	if errors.As(err, &fields) {
		return common.Validation("Validation failed", fields)
	}
	return common.Validation(err.Error(), nil)
}

// withDesignID tells the caller which skeleton record a failed create left behind.
func withDesignID(err error, id uuid.UUID) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		out := *appErr
		out.Message = fmt.Sprintf("%s (design %s left pending)", appErr.Message, id)
		return &out
	}
	return fmt.Errorf("design %s left pending: %w", id, err)
}
