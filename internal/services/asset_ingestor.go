package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stitchmart/internal/common"
	"stitchmart/internal/metrics"
	"stitchmart/internal/models"
	"stitchmart/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Upload is one received file, opened lazily.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AssetUploads groups the files of one create or update request.
type AssetUploads struct {
	Images []Upload
	Files  map[models.Format]Upload
}

func (u AssetUploads) Empty() bool {
	return len(u.Images) == 0 && len(u.Files) == 0
}

// IngestResult lists what was stored and which request fields failed.
type IngestResult struct {
	Images   []models.Image
	Files    map[models.Format]string
	Failures map[string]error
}

// Err summarizes the failures as a storage error, or nil when everything was stored.
func (r *IngestResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	fields := make(map[string]string, len(r.Failures))
	errs := make([]error, 0, len(r.Failures))
	names := make([]string, 0, len(r.Failures))
	for field := range r.Failures {
		names = append(names, field)
	}
	sort.Strings(names)
	for _, field := range names {
		fields[field] = r.Failures[field].Error()
		errs = append(errs, fmt.Errorf("%s: %w", field, r.Failures[field]))
	}
	appErr := common.Storage("failed to store uploaded files", errors.Join(errs...))
	appErr.Fields = fields
	return appErr
}

// AssetIngestor writes design uploads to the asset store.
type AssetIngestor interface {
	// Ingest stores uploads under the design's directory. Images get fresh
	// names; a design file replaces the previous file of the same format.
	Ingest(ctx context.Context, designID uuid.UUID, alt string, uploads AssetUploads) *IngestResult
	// Remove deletes every stored asset of a design.
	Remove(ctx context.Context, designID uuid.UUID) error
}

type assetIngestor struct {
	store     storage.AssetStore
	thumbSize int
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssetIngestor creates an ingestor. A positive thumbSize also stores a
// square-bounded JPEG thumbnail next to each image.
func NewAssetIngestor(store storage.AssetStore, thumbSize int, collector *metrics.Collector, logger *zap.Logger) AssetIngestor {
	return &assetIngestor{
		store:     store,
		thumbSize: thumbSize,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

func (a *assetIngestor) Ingest(ctx context.Context, designID uuid.UUID, alt string, uploads AssetUploads) *IngestResult {
	res := &IngestResult{
		Images:   []models.Image{},
		Files:    map[models.Format]string{},
		Failures: map[string]error{},
	}

	if len(uploads.Images) > 0 {
		if err := a.store.EnsureDir(ctx, designID, storage.AreaImages); err != nil {
			for i := range uploads.Images {
				res.Failures[imageField(i)] = err
			}
		} else {
			stamp := a.now().UnixMilli()
			for i, up := range uploads.Images {
				img, err := a.writeImage(ctx, designID, imageName(stamp, i, up.Filename), alt, up)
				a.metrics.AssetWrite(string(storage.AreaImages), err)
				if err != nil {
					res.Failures[imageField(i)] = err
					continue
				}
				res.Images = append(res.Images, img)
			}
		}
	}

	if len(uploads.Files) > 0 {
		if err := a.store.EnsureDir(ctx, designID, storage.AreaFiles); err != nil {
			for format := range uploads.Files {
				res.Failures[FileField(format)] = err
			}
			return res
		}
		for _, format := range sortedFormats(uploads.Files) {
			up := uploads.Files[format]
			url, err := a.write(ctx, designID, storage.AreaFiles, designFileName(format), up)
			a.metrics.AssetWrite(string(storage.AreaFiles), err)
			if err != nil {
				res.Failures[FileField(format)] = err
				continue
			}
			res.Files[format] = url
		}
	}

	return res
}

func (a *assetIngestor) writeImage(ctx context.Context, designID uuid.UUID, name, alt string, up Upload) (models.Image, error) {
	if a.thumbSize <= 0 {
		url, err := a.write(ctx, designID, storage.AreaImages, name, up)
		return models.Image{URL: url, Alt: alt}, err
	}

	data, err := readUpload(up)
	if err != nil {
		return models.Image{}, err
	}
	url, err := a.store.Write(ctx, designID, storage.AreaImages, name, bytes.NewReader(data), int64(len(data)), up.ContentType)
	if err != nil {
		return models.Image{}, err
	}
	img := models.Image{URL: url, Alt: alt}

	thumb, err := a.thumbnail(data)
	if err != nil {
		a.logger.Warn("thumbnail skipped", zap.Stringer("design_id", designID), zap.String("image", name), zap.Error(err))
		return img, nil
	}
	thumbName := "thumb_" + strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	img.Thumbnail, err = a.store.Write(ctx, designID, storage.AreaImages, thumbName, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg")
	if err != nil {
		a.logger.Warn("thumbnail write failed", zap.Stringer("design_id", designID), zap.String("image", name), zap.Error(err))
		img.Thumbnail = ""
	}
	return img, nil
}

func (a *assetIngestor) thumbnail(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(src, a.thumbSize, a.thumbSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *assetIngestor) write(ctx context.Context, designID uuid.UUID, area storage.Area, name string, up Upload) (string, error) {
	rc, err := up.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", up.Filename, err)
	}
	defer rc.Close()
	return a.store.Write(ctx, designID, area, name, rc, up.Size, up.ContentType)
}

func (a *assetIngestor) Remove(ctx context.Context, designID uuid.UUID) error {
	err := a.store.RemoveAll(ctx, designID)
	a.metrics.AssetCleanup(err)
	return err
}

func readUpload(up Upload) ([]byte, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", up.Filename, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// imageName is unique per upload: timestamp, position and a random suffix.
func imageName(stamp int64, i int, filename string) string {
	return fmt.Sprintf("image_%d_%d_%s%s", stamp, i, uuid.NewString()[:8], extension(filename))
}

// designFileName depends on the format alone so a re-upload overwrites the
// previous file whatever the uploaded name was.
func designFileName(format models.Format) string {
	return "design_" + strings.ToLower(string(format)) + format.Ext()
}

func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func imageField(i int) string {
	return fmt.Sprintf("images[%d]", i)
}

// FileField is the multipart field name of a per-format design file.
func FileField(format models.Format) string {
	return "designFile_" + string(format)
}

func sortedFormats(files map[models.Format]Upload) []models.Format {
	out := make([]models.Format, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
