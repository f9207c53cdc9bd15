package services

import (
	"io"
	"strings"
	"testing"
	"time"

	"stitchmart/internal/caching"
	"stitchmart/internal/metrics"
	"stitchmart/internal/models"
	"stitchmart/testhelpers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

func fileUpload(name, content string) Upload {
	return Upload{
		Filename:    name,
		ContentType: "application/octet-stream",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

// catalog wires the design services over in-memory stores.
type catalog struct {
	designs    *testhelpers.DesignStore
	categories *testhelpers.CategoryStore
	assets     *testhelpers.AssetStore
	metrics    *metrics.Collector
	query      DesignQueryService
	ingestor   AssetIngestor
	service    DesignService
}

func newCatalog(t *testing.T, cache caching.CacheService) *catalog {
	t.Helper()
	logger := zaptest.NewLogger(t)
	c := &catalog{
		designs:    testhelpers.NewDesignStore(),
		categories: testhelpers.NewCategoryStore(),
		assets:     testhelpers.NewAssetStore(),
		metrics:    metrics.NewCollector("test"),
	}
	c.query = NewDesignQueryService(c.designs, c.categories, cache, time.Minute, c.metrics, logger)
	c.ingestor = NewAssetIngestor(c.assets, 0, c.metrics, logger)
	c.service = NewDesignService(c.designs, c.query, c.ingestor, cache, c.metrics, logger)
	return c
}

func draftDesign(title, price string) *models.Design {
	return &models.Design{
		Title:       title,
		Description: title + " pattern",
		Price:       decimal.RequireFromString(price),
		Difficulty:  models.DifficultyBeginner,
		StitchCount: 1200,
	}
}

// seed stores complete designs directly, bypassing asset ingestion.
func (c *catalog) seed(designs ...*models.Design) {
	for _, d := range designs {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.AssetState == "" {
			d.AssetState = models.AssetStateComplete
		}
		c.designs.Put(d)
	}
}
