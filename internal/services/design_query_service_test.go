package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/payments"
	"stitchmart/testhelpers"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seedPriced(c *catalog, n int) {
	for i := 0; i < n; i++ {
		d := draftDesign(fmt.Sprintf("Design %02d", i), fmt.Sprintf("%d.50", i))
		c.seed(d)
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, nil)
	seedPriced(c, 23)

	for _, limit := range []int{1, 5, 10, 23, 50} {
		seen := map[uuid.UUID]bool{}
		pages := int(math.Ceil(23 / float64(limit)))
		for page := 1; page <= pages+1; page++ {
			res, err := c.query.List(ctx, models.DesignListParams{
				Page: fmt.Sprint(page), Limit: fmt.Sprint(limit), SortBy: "price", SortOrder: "asc",
			})
			require.NoError(t, err)
			assert.Equal(t, 23, res.Pagination.Total)
			assert.Equal(t, pages, res.Pagination.Pages, "limit %d", limit)
			assert.LessOrEqual(t, len(res.Designs), limit)
			for _, d := range res.Designs {
				assert.False(t, seen[d.ID], "design repeated across pages")
				seen[d.ID] = true
			}
			if page > pages {
				assert.Empty(t, res.Designs)
			}
		}
		assert.Len(t, seen, 23, "limit %d", limit)
	}
}

func TestListDefaultsAndClamps(t *testing.T) {
	c := newCatalog(t, nil)
	seedPriced(c, 3)

	res, err := c.query.List(context.Background(), models.DesignListParams{Page: "-4", Limit: "9999"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pagination.Page)
	assert.Equal(t, models.MaxLimit, res.Pagination.Limit)
	assert.Len(t, res.Designs, 3)
}

func TestListPriceRange(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, nil)
	seedPriced(c, 30)

	tests := []struct {
		name   string
		raw    string
		lo, hi string
	}{
		{name: "closed", raw: "10-20", lo: "10", hi: "20"},
		{name: "open", raw: "10-", lo: "10"},
		{name: "garbage upper bound", raw: "25-abc", lo: "25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.query.List(ctx, models.DesignListParams{PriceRange: tt.raw, Limit: "100"})
			require.NoError(t, err)
			require.NotEmpty(t, res.Designs)
			for _, d := range res.Designs {
				assert.True(t, d.Price.GreaterThanOrEqual(decimal.RequireFromString(tt.lo)), d.Price.String())
				if tt.hi != "" {
					assert.True(t, d.Price.LessThanOrEqual(decimal.RequireFromString(tt.hi)), d.Price.String())
				}
			}
		})
	}
}

func TestListSearchMatchesTagsCaseInsensitively(t *testing.T) {
	c := newCatalog(t, nil)
	seedPriced(c, 5)
	tagged := draftDesign("Plain", "1")
	tagged.Tags = []string{"Monarch Butterfly"}
	c.seed(tagged)

	res, err := c.query.List(context.Background(), models.DesignListParams{Search: "BUTTERFLY"})
	require.NoError(t, err)
	require.Len(t, res.Designs, 1)
	assert.Equal(t, tagged.ID, res.Designs[0].ID)
}

func TestListMalformedCategoryMatchesNothing(t *testing.T) {
	c := newCatalog(t, nil)
	seedPriced(c, 4)
	c.designs.Fail("Find", errors.New("must not be called"))

	res, err := c.query.List(context.Background(), models.DesignListParams{Category: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, res.Designs)
	assert.Equal(t, 0, res.Pagination.Total)
}

func TestListByCategoryPopulates(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, nil)
	cat := &models.Category{ID: uuid.New(), Description: "flowers", SubcategoryIDs: []uuid.UUID{}}
	cat.Rename("Flowers")
	require.NoError(t, c.categories.Create(ctx, cat))

	gone := uuid.New()
	inCat := draftDesign("Rose", "3")
	inCat.CategoryIDs = []uuid.UUID{cat.ID, gone}
	c.seed(inCat, draftDesign("Boat", "3"))

	res, err := c.query.List(ctx, models.DesignListParams{Category: cat.ID.String()})
	require.NoError(t, err)
	require.Len(t, res.Designs, 1)
	assert.Equal(t, []models.CategorySummary{cat.Summary()}, res.Designs[0].Categories)
}

func TestListStoreFailureIsUpstream(t *testing.T) {
	c := newCatalog(t, nil)
	c.designs.Fail("Count", errors.New("connection reset"))

	_, err := c.query.List(context.Background(), models.DesignListParams{})
	assert.True(t, common.IsKind(err, common.KindUpstream))
}

func TestGetHidesPendingDesigns(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, nil)
	pending := draftDesign("Half", "1")
	pending.AssetState = models.AssetStatePending
	c.seed(pending)

	_, err := c.query.Get(ctx, pending.ID)
	assert.True(t, common.IsKind(err, common.KindNotFound))

	got, err := c.query.GetAny(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)

	_, err = c.query.Get(ctx, uuid.New())
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

func TestPopularOrdering(t *testing.T) {
	c := newCatalog(t, nil)
	a, b, d := draftDesign("A", "1"), draftDesign("B", "1"), draftDesign("C", "1")
	a.Popular, b.Popular, d.Popular = true, true, true
	a.Sales, b.Sales, d.Sales = 5, 5, 9
	a.Downloads, b.Downloads = 1, 7
	c.seed(a, b, d, draftDesign("Not popular", "1"))

	got, err := c.query.Popular(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestCuratedListsUseCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := caching.NewRedisCacheService(mr.Addr(), "", 0)
	c := newCatalog(t, cache)

	featured := draftDesign("Star", "8")
	featured.Featured = true
	c.seed(featured)

	first, err := c.query.Featured(ctx, 4)
	require.NoError(t, err)
	require.Len(t, first, 1)

	c.designs.Fail("Find", errors.New("store offline"))
	second, err := c.query.Featured(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CacheMisses))

	// A flag change drops the cached lists.
	_, err = c.service.SetFlag(ctx, featured.ID, FlagFeatured, false)
	require.NoError(t, err)
	_, err = c.query.Featured(ctx, 4)
	assert.True(t, common.IsKind(err, common.KindUpstream))

	c.designs.Clear("Find")
	after, err := c.query.Featured(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestCompletedPaymentRefreshesCachedSales(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := caching.NewRedisCacheService(mr.Addr(), "", 0)
	c := newCatalog(t, cache)

	leader, runnerUp := draftDesign("Leader", "5"), draftDesign("Runner up", "5")
	leader.Featured, runnerUp.Featured = true, true
	leader.Sales, runnerUp.Sales = 2, 1
	c.seed(leader, runnerUp)

	before, err := c.query.Featured(ctx, 4)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, leader.ID, before[0].ID)
	_, err = c.query.Get(ctx, runnerUp.ID)
	require.NoError(t, err)

	provider := &MockPaymentProvider{}
	provider.Test(t)
	txs := NewTransactionService(testhelpers.NewTransactionStore(), c.designs, provider, cache, c.metrics, zaptest.NewLogger(t))
	buyer := uuid.New()
	for _, id := range []string{"PAY-1", "PAY-2"} {
		provider.On("CreatePayment", mock.Anything, mock.Anything).
			Return(&payments.Payment{ID: id, ApprovalURL: "https://paypal.test/" + id, Token: "EC-" + id}, nil).Once()
		provider.On("ExecutePayment", mock.Anything, id, "P").
			Return(&payments.Execution{ID: id, State: "approved"}, nil).Once()

		_, err := txs.Checkout(ctx, buyer, runnerUp.ID)
		require.NoError(t, err)
		_, err = txs.Execute(ctx, buyer, models.ExecutePaymentRequest{PaymentID: id, Token: "EC-" + id, PayerID: "P"})
		require.NoError(t, err)
	}
	provider.AssertExpectations(t)

	after, err := c.query.Featured(ctx, 4)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, runnerUp.ID, after[0].ID)
	assert.Equal(t, 3, after[0].Sales)

	got, err := c.query.Get(ctx, runnerUp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Sales)
}

func TestGetUsesCacheAndSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := newCatalog(t, caching.NewRedisCacheService(mr.Addr(), "", 0))
	d := draftDesign("Cached", "2")
	c.seed(d)

	_, err := c.query.Get(ctx, d.ID)
	require.NoError(t, err)

	c.designs.Fail("GetByID", errors.New("store offline"))
	got, err := c.query.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Title, got.Title)

	c.designs.Clear("GetByID")
	mr.Close()
	got, err = c.query.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
}
