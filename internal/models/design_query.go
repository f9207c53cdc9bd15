package models

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultPage         = 1
	DefaultLimit        = 20
	MaxLimit            = 100
	DefaultCuratedLimit = 8
)

type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortPrice       SortField = "price"
	SortTitle       SortField = "title"
	SortSales       SortField = "sales"
	SortDownloads   SortField = "downloads"
	SortRating      SortField = "rating"
	SortStitchCount SortField = "stitchCount"
)

var sortable = map[SortField]bool{
	SortCreatedAt: true, SortUpdatedAt: true, SortPrice: true, SortTitle: true,
	SortSales: true, SortDownloads: true, SortRating: true, SortStitchCount: true,
}

type SortKey struct {
	Field SortField
	Desc  bool
}

// DesignListParams holds the raw listing parameters as received from a client.
type DesignListParams struct {
	Search     string `query:"search"`
	Category   string `query:"category"`
	Difficulty string `query:"difficulty"`
	PriceRange string `query:"priceRange"`
	SortBy     string `query:"sortBy"`
	SortOrder  string `query:"sortOrder"`
	Page       string `query:"page"`
	Limit      string `query:"limit"`
}

// DesignFilter is the store-facing form of a listing request.
type DesignFilter struct {
	Search     string
	CategoryID *uuid.UUID
	Difficulty Difficulty
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Featured   *bool
	Popular    *bool
	AssetState AssetState
	// MatchNone is set when a filter value can never match, e.g. a malformed category id.
	MatchNone bool

	Sort  []SortKey
	Skip  int
	Limit int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type DesignPage struct {
	Designs    []*Design  `json:"designs"`
	Pagination Pagination `json:"pagination"`
}

// BuildDesignFilter turns raw listing parameters into a filter plus the
// page and limit it was built with. Unusable values fall back to defaults.
func BuildDesignFilter(p DesignListParams) (DesignFilter, int, int) {
	page := parsePositive(p.Page, DefaultPage)
	if page > math.MaxInt32 {
		page = math.MaxInt32
	}
	limit := parsePositive(p.Limit, DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}

	f := DesignFilter{
		Search:     strings.TrimSpace(p.Search),
		Difficulty: Difficulty(strings.TrimSpace(p.Difficulty)),
		Skip:       (page - 1) * limit,
		Limit:      limit,
	}

	if c := strings.TrimSpace(p.Category); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			f.MatchNone = true
		} else {
			f.CategoryID = &id
		}
	}

	f.MinPrice, f.MaxPrice = ParsePriceRange(p.PriceRange)

	field := SortField(strings.TrimSpace(p.SortBy))
	if !sortable[field] {
		field = SortCreatedAt
	}
	f.Sort = []SortKey{{Field: field, Desc: !strings.EqualFold(strings.TrimSpace(p.SortOrder), "asc")}}

	return f, page, limit
}

// FeaturedFilter selects featured designs, best sellers first.
func FeaturedFilter(limit int) DesignFilter {
	yes := true
	return DesignFilter{
		Featured: &yes,
		Sort:     []SortKey{{SortSales, true}, {SortRating, true}},
		Limit:    curatedLimit(limit),
	}
}

// PopularFilter selects popular designs ordered by sales, downloads and rating.
func PopularFilter(limit int) DesignFilter {
	yes := true
	return DesignFilter{
		Popular: &yes,
		Sort:    []SortKey{{SortSales, true}, {SortDownloads, true}, {SortRating, true}},
		Limit:   curatedLimit(limit),
	}
}

// ParsePriceRange reads "min-max" or "min-". A bound that does not parse is absent.
func ParsePriceRange(raw string) (lo, hi *decimal.Decimal) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	minPart, maxPart, found := strings.Cut(raw, "-")
	if v, err := decimal.NewFromString(strings.TrimSpace(minPart)); err == nil {
		lo = &v
	}
	if found {
		if v, err := decimal.NewFromString(strings.TrimSpace(maxPart)); err == nil {
			hi = &v
		}
	}
	return lo, hi
}

// NewPagination computes the envelope for a page of results.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// Matches evaluates the filter predicate against a single design.
func (f DesignFilter) Matches(d *Design) bool {
	if f.MatchNone {
		return false
	}
	if f.Search != "" && !matchesSearch(d, f.Search) {
		return false
	}
	if f.CategoryID != nil && !d.HasCategory(*f.CategoryID) {
		return false
	}
	if f.Difficulty != "" && d.Difficulty != f.Difficulty {
		return false
	}
	if f.MinPrice != nil && d.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && d.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Featured != nil && d.Featured != *f.Featured {
		return false
	}
	if f.Popular != nil && d.Popular != *f.Popular {
		return false
	}
	if f.AssetState != "" && d.AssetState != f.AssetState {
		return false
	}
	return true
}

// SortDesigns orders designs in place by the filter's sort keys.
func (f DesignFilter) SortDesigns(designs []*Design) {
	sort.SliceStable(designs, func(i, j int) bool {
		for _, k := range f.Sort {
			c := compareField(designs[i], designs[j], k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func matchesSearch(d *Design, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Description), q) {
		return true
	}
	for _, t := range d.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func compareField(a, b *Design, field SortField) int {
	switch field {
	case SortPrice:
		return a.Price.Cmp(b.Price)
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	case SortSales:
		return compareInt(a.Sales, b.Sales)
	case SortDownloads:
		return compareInt(a.Downloads, b.Downloads)
	case SortStitchCount:
		return compareInt(a.StitchCount, b.StitchCount)
	case SortRating:
		switch {
		case a.Rating.Average < b.Rating.Average:
			return -1
		case a.Rating.Average > b.Rating.Average:
			return 1
		}
		return 0
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func curatedLimit(limit int) int {
	if limit < 1 {
		return DefaultCuratedLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
