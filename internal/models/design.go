package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Format identifies an embroidery machine file type.
type Format string

const (
	FormatSVG Format = "SVG"
	FormatPNG Format = "PNG"
	FormatDST Format = "DST"
	FormatPES Format = "PES"
	FormatJEF Format = "JEF"
	FormatEXP Format = "EXP"
	FormatHUS Format = "HUS"
	FormatVP3 Format = "VP3"
	FormatXXX Format = "XXX"
	FormatPDF Format = "PDF"
)

// AllFormats lists the accepted design file formats in display order.
var AllFormats = []Format{
	FormatSVG, FormatPNG, FormatDST, FormatPES, FormatJEF,
	FormatEXP, FormatHUS, FormatVP3, FormatXXX, FormatPDF,
}

func (f Format) Valid() bool {
	for _, known := range AllFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Ext is the extension design files of this format are stored under.
func (f Format) Ext() string {
	return "." + strings.ToLower(string(f))
}

// ParseFormat accepts format codes in any case.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToUpper(strings.TrimSpace(s)))
	return f, f.Valid()
}

// AssetState tracks the two-phase create of a design.
type AssetState string

const (
	AssetStatePending  AssetState = "pending_assets"
	AssetStateComplete AssetState = "complete"
)

type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// CategorySummary is the populated form of a category reference.
type CategorySummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
}

type Design struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Title       string            `json:"title" db:"title"`
	Description string            `json:"description" db:"description"`
	Price       decimal.Decimal   `json:"price" db:"price"`
	Difficulty  Difficulty        `json:"difficulty" db:"difficulty"`
	StitchCount int               `json:"stitchCount" db:"stitch_count"`
	Images      []Image           `json:"images" db:"images"`
	DesignFiles map[Format]string `json:"designFiles" db:"design_files"`
	CategoryIDs []uuid.UUID       `json:"-" db:"categories"`
	Categories  []CategorySummary `json:"categories" db:"-"` // filled by the read-side join
	Formats     []Format          `json:"formats" db:"formats"`
	Tags        []string          `json:"tags" db:"tags"`
	Downloads   int               `json:"downloads" db:"downloads"`
	Sales       int               `json:"sales" db:"sales"`
	Rating      Rating            `json:"rating" db:"-"`
	Featured    bool              `json:"featured" db:"featured"`
	Popular     bool              `json:"popular" db:"popular"`
	AssetState  AssetState        `json:"assetState" db:"asset_state"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}

// DesignSummary is the short form of a design embedded in other resources.
type DesignSummary struct {
	ID     uuid.UUID       `json:"id"`
	Title  string          `json:"title"`
	Images []Image         `json:"images"`
	Price  decimal.Decimal `json:"price"`
	Sales  int             `json:"sales"`
}

func (d *Design) Summary() DesignSummary {
	return DesignSummary{ID: d.ID, Title: d.Title, Images: d.Images, Price: d.Price, Sales: d.Sales}
}

// NewDesign returns a design with zeroed counters and an empty asset set.
func NewDesign() *Design {
	return &Design{
		ID:          uuid.New(),
		Images:      []Image{},
		DesignFiles: map[Format]string{},
		CategoryIDs: []uuid.UUID{},
		Formats:     []Format{},
		Tags:        []string{},
		AssetState:  AssetStatePending,
	}
}

// Validate checks the field-level invariants of a design.
func (d *Design) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(d.Title) == "" {
		errs["title"] = "title is required"
	}
	if strings.TrimSpace(d.Description) == "" {
		errs["description"] = "description is required"
	}
	if d.Price.IsNegative() {
		errs["price"] = "price must not be negative"
	}
	if !d.Difficulty.Valid() {
		errs["difficulty"] = fmt.Sprintf("difficulty must be one of %s, %s, %s",
			DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced)
	}
	if d.StitchCount < 0 {
		errs["stitchCount"] = "stitchCount must not be negative"
	}
	for _, f := range d.Formats {
		if !f.Valid() {
			errs["formats"] = fmt.Sprintf("unsupported format %q", f)
			break
		}
	}
	for f := range d.DesignFiles {
		if !f.Valid() {
			errs["designFiles"] = fmt.Sprintf("unsupported format %q", f)
			break
		}
	}
	if d.Rating.Average < 0 || d.Rating.Average > 5 {
		errs["rating"] = "rating average must be between 0 and 5"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HasCategory reports whether id is among the design's category references.
func (d *Design) HasCategory(id uuid.UUID) bool {
	for _, c := range d.CategoryIDs {
		if c == id {
			return true
		}
	}
	return false
}

// DesignPatch carries the fields of a partial update. Nil means "leave as is";
// slices replace the stored value wholesale when non-nil.
type DesignPatch struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Difficulty  *Difficulty
	StitchCount *int
	CategoryIDs []uuid.UUID
	Formats     []Format
	Tags        []string
	Featured    *bool
	Popular     *bool

	// KeepImages, when non-nil, is the caller's list of already stored images to retain.
	KeepImages []Image
}

// Apply merges the scalar and array fields of p onto d. Images and design files
// are merged separately once uploads have been persisted.
func (p *DesignPatch) Apply(d *Design) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Price != nil {
		d.Price = *p.Price
	}
	if p.Difficulty != nil {
		d.Difficulty = *p.Difficulty
	}
	if p.StitchCount != nil {
		d.StitchCount = *p.StitchCount
	}
	if p.CategoryIDs != nil {
		d.CategoryIDs = p.CategoryIDs
	}
	if p.Formats != nil {
		d.Formats = p.Formats
	}
	if p.Tags != nil {
		d.Tags = p.Tags
	}
	if p.Featured != nil {
		d.Featured = *p.Featured
	}
	if p.Popular != nil {
		d.Popular = *p.Popular
	}
}

// MergeImages returns the preserved images followed by the newly uploaded ones.
// A nil keep list preserves everything currently stored.
func MergeImages(stored, keep, uploaded []Image) []Image {
	base := stored
	if keep != nil {
		base = keep
	}
	out := make([]Image, 0, len(base)+len(uploaded))
	out = append(out, base...)
	return append(out, uploaded...)
}

// MergeDesignFiles overlays uploaded per-format URLs onto the stored mapping.
func MergeDesignFiles(stored, uploaded map[Format]string) map[Format]string {
	out := make(map[Format]string, len(stored)+len(uploaded))
	for f, url := range stored {
		out[f] = url
	}
	for f, url := range uploaded {
		out[f] = url
	}
	return out
}

// FieldErrors maps a request field to the reason it was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}
