package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DesignRepository interface {
	Create(ctx context.Context, design *models.Design) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Design, error)
	Find(ctx context.Context, filter models.DesignFilter) ([]*models.Design, error)
	Count(ctx context.Context, filter models.DesignFilter) (int, error)
	Update(ctx context.Context, design *models.Design) error
	SetAssets(ctx context.Context, id uuid.UUID, images []models.Image, files map[models.Format]string, state models.AssetState) error
	SetFlag(ctx context.Context, id uuid.UUID, flag string, value bool) (*models.Design, error)
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementSales(ctx context.Context, id uuid.UUID) error
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.DesignSummary, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

const designColumns = `id, title, description, price, difficulty, stitch_count, images, design_files,
	categories, formats, tags, downloads, sales, rating_average, rating_count,
	featured, popular, asset_state, created_at, updated_at`

// Flags that may be toggled individually, mapped to their columns.
var designFlags = map[string]string{
	"featured": "featured",
	"popular":  "popular",
}

var designSortColumns = map[models.SortField]string{
	models.SortCreatedAt:   "created_at",
	models.SortUpdatedAt:   "updated_at",
	models.SortPrice:       "price",
	models.SortTitle:       "title",
	models.SortSales:       "sales",
	models.SortDownloads:   "downloads",
	models.SortRating:      "rating_average",
	models.SortStitchCount: "stitch_count",
}

type designRepo struct {
	db DBTX
}

func NewDesignRepo(db DBTX) DesignRepository {
	return &designRepo{db: db}
}

func (r *designRepo) Create(ctx context.Context, d *models.Design) error {
	images, files, err := encodeAssets(d.Images, d.DesignFiles)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO designs (` + designColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		d.ID, d.Title, d.Description, d.Price, string(d.Difficulty), d.StitchCount, images, files,
		d.CategoryIDs, formatStrings(d.Formats), d.Tags, d.Downloads, d.Sales, d.Rating.Average, d.Rating.Count,
		d.Featured, d.Popular, string(d.AssetState),
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err)
}

func (r *designRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	query := `SELECT ` + designColumns + ` FROM designs WHERE id = $1`
	d, err := scanDesign(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

func (r *designRepo) Find(ctx context.Context, filter models.DesignFilter) ([]*models.Design, error) {
	where, args := buildDesignWhere(filter)
	query := `SELECT ` + designColumns + ` FROM designs` + where + buildDesignOrder(filter.Sort)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	designs := []*models.Design{}
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}
	return designs, rows.Err()
}

func (r *designRepo) Count(ctx context.Context, filter models.DesignFilter) (int, error) {
	where, args := buildDesignWhere(filter)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM designs`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *designRepo) Update(ctx context.Context, d *models.Design) error {
	images, files, err := encodeAssets(d.Images, d.DesignFiles)
	if err != nil {
		return err
	}
	query := `
		UPDATE designs
		SET title = $1, description = $2, price = $3, difficulty = $4, stitch_count = $5,
			images = $6, design_files = $7, categories = $8, formats = $9, tags = $10,
			featured = $11, popular = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at
	`
	err = r.db.QueryRow(ctx, query,
		d.Title, d.Description, d.Price, string(d.Difficulty), d.StitchCount,
		images, files, d.CategoryIDs, formatStrings(d.Formats), d.Tags,
		d.Featured, d.Popular, d.ID,
	).Scan(&d.UpdatedAt)
	return translate(err)
}

func (r *designRepo) SetAssets(ctx context.Context, id uuid.UUID, images []models.Image, files map[models.Format]string, state models.AssetState) error {
	imagesJSON, filesJSON, err := encodeAssets(images, files)
	if err != nil {
		return err
	}
	query := `
		UPDATE designs
		SET images = $1, design_files = $2, asset_state = $3, updated_at = NOW()
		WHERE id = $4
	`
	return expectOne(r.db.Exec(ctx, query, imagesJSON, filesJSON, string(state), id))
}

func (r *designRepo) SetFlag(ctx context.Context, id uuid.UUID, flag string, value bool) (*models.Design, error) {
	column, ok := designFlags[flag]
	if !ok {
		return nil, fmt.Errorf("unknown design flag %q", flag)
	}
	query := fmt.Sprintf(`UPDATE designs SET %s = $1, updated_at = NOW() WHERE id = $2 RETURNING %s`, column, designColumns)
	d, err := scanDesign(r.db.QueryRow(ctx, query, value, id))
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

func (r *designRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.db.Exec(ctx, `DELETE FROM designs WHERE id = $1`, id))
}

func (r *designRepo) IncrementSales(ctx context.Context, id uuid.UUID) error {
	return expectOne(r.db.Exec(ctx, `UPDATE designs SET sales = sales + 1, updated_at = NOW() WHERE id = $1`, id))
}

func (r *designRepo) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.DesignSummary, error) {
	out := make(map[uuid.UUID]models.DesignSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, title, images, price, sales FROM designs WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s models.DesignSummary
		var images []byte
		if err := rows.Scan(&s.ID, &s.Title, &images, &s.Price, &s.Sales); err != nil {
			return nil, err
		}
		if err := decodeJSON(images, &s.Images); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *designRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM designs WHERE asset_state = $1 AND created_at < $2`, string(models.AssetStatePending), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// buildDesignWhere renders the filter predicate with positional arguments.
func buildDesignWhere(f models.DesignFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	next := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}

	if f.MatchNone {
		conds = append(conds, `FALSE`)
	}
	if f.Search != "" {
		n := next("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d OR description ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) AS t(tag) WHERE t.tag ILIKE $%d))`, n, n, n))
	}
	if f.CategoryID != nil {
		conds = append(conds, fmt.Sprintf(`$%d = ANY(categories)`, next(*f.CategoryID)))
	}
	if f.Difficulty != "" {
		conds = append(conds, fmt.Sprintf(`difficulty = $%d`, next(string(f.Difficulty))))
	}
	if f.MinPrice != nil {
		conds = append(conds, fmt.Sprintf(`price >= $%d`, next(*f.MinPrice)))
	}
	if f.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf(`price <= $%d`, next(*f.MaxPrice)))
	}
	if f.Featured != nil {
		conds = append(conds, fmt.Sprintf(`featured = $%d`, next(*f.Featured)))
	}
	if f.Popular != nil {
		conds = append(conds, fmt.Sprintf(`popular = $%d`, next(*f.Popular)))
	}
	if f.AssetState != "" {
		conds = append(conds, fmt.Sprintf(`asset_state = $%d`, next(string(f.AssetState))))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildDesignOrder(keys []models.SortKey) string {
	if len(keys) == 0 {
		return " ORDER BY created_at DESC"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		column, ok := designSortColumns[k.Field]
		if !ok {
			column = "created_at"
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, column+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func scanDesign(row pgx.Row) (*models.Design, error) {
	d := &models.Design{}
	var images, files []byte
	var difficulty, state string
	var formats []string
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.Price, &difficulty, &d.StitchCount, &images, &files,
		&d.CategoryIDs, &formats, &d.Tags, &d.Downloads, &d.Sales, &d.Rating.Average, &d.Rating.Count,
		&d.Featured, &d.Popular, &state, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Difficulty = models.Difficulty(difficulty)
	d.AssetState = models.AssetState(state)
	d.Formats = make([]models.Format, len(formats))
	for i, f := range formats {
		d.Formats[i] = models.Format(f)
	}
	if d.CategoryIDs == nil {
		d.CategoryIDs = []uuid.UUID{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if err := decodeJSON(images, &d.Images); err != nil {
		return nil, err
	}
	if err := decodeJSON(files, &d.DesignFiles); err != nil {
		return nil, err
	}
	if d.Images == nil {
		d.Images = []models.Image{}
	}
	if d.DesignFiles == nil {
		d.DesignFiles = map[models.Format]string{}
	}
	return d, nil
}

func encodeAssets(images []models.Image, files map[models.Format]string) ([]byte, []byte, error) {
	if images == nil {
		images = []models.Image{}
	}
	if files == nil {
		files = map[models.Format]string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, nil, fmt.Errorf("encode images: %w", err)
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return nil, nil, fmt.Errorf("encode design files: %w", err)
	}
	return imagesJSON, filesJSON, nil
}

func decodeJSON(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func formatStrings(formats []models.Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}
