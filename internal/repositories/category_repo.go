package repositories

import (
	"context"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	ListRootCategories(ctx context.Context) ([]*models.Category, error)
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CategorySummary, error)
	SetParent(ctx context.Context, childID uuid.UUID, parentID *uuid.UUID) error
	AddSubcategory(ctx context.Context, parentID, childID uuid.UUID) error
}

const categoryColumns = `id, name, description, slug, image, parent_id, subcategories, created_at, updated_at`

type categoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	if c.SubcategoryIDs == nil {
		c.SubcategoryIDs = []uuid.UUID{}
	}
	query := `
		INSERT INTO categories (id, name, description, slug, image, parent_id, subcategories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, c.ID, c.Name, c.Description, c.Slug, c.Image, c.ParentID, c.SubcategoryIDs).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err)
}

func (r *categoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	c, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (r *categoryRepo) Update(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, description = $2, slug = $3, image = $4, parent_id = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, c.Name, c.Description, c.Slug, c.Image, c.ParentID, c.ID).Scan(&c.UpdatedAt)
	return translate(err)
}

func (r *categoryRepo) ListRootCategories(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE parent_id IS NULL ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Summaries resolves category references to their populated form. Unknown ids are omitted.
func (r *categoryRepo) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CategorySummary, error) {
	out := make(map[uuid.UUID]models.CategorySummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description FROM categories WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s models.CategorySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.Description); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *categoryRepo) SetParent(ctx context.Context, childID uuid.UUID, parentID *uuid.UUID) error {
	query := `UPDATE categories SET parent_id = $1, updated_at = NOW() WHERE id = $2`
	return expectOne(r.db.Exec(ctx, query, parentID, childID))
}

// AddSubcategory appends childID to the parent's list unless it is already there.
func (r *categoryRepo) AddSubcategory(ctx context.Context, parentID, childID uuid.UUID) error {
	query := `
		UPDATE categories
		SET subcategories = CASE WHEN $1 = ANY(subcategories) THEN subcategories ELSE array_append(subcategories, $1) END,
			updated_at = NOW()
		WHERE id = $2
	`
	return expectOne(r.db.Exec(ctx, query, childID, parentID))
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	c := &models.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.Image, &c.ParentID, &c.SubcategoryIDs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.SubcategoryIDs == nil {
		c.SubcategoryIDs = []uuid.UUID{}
	}
	return c, nil
}
