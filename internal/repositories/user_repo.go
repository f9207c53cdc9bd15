package repositories

import (
	"context"
	"fmt"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetFavorites(ctx context.Context, id uuid.UUID, favorites []uuid.UUID) error
	Exists(ctx context.Context, username, email string, excludeID *uuid.UUID) (bool, error)
	Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Count(ctx context.Context) (int, error)
}

const userColumns = `id, username, email, password_hash, role, favorites, created_at, updated_at`

type userRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if user.Favorites == nil {
		user.Favorites = []uuid.UUID{}
	}
	query := `
		INSERT INTO users (id, username, email, password_hash, role, favorites, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), user.Favorites).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, user.Username, user.Email, user.ID).Scan(&user.UpdatedAt)
	return translate(err)
}

func (r *userRepo) SetFavorites(ctx context.Context, id uuid.UUID, favorites []uuid.UUID) error {
	if favorites == nil {
		favorites = []uuid.UUID{}
	}
	query := `UPDATE users SET favorites = $1, updated_at = NOW() WHERE id = $2`
	return expectOne(r.db.Exec(ctx, query, favorites, id))
}

// Exists reports whether another user already holds the username or email.
func (r *userRepo) Exists(ctx context.Context, username, email string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE (username = $1 OR email = $2) AND ($3::uuid IS NULL OR id <> $3))`
	var exists bool
	if err := r.db.QueryRow(ctx, query, username, models.NormalizeEmail(email), excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user uniqueness: %w", err)
	}
	return exists, nil
}

func (r *userRepo) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.Favorites, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if u.Favorites == nil {
		u.Favorites = []uuid.UUID{}
	}
	return u, nil
}
