package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stitchmart:"

type CacheService interface {
	// Design caching
	GetDesign(ctx context.Context, id uuid.UUID) (*models.Design, error)
	SetDesign(ctx context.Context, design *models.Design, ttl time.Duration) error
	DeleteDesign(ctx context.Context, id uuid.UUID) error

	// Curated listings (featured, popular) keyed by name and limit
	GetDesignList(ctx context.Context, name string, limit int) ([]*models.Design, error)
	SetDesignList(ctx context.Context, name string, limit int, designs []*models.Design, ttl time.Duration) error
	InvalidateDesignLists(ctx context.Context) error

	// Category tree
	GetMainCategories(ctx context.Context) ([]*models.Category, error)
	SetMainCategories(ctx context.Context, categories []*models.Category, ttl time.Duration) error
	InvalidateCategories(ctx context.Context) error

	Ping(ctx context.Context) error
}

// cachedDesign keeps the category references that the public JSON form omits.
type cachedDesign struct {
	*models.Design
	CategoryIDs []uuid.UUID `json:"categoryIds"`
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
	return &redisCacheService{client: client}
}

func designKey(id uuid.UUID) string {
	return fmt.Sprintf("%sdesign:%s", keyPrefix, id)
}

func listKey(name string, limit int) string {
	return fmt.Sprintf("%sdesigns:%s:%d", keyPrefix, name, limit)
}

func (r *redisCacheService) GetDesign(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	var entry cachedDesign
	found, err := r.getJSON(ctx, designKey(id), &entry)
	if err != nil || !found {
		return nil, err
	}
	entry.Design.CategoryIDs = entry.CategoryIDs
	return entry.Design, nil
}

func (r *redisCacheService) SetDesign(ctx context.Context, design *models.Design, ttl time.Duration) error {
	return r.setJSON(ctx, designKey(design.ID), cachedDesign{Design: design, CategoryIDs: design.CategoryIDs}, ttl)
}

func (r *redisCacheService) DeleteDesign(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, designKey(id)).Err()
}

func (r *redisCacheService) GetDesignList(ctx context.Context, name string, limit int) ([]*models.Design, error) {
	var designs []*models.Design
	found, err := r.getJSON(ctx, listKey(name, limit), &designs)
	if err != nil || !found {
		return nil, err
	}
	return designs, nil
}

func (r *redisCacheService) SetDesignList(ctx context.Context, name string, limit int, designs []*models.Design, ttl time.Duration) error {
	return r.setJSON(ctx, listKey(name, limit), designs, ttl)
}

func (r *redisCacheService) InvalidateDesignLists(ctx context.Context) error {
	return r.deletePattern(ctx, keyPrefix+"designs:*")
}

func (r *redisCacheService) GetMainCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	found, err := r.getJSON(ctx, keyPrefix+"categories:main", &categories)
	if err != nil || !found {
		return nil, err
	}
	return categories, nil
}

func (r *redisCacheService) SetMainCategories(ctx context.Context, categories []*models.Category, ttl time.Duration) error {
	return r.setJSON(ctx, keyPrefix+"categories:main", categories, ttl)
}

func (r *redisCacheService) InvalidateCategories(ctx context.Context) error {
	return r.deletePattern(ctx, keyPrefix+"categories:*")
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// getJSON reports found=false on a cache miss.
func (r *redisCacheService) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisCacheService) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) deletePattern(ctx context.Context, pattern string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}
