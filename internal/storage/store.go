package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Area is the per-design subdirectory an asset is written under.
type Area string

const (
	AreaImages Area = "images"
	AreaFiles  Area = "files"
)

// AssetStore persists design assets under a path scoped to the design id.
type AssetStore interface {
	// EnsureDir creates the area for a design if it does not exist yet.
	EnsureDir(ctx context.Context, designID uuid.UUID, area Area) error
	// Write stores one asset and returns its public URL. An existing asset
	// with the same name is replaced.
	Write(ctx context.Context, designID uuid.UUID, area Area, name string, r io.Reader, size int64, contentType string) (string, error)
	// RemoveAll deletes every asset of a design.
	RemoveAll(ctx context.Context, designID uuid.UUID) error
}

var ErrInvalidName = errors.New("invalid asset name")

// objectKey builds "<id>/<area>/<name>" and rejects names that would escape it.
func objectKey(designID uuid.UUID, area Area, name string) (string, error) {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if area != AreaImages && area != AreaFiles {
		return "", errors.New("unknown asset area " + string(area))
	}
	return path.Join(designID.String(), string(area), name), nil
}

// joinURL appends key to a URL prefix with exactly one slash between them.
func joinURL(prefix, key string) string {
	return strings.TrimRight(prefix, "/") + "/" + key
}
