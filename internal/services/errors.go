package services

import (
	"errors"

	"stitchmart/internal/common"
	"stitchmart/internal/repositories"
)

// storeError maps repository errors onto the application error kinds.
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return common.NotFound(resource)
	case errors.Is(err, repositories.ErrConflict):
		return common.Conflict(resource + " already exists")
	default:
		return common.Upstream("store: "+resource, err)
	}
}

func isConflict(err error) bool {
	return errors.Is(err, repositories.ErrConflict)
}
