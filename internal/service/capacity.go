package service

import (
	"context"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
)

// CapacityOracle decides whether a course can take one more enrollment.
// It runs inside the admission unit of work.
type CapacityOracle interface {
	HasCapacity(ctx context.Context, sess repository.Session, course *models.Course) (bool, error)
}

// UnlimitedCapacity admits every request.
type UnlimitedCapacity struct{}

// HasCapacity always reports true.
func (UnlimitedCapacity) HasCapacity(context.Context, repository.Session, *models.Course) (bool, error) {
	return true, nil
}
