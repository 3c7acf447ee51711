package checks

import (
	"context"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

// Repository stores one CheckResult per child.
type Repository interface {
	// Save replaces the cached result for result.ChildID.
	Save(ctx context.Context, result *models.CheckResult) error

	// Get returns the cached result, or (nil, nil) when there is none.
	Get(ctx context.Context, childID int64) (*models.CheckResult, error)

	// Delete drops the cached result for one child.
	Delete(ctx context.Context, childID int64) error

	// Clear drops every cached result.
	Clear(ctx context.Context) error
}
