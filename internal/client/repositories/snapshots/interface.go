package snapshots

import (
	"context"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

type Repository interface {
	// Get returns the snapshot for a child, or (nil, nil) when absent.
	Get(ctx context.Context, childID int64) (*models.OfflineSnapshot, error)
	Save(ctx context.Context, s *models.OfflineSnapshot) error
	Clear(ctx context.Context) error
}
