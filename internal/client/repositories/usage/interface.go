package usage

import (
	"context"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

type Repository interface {
	// Add accumulates seconds for (child, day, activity).
	Add(ctx context.Context, childID int64, e models.UsageEntry) error

	// Pending returns the unsynced entries for a child, oldest day first.
	Pending(ctx context.Context, childID int64) ([]models.UsageEntry, error)

	// Subtract removes synced seconds; rows that reach zero are deleted.
	Subtract(ctx context.Context, childID int64, synced []models.UsageEntry) error

	// Clear wipes the ledger for every child.
	Clear(ctx context.Context) error
}
