package usage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, childID int64, e models.UsageEntry) error {
	if e.Seconds <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_ledger (child_id, day, activity, seconds) VALUES (?, ?, ?, ?)
		ON CONFLICT(child_id, day, activity) DO UPDATE SET seconds = seconds + excluded.seconds
	`, childID, e.Day, string(e.Activity), e.Seconds)
	if err != nil {
		return fmt.Errorf("failed to add usage[%d]: %w", childID, err)
	}
	return nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, childID int64) ([]models.UsageEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, activity, seconds FROM usage_ledger
		WHERE child_id = ? AND seconds > 0
		ORDER BY day, activity
	`, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage[%d]: %w", childID, err)
	}
	defer rows.Close()

	var result []models.UsageEntry
	for rows.Next() {
		var e models.UsageEntry
		var activity string
		if err := rows.Scan(&e.Day, &activity, &e.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		e.Activity = models.ActivityID(activity)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Subtract(ctx context.Context, childID int64, synced []models.UsageEntry) error {
	for _, e := range synced {
		_, err := r.db.ExecContext(ctx, `
			UPDATE usage_ledger SET seconds = seconds - ?
			WHERE child_id = ? AND day = ? AND activity = ?
		`, e.Seconds, childID, e.Day, string(e.Activity))
		if err != nil {
			return fmt.Errorf("failed to subtract usage[%d]: %w", childID, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM usage_ledger WHERE child_id = ? AND seconds <= 0`, childID); err != nil {
		return fmt.Errorf("failed to prune usage[%d]: %w", childID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM usage_ledger`); err != nil {
		return fmt.Errorf("failed to clear usage ledger: %w", err)
	}
	return nil
}
