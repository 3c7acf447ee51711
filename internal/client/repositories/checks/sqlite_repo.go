package checks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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

func (r *SQLiteRepository) Save(ctx context.Context, result *models.CheckResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode check result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO check_cache (child_id, payload, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(child_id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, result.ChildID, payload, result.FetchedAt.UnixMilli(), result.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save check result[%d]: %w", result.ChildID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, childID int64) (*models.CheckResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM check_cache WHERE child_id = ?`, childID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check result[%d]: %w", childID, err)
	}

	var result models.CheckResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode check result[%d]: %w", childID, err)
	}
	return &result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, childID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM check_cache WHERE child_id = ?`, childID); err != nil {
		return fmt.Errorf("failed to delete check result[%d]: %w", childID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM check_cache`); err != nil {
		return fmt.Errorf("failed to clear check cache: %w", err)
	}
	return nil
}
