package snapshots

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

func (r *SQLiteRepository) Get(ctx context.Context, childID int64) (*models.OfflineSnapshot, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM offline_snapshot WHERE child_id = ?`, childID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot[%d]: %w", childID, err)
	}

	var s models.OfflineSnapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot[%d]: %w", childID, err)
	}
	if s.Balances == nil {
		s.Balances = map[models.ActivityID]models.Balance{}
	}
	return &s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.OfflineSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO offline_snapshot (child_id, payload) VALUES (?, ?)
		ON CONFLICT(child_id) DO UPDATE SET payload = excluded.payload
	`, s.ChildID, payload)
	if err != nil {
		return fmt.Errorf("failed to save snapshot[%d]: %w", s.ChildID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM offline_snapshot`); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
