package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
)

// Revoker tears down pairing after the guardian rejected the credentials.
// It must finish before the call that observed the 401 returns.
type Revoker interface {
	Revoke(ctx context.Context) error
}

// pairingKeys are the metadata entries that only make sense while paired.
var pairingKeys = []string{
	metadata.KeyRoster,
	metadata.KeyCurrentChild,
	metadata.KeyLastCheckAt,
	metadata.KeyHomeTimezone,
	metadata.KeyLastActivityAt,
}

// ClearPairing deletes the credentials and every piece of local state tied
// to the pairing. The credential delete always runs, even when another one
// is in flight or the database part fails.
func ClearPairing(ctx context.Context, db *sql.DB, store credstore.Store) error {
	credErr := credstore.DeleteCredentials(ctx, store)
	if credErr != nil {
		credErr = fmt.Errorf("delete credentials: %w", credErr)
	}

	dbErr := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return clearLocalState(ctx, storage.NewRepositories(tx))
	})
	if dbErr != nil {
		dbErr = fmt.Errorf("clear local state: %w", dbErr)
	}

	return errors.Join(credErr, dbErr)
}

func clearLocalState(ctx context.Context, repos *storage.Repositories) error {
	if err := repos.Checks.Clear(ctx); err != nil {
		return err
	}
	if err := repos.Snapshots.Clear(ctx); err != nil {
		return err
	}
	if err := repos.Usage.Clear(ctx); err != nil {
		return err
	}
	for _, k := range pairingKeys {
		if err := repos.Metadata.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
