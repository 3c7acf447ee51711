package credstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
)

// Store is an opaque secure key/value store. Writes are atomic per key and
// survive process restart. Get reports ok=false for a missing key. Delete of
// a missing key succeeds.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// CredentialsKey holds the whole Credentials record so that it is written
// and removed as one unit.
const CredentialsKey = "pairing.credentials"

// SaveCredentials writes c and reads it back. The device counts as paired
// only after the read-back matches.
func SaveCredentials(ctx context.Context, s Store, c models.Credentials) error {
	if !c.Complete() {
		return fmt.Errorf("incomplete credentials: %w", common.ErrMalformedResponse)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(raw)

	if err := s.Put(ctx, CredentialsKey, raw); err != nil {
		return fmt.Errorf("credential write: %w", err)
	}

	got, err := LoadCredentials(ctx, s)
	if err != nil {
		return fmt.Errorf("credential confirm: %w", err)
	}
	if *got != c {
		return fmt.Errorf("credential confirm: read-back mismatch")
	}
	return nil
}

// LoadCredentials returns the stored credentials or common.ErrNotPaired.
func LoadCredentials(ctx context.Context, s Store) (*models.Credentials, error) {
	raw, ok, err := s.Get(ctx, CredentialsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNotPaired
	}
	defer common.WipeByteArray(raw)

	var c models.Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if !c.Complete() {
		return nil, common.ErrNotPaired
	}
	return &c, nil
}

// DeleteCredentials removes the credentials unconditionally.
func DeleteCredentials(ctx context.Context, s Store) error {
	return s.Delete(ctx, CredentialsKey)
}
