package credstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/cryptox"
)

const (
	secretFileName = "device.secret"
	sealedExt      = ".sealed"
	secretSize     = 32
	saltSize       = 16
)

// deviceSecret is the on-disk form of the store's root secret.
type deviceSecret struct {
	Secret []byte `json:"secret"`
	Salt   []byte `json:"salt"`
}

// sealedValue is the on-disk form of one key.
type sealedValue struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// FileStore seals each key into its own file under dir with AES-GCM. The key
// is derived with argon2id from a random device secret kept next to the
// values with 0600 permissions. It stands in for an OS keychain and keeps
// credentials out of the state database.
type FileStore struct {
	dir string
	key []byte
	mu  sync.Mutex
}

// NewFileStore opens or initialises a sealed store in dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	secret, err := loadOrCreateSecret(filepath.Join(dir, secretFileName))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret.Secret)

	return &FileStore{dir: dir, key: cryptox.DeriveKey(secret.Secret, secret.Salt)}, nil
}

func loadOrCreateSecret(path string) (*deviceSecret, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		var s deviceSecret
		if err := json.Unmarshal(raw, &s); err != nil || len(s.Secret) != secretSize || len(s.Salt) != saltSize {
			return nil, fmt.Errorf("device secret at %s is corrupt", path)
		}
		return &s, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	s := &deviceSecret{
		Secret: common.GenerateRandByteArray(secretSize),
		Salt:   common.GenerateRandByteArray(saltSize),
	}
	raw, err = json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, raw); err != nil {
		return nil, fmt.Errorf("write device secret: %w", err)
	}
	return s, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+sealedExt)
}

func (f *FileStore) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ct, nonce, err := cryptox.Seal(value, f.key)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	raw, err := json.Marshal(sealedValue{Nonce: nonce, Ciphertext: ct})
	if err != nil {
		return err
	}
	return writeAtomic(f.path(key), raw)
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var sv sealedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return nil, false, fmt.Errorf("sealed value for key is corrupt: %w", err)
	}
	var value []byte
	if err := cryptox.Open(sv.Ciphertext, sv.Nonce, f.key, &value); err != nil {
		return nil, false, fmt.Errorf("open sealed value: %w", err)
	}
	return value, true, nil
}

// Delete always attempts the removal, even if another delete of the same
// key is racing it; a missing file is success.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
