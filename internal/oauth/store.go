package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"atlassianmcp/pkg/logging"
)

// SecretStore persists token bundles keyed by tenant key. Load returns
// (nil, nil) when no bundle exists for the key.
type SecretStore interface {
	Load(tenantKey string) (*Bundle, error)
	Save(tenantKey string, bundle *Bundle) error
	Delete(tenantKey string) error
}

// keyringService is the service name under which bundles live in the system
// keychain.
const keyringService = "atlassianmcp"

// KeyringStore keeps bundles in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes keychain availability before returning a store, so
// callers can fall back to the file store on headless systems.
func NewKeyringStore() (*KeyringStore, error) {
	_, err := keyring.Get(keyringService, "_availability_probe")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	return &KeyringStore{}, nil
}

func (s *KeyringStore) Load(tenantKey string) (*Bundle, error) {
	data, err := keyring.Get(keyringService, tenantKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("keyring get: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return nil, fmt.Errorf("parse stored bundle: %w", err)
	}
	return &bundle, nil
}

func (s *KeyringStore) Save(tenantKey string, bundle *Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := keyring.Set(keyringService, tenantKey, string(data)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete(tenantKey string) error {
	if err := keyring.Delete(keyringService, tenantKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// FileStore keeps bundles as mode-0600 JSON files under a directory. It is
// the fallback for containers and headless hosts without a keychain.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(tenantKey string) string {
	return filepath.Join(s.dir, tenantKey+".json")
}

func (s *FileStore) Load(tenantKey string) (*Bundle, error) {
	data, err := os.ReadFile(s.path(tenantKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse stored bundle: %w", err)
	}
	return &bundle, nil
}

func (s *FileStore) Save(tenantKey string, bundle *Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated bundle behind.
	tmp, err := os.CreateTemp(s.dir, tenantKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod bundle: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(tenantKey)); err != nil {
		return fmt.Errorf("rename bundle: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(tenantKey string) error {
	if err := os.Remove(s.path(tenantKey)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove bundle: %w", err)
	}
	return nil
}

// NewDefaultStore returns the keychain store when one is available and the
// file store otherwise.
func NewDefaultStore() (SecretStore, error) {
	if ks, err := NewKeyringStore(); err == nil {
		return ks, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("no keyring and no home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "atlassianmcp", "tokens")
	logging.Warn("OAuth", "System keyring unavailable, storing tokens in %s", dir)
	return NewFileStore(dir)
}
