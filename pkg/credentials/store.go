// Package credentials stores AI provider API keys outside the config file.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/zalando/go-keyring"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

const (
	// KeyringService is the keychain service name; the account is the provider.
	KeyringService = "scommit"

	// FileName is the fallback store under the config directory.
	FileName = "credentials.toml" //nolint:gosec // Not a credential, just a filename
)

// Store reads and writes one API key per provider.
type Store interface {
	Get(provider string) (string, error)
	Set(provider, key string) error
	Delete(provider string) error
	Backend() string
}

// New returns a keychain-backed store when the OS keychain is usable, and a
// file-backed store otherwise.
func New() Store {
	check := KeyringService + "-check"
	if err := keyring.Set(check, "check", "check"); err == nil {
		_ = keyring.Delete(check, "check")
		return &KeychainStore{service: KeyringService}
	}
	return NewFileStore(DefaultFilePath())
}

// DefaultFilePath returns ~/.config/scommit/credentials.toml.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "scommit", FileName)
}

// KeychainStore uses macOS keychain / Linux secret service / Windows credential manager.
type KeychainStore struct {
	service string
}

// NewKeychainStore returns a keychain store for service.
func NewKeychainStore(service string) *KeychainStore {
	return &KeychainStore{service: service}
}

// Get returns the stored key, or "" when none is stored.
func (k *KeychainStore) Get(provider string) (string, error) {
	key, err := keyring.Get(k.service, provider)
	if err != nil {
		if scerrors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", scerrors.NewConfigErrorWithCause("credentials", "failed to read from keychain", err)
	}
	return key, nil
}

// Set stores key for provider.
func (k *KeychainStore) Set(provider, key string) error {
	if err := keyring.Set(k.service, provider, key); err != nil {
		return scerrors.NewConfigErrorWithCause("credentials", "failed to save to keychain", err)
	}
	return nil
}

// Delete removes the key for provider. Deleting a missing key is not an error.
func (k *KeychainStore) Delete(provider string) error {
	err := keyring.Delete(k.service, provider)
	if err != nil && !scerrors.Is(err, keyring.ErrNotFound) {
		return scerrors.NewConfigErrorWithCause("credentials", "failed to clear keychain", err)
	}
	return nil
}

// Backend names the storage for status output.
func (k *KeychainStore) Backend() string { return "keychain" }

// FileStore keeps keys in a TOML table readable only by the owner.
// It is the fallback for headless systems.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the stored key, or "" when none is stored.
func (f *FileStore) Get(provider string) (string, error) {
	keys, err := f.load()
	if err != nil {
		return "", err
	}
	return keys[provider], nil
}

// Set stores key for provider.
func (f *FileStore) Set(provider, key string) error {
	keys, err := f.load()
	if err != nil {
		return err
	}
	keys[provider] = key
	return f.save(keys)
}

// Delete removes the key for provider. Deleting a missing key is not an error.
func (f *FileStore) Delete(provider string) error {
	keys, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := keys[provider]; !ok {
		return nil
	}
	delete(keys, provider)
	if len(keys) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return scerrors.NewConfigErrorWithCause("credentials", "failed to remove credentials file", err)
		}
		return nil
	}
	return f.save(keys)
}

// Backend names the storage for status output.
func (f *FileStore) Backend() string { return "file " + f.path }

func (f *FileStore) load() (map[string]string, error) {
	keys := map[string]string{}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, scerrors.NewConfigErrorWithCause("credentials", "failed to read credentials file", err)
	}

	if err := toml.Unmarshal(data, &keys); err != nil {
		return nil, scerrors.NewConfigErrorWithCause("credentials", "failed to parse credentials file", err)
	}
	return keys, nil
}

func (f *FileStore) save(keys map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return scerrors.NewConfigErrorWithCause("credentials", "failed to create config directory", err)
	}

	data, err := toml.Marshal(keys)
	if err != nil {
		return scerrors.NewConfigErrorWithCause("credentials", "failed to serialize credentials", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return scerrors.NewConfigErrorWithCause("credentials", "failed to write credentials file", err)
	}
	return nil
}
