// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vault stores per-provider login credentials encrypted at rest.
//
// The store is a single JSON file keyed by provider ID; username and secret
// are encrypted independently under a process-local symmetric key generated
// on first use. The key never leaves its protected file, and credentials are
// only ever handed to the session manager's login call for the same provider.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pdiddy/library-engine/pkg/types"
)

// storedEntry is one provider's row in the store file. Both fields are
// base64-encoded ciphertext with the nonce prepended.
type storedEntry struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// Vault is the encrypted credential store. All store-file access is
// serialized under an internal lock so concurrent provider logins cannot
// lose updates.
type Vault struct {
	storePath string
	key       []byte
	log       *zap.Logger

	mu sync.Mutex
}

// Open loads the symmetric key from cfg.KeyPath, generating one on first
// use, and returns a Vault over cfg.StorePath. The key file is created with
// mode 0600.
func Open(cfg types.VaultConfig, log *zap.Logger) (*Vault, error) {
	key, err := loadOrCreateKey(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	return &Vault{storePath: cfg.StorePath, key: key, log: log}, nil
}

// Save encrypts username and secret independently and writes the entry for
// provider, replacing any existing one. The whole store is rewritten via a
// temp file and rename so a crash never leaves a partial store.
func (v *Vault) Save(provider types.ProviderID, username, secret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	store, err := v.readStore()
	if err != nil {
		return err
	}

	encUser, err := v.encrypt(username)
	if err != nil {
		return fmt.Errorf("encrypting username: %w", err)
	}
	encSecret, err := v.encrypt(secret)
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}

	store[string(provider)] = storedEntry{Username: encUser, Secret: encSecret}
	return v.writeStore(store)
}

// Load decrypts and returns the credential for provider. The second return
// value is false when no entry exists or the entry cannot be decrypted; a
// bad entry is logged and treated as absent so it never blocks other
// providers.
func (v *Vault) Load(provider types.ProviderID) (types.Credential, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	store, err := v.readStore()
	if err != nil {
		v.log.Warn("credential store unreadable", zap.Error(err))
		return types.Credential{}, false
	}

	entry, ok := store[string(provider)]
	if !ok {
		return types.Credential{}, false
	}

	username, err := v.decrypt(entry.Username)
	if err != nil {
		v.log.Warn("credential entry undecryptable, treating as absent",
			zap.String("provider", string(provider)), zap.Error(err))
		return types.Credential{}, false
	}
	secret, err := v.decrypt(entry.Secret)
	if err != nil {
		v.log.Warn("credential entry undecryptable, treating as absent",
			zap.String("provider", string(provider)), zap.Error(err))
		return types.Credential{}, false
	}

	return types.Credential{Provider: provider, Username: username, Secret: secret}, true
}

// Delete removes the entry for provider and reports whether it existed.
func (v *Vault) Delete(provider types.ProviderID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	store, err := v.readStore()
	if err != nil {
		return false, err
	}
	if _, ok := store[string(provider)]; !ok {
		return false, nil
	}
	delete(store, string(provider))
	return true, v.writeStore(store)
}

// List returns the provider IDs that have stored entries, decryptable or
// not. Provider IDs are the plaintext lookup keys of the store.
func (v *Vault) List() ([]types.ProviderID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	store, err := v.readStore()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ProviderID, 0, len(store))
	for _, p := range types.AllProviders {
		if _, ok := store[string(p)]; ok {
			ids = append(ids, p)
		}
	}
	return ids, nil
}

func (v *Vault) readStore() (map[string]storedEntry, error) {
	data, err := os.ReadFile(v.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]storedEntry{}, nil
		}
		return nil, fmt.Errorf("reading credential store: %w", err)
	}
	store := map[string]storedEntry{}
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parsing credential store: %w", err)
	}
	return store, nil
}

func (v *Vault) writeStore(store map[string]storedEntry) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential store: %w", err)
	}

	dir := filepath.Dir(v.storePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp store: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting store mode: %w", err)
	}
	if err := os.Rename(tmpPath, v.storePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming store: %w", err)
	}
	return nil
}

// encrypt seals plaintext under the vault key with a fresh random nonce and
// returns base64(nonce || ciphertext).
func (v *Vault) encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}
	return string(plaintext), nil
}

// loadOrCreateKey reads the 32-byte key from path, generating and persisting
// one with mode 0600 on first use.
func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(data))
		if decErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s is corrupt", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}
