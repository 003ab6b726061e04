// ABOUTME: Sealed settings blob holding webhook URLs and the admin password digest
// ABOUTME: Uses ChaCha20-Poly1305 with a key file; supports read and partial write

package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSettingsCorrupt is returned when the settings blob exists but cannot be
// opened with the configured key. A corrupt or foreign blob is surfaced, never
// silently treated as "no settings".
var ErrSettingsCorrupt = errors.New("settings blob is corrupt or sealed with a different key")

// Settings is the payload of the durable settings blob. AdminPassword holds
// the 64-hex-char SHA-256 digest of the admin password, or the empty string
// when no password has been configured. The plaintext password is never
// persisted.
type Settings struct {
	SubmitWebhookURL string `json:"submitWebhookUrl"`
	ReadWebhookURL   string `json:"readWebhookUrl"`
	AdminPassword    string `json:"adminPassword"`
}

// SettingsStore reads and writes the sealed settings blob on disk. Writes are
// atomic (write-then-rename) and serialized by a mutex; reads always reflect
// the last completed write.
type SettingsStore struct {
	mu   sync.Mutex
	path string
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// OpenSettings creates a settings store at path, sealed with a key derived
// from the contents of keyFile. The key file is created with fresh random
// material if it does not exist.
func OpenSettings(path, keyFile string) (*SettingsStore, error) {
	keyMaterial, err := os.ReadFile(keyFile)
	if errors.Is(err, os.ErrNotExist) {
		keyMaterial = make([]byte, 32)
		if _, err := rand.Read(keyMaterial); err != nil {
			return nil, fmt.Errorf("generating settings key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
			return nil, fmt.Errorf("creating key directory: %w", err)
		}
		if err := os.WriteFile(keyFile, keyMaterial, 0o600); err != nil {
			return nil, fmt.Errorf("writing settings key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading settings key: %w", err)
	}

	key := sha256.Sum256(keyMaterial)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	return &SettingsStore{path: path, aead: aead}, nil
}

// Read returns the current settings. A missing blob yields zero settings (the
// not-yet-configured state); a blob that fails to open yields
// ErrSettingsCorrupt.
func (s *SettingsStore) Read() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Write applies a partial update: it reads the current settings, lets apply
// mutate them, and seals the result back to disk atomically.
func (s *SettingsStore) Write(apply func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readLocked()
	if err != nil {
		return err
	}
	apply(&settings)
	return s.writeLocked(settings)
}

func (s *SettingsStore) readLocked() (Settings, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings blob: %w", err)
	}

	nonceSize := chacha20poly1305.NonceSizeX
	if len(blob) < nonceSize {
		return Settings{}, ErrSettingsCorrupt
	}

	plaintext, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return Settings{}, ErrSettingsCorrupt
	}

	var settings Settings
	if err := json.Unmarshal(plaintext, &settings); err != nil {
		return Settings{}, ErrSettingsCorrupt
	}
	return settings, nil
}

func (s *SettingsStore) writeLocked(settings Settings) error {
	plaintext, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	blob := append(nonce, s.aead.Seal(nil, nonce, plaintext, nil)...)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("writing settings blob: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings blob: %w", err)
	}
	return nil
}
