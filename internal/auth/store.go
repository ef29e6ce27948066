package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/reportpull/sfauth/pkg/logging"
)

// TokenFileName is the fallback token file inside the service config
// directory.
const TokenFileName = "oauth_tokens.txt"

// Keyring entry names under the service namespace.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyInstanceURL  = "instance_url"
	keyExpiresAt    = "token_expires_at"
)

// CredentialStore persists TokenRecords across process restarts. Load returns
// ErrNoCredentials when nothing is stored; Clear tolerates missing entries.
type CredentialStore interface {
	Load() (*TokenRecord, error)
	Save(rec *TokenRecord) error
	Clear() error
}

// NewDefaultStore returns the standard store: OS keychain first, with a
// restricted-permission file fallback for hosts without a usable keychain
// (headless Linux without a secret service, locked-down CI).
func NewDefaultStore(serviceID string) (CredentialStore, error) {
	path, err := DefaultTokenFilePath(serviceID)
	if err != nil {
		return nil, err
	}
	return &layeredStore{
		primary:  NewKeyringStore(serviceID),
		fallback: NewFileStore(path),
	}, nil
}

// DefaultTokenFilePath returns ~/.config/<serviceID>/oauth_tokens.txt.
func DefaultTokenFilePath(serviceID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", serviceID, TokenFileName), nil
}

// KeyringStore persists each record field as one entry in the OS keychain
// under the service namespace.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed store namespaced by serviceID.
func NewKeyringStore(serviceID string) *KeyringStore {
	return &KeyringStore{service: serviceID}
}

// Load reads the record from the keychain. A missing access token entry means
// ErrNoCredentials.
func (s *KeyringStore) Load() (*TokenRecord, error) {
	access, err := keyring.Get(s.service, keyAccessToken)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read keychain entry: %w", err)
	}
	if access == "" {
		return nil, ErrNoCredentials
	}

	rec := &TokenRecord{AccessToken: access}
	if v, err := keyring.Get(s.service, keyRefreshToken); err == nil {
		rec.RefreshToken = v
	}
	if v, err := keyring.Get(s.service, keyInstanceURL); err == nil {
		rec.InstanceURL = v
	}
	if v, err := keyring.Get(s.service, keyExpiresAt); err == nil {
		rec.ExpiresAt = parseExpiry(v)
	}
	return rec, nil
}

// Save writes the record's fields as individual keychain entries. Empty
// fields remove any stale entry so a load never resurrects old state.
func (s *KeyringStore) Save(rec *TokenRecord) error {
	entries := []struct {
		key   string
		value string
	}{
		{keyAccessToken, rec.AccessToken},
		{keyRefreshToken, rec.RefreshToken},
		{keyInstanceURL, rec.InstanceURL},
		{keyExpiresAt, formatExpiry(rec.ExpiresAt)},
	}
	for _, e := range entries {
		if e.value == "" {
			if err := keyring.Delete(s.service, e.key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("failed to remove keychain entry %s: %w", e.key, err)
			}
			continue
		}
		if err := keyring.Set(s.service, e.key, e.value); err != nil {
			return fmt.Errorf("failed to write keychain entry %s: %w", e.key, err)
		}
	}
	return nil
}

// Clear removes all entries; missing entries are not an error.
func (s *KeyringStore) Clear() error {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyInstanceURL, keyExpiresAt} {
		if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to remove keychain entry %s: %w", key, err)
		}
	}
	return nil
}

// FileStore persists the record as a newline-delimited file with restricted
// permissions: access token, refresh token, instance URL, expiry as unix
// seconds.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location, used by the store watcher.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and parses the token file. A missing file means
// ErrNoCredentials.
func (s *FileStore) Load() (*TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for len(lines) < 4 {
		lines = append(lines, "")
	}
	if lines[0] == "" {
		return nil, ErrNoCredentials
	}
	return &TokenRecord{
		AccessToken:  lines[0],
		RefreshToken: lines[1],
		InstanceURL:  lines[2],
		ExpiresAt:    parseExpiry(lines[3]),
	}, nil
}

// Save writes the record with 0600 file and 0700 directory permissions.
func (s *FileStore) Save(rec *TokenRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	content := strings.Join([]string{
		rec.AccessToken,
		rec.RefreshToken,
		rec.InstanceURL,
		formatExpiry(rec.ExpiresAt),
	}, "\n") + "\n"
	if err := os.WriteFile(s.path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	// WriteFile does not change the mode of an existing file.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	return nil
}

// Clear removes the token file; a missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// layeredStore tries the keychain first and falls back to the file store when
// the keychain is unusable. Writes go to exactly one backend so the two never
// hold divergent records.
type layeredStore struct {
	primary  CredentialStore
	fallback CredentialStore
}

func (s *layeredStore) Load() (*TokenRecord, error) {
	rec, err := s.primary.Load()
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNoCredentials) {
		logging.Debug("CredentialStore", "Keychain unavailable, trying file fallback: %v", err)
	}
	return s.fallback.Load()
}

func (s *layeredStore) Save(rec *TokenRecord) error {
	if err := s.primary.Save(rec); err != nil {
		logging.Warn("CredentialStore", "Keychain write failed, using file fallback: %v", err)
		return s.fallback.Save(rec)
	}
	return nil
}

func (s *layeredStore) Clear() error {
	return errors.Join(s.primary.Clear(), s.fallback.Clear())
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// parseExpiry accepts integer or fractional unix seconds. Earlier releases
// wrote the value as a float.
func parseExpiry(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.Warn("CredentialStore", "Unparseable token expiry %q, treating record as expired", v)
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
