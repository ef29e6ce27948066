package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", TokenFileName)
	store := NewFileStore(path)

	rec := &TokenRecord{
		AccessToken:  "00Dxx!access",
		RefreshToken: "5Aexx.refresh",
		InstanceURL:  "https://acme.my.salesforce.com",
		ExpiresAt:    time.Unix(1790000000, 0),
	}

	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.AccessToken != rec.AccessToken {
		t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, rec.AccessToken)
	}
	if loaded.RefreshToken != rec.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, rec.RefreshToken)
	}
	if loaded.InstanceURL != rec.InstanceURL {
		t.Errorf("InstanceURL = %q, want %q", loaded.InstanceURL, rec.InstanceURL)
	}
	if !loaded.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, rec.ExpiresAt)
	}
}

func TestFileStore_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "creds", TokenFileName)
	store := NewFileStore(path)

	rec := &TokenRecord{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Stat() dir error: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("token dir mode = %o, want 700", perm)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), TokenFileName))

	_, err := store.Load()
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() error = %v, want ErrNoCredentials", err)
	}
}

func TestFileStore_LegacyFloatExpiry(t *testing.T) {
	// Earlier tooling wrote the expiry as a float. Those files must still
	// load.
	path := filepath.Join(t.TempDir(), TokenFileName)
	content := "access\nrefresh\nhttps://acme.my.salesforce.com\n1790000000.5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.ExpiresAt.Unix() != 1790000000 {
		t.Errorf("ExpiresAt = %v, want unix 1790000000", loaded.ExpiresAt)
	}
}

func TestFileStore_EmptyFieldsTolerated(t *testing.T) {
	// A record saved right after a JWT exchange has no refresh token, and an
	// interrupted write may truncate trailing fields.
	path := filepath.Join(t.TempDir(), TokenFileName)
	if err := os.WriteFile(path, []byte("access-only"), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.AccessToken != "access-only" {
		t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, "access-only")
	}
	if loaded.RefreshToken != "" || loaded.InstanceURL != "" {
		t.Errorf("expected empty optional fields, got %+v", loaded)
	}
	if !loaded.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", loaded.ExpiresAt)
	}
}

func TestFileStore_EmptyAccessTokenMeansNoCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFileName)
	if err := os.WriteFile(path, []byte("\nrefresh\nurl\n123\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).Load()
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() error = %v, want ErrNoCredentials", err)
	}
}

func TestFileStore_ClearToleratesMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), TokenFileName))

	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing file error: %v", err)
	}

	rec := &TokenRecord{AccessToken: "tok"}
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() error: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() after Clear() error = %v, want ErrNoCredentials", err)
	}
	// Second clear is a no-op.
	if err := store.Clear(); err != nil {
		t.Errorf("repeated Clear() error: %v", err)
	}
}

func TestKeyringStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("sfauth-test")

	rec := &TokenRecord{
		AccessToken:  "access",
		RefreshToken: "refresh",
		InstanceURL:  "https://acme.my.salesforce.com",
		ExpiresAt:    time.Unix(1790000000, 0),
	}

	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.AccessToken != rec.AccessToken ||
		loaded.RefreshToken != rec.RefreshToken ||
		loaded.InstanceURL != rec.InstanceURL ||
		!loaded.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("Load() = %+v, want %+v", loaded, rec)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() after Clear() error = %v, want ErrNoCredentials", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() with nothing stored error: %v", err)
	}
}

func TestKeyringStore_EmptyFieldRemovesStaleEntry(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("sfauth-test-stale")

	withRefresh := &TokenRecord{AccessToken: "a1", RefreshToken: "r1"}
	if err := store.Save(withRefresh); err != nil {
		t.Fatal(err)
	}

	// A JWT-issued record has no refresh token; saving it must not leave the
	// old one behind.
	withoutRefresh := &TokenRecord{AccessToken: "a2"}
	if err := store.Save(withoutRefresh); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty after overwrite", loaded.RefreshToken)
	}
}

func TestLayeredStore_FallsBackToFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service available"))
	t.Cleanup(keyring.MockInit)

	path := filepath.Join(t.TempDir(), TokenFileName)
	store := &layeredStore{
		primary:  NewKeyringStore("sfauth-test-fallback"),
		fallback: NewFileStore(path),
	}

	rec := &TokenRecord{AccessToken: "tok", InstanceURL: "https://acme.my.salesforce.com"}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected fallback file to exist: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want tok", loaded.AccessToken)
	}
}

func TestLayeredStore_ClearClearsBoth(t *testing.T) {
	keyring.MockInit()

	path := filepath.Join(t.TempDir(), TokenFileName)
	fileStore := NewFileStore(path)
	keyStore := NewKeyringStore("sfauth-test-both")
	store := &layeredStore{primary: keyStore, fallback: fileStore}

	rec := &TokenRecord{AccessToken: "tok"}
	if err := keyStore.Save(rec); err != nil {
		t.Fatal(err)
	}
	if err := fileStore.Save(rec); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := keyStore.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("keychain still has credentials after Clear()")
	}
	if _, err := fileStore.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("file still has credentials after Clear()")
	}
}
