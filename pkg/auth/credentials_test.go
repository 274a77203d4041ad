package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func testBundle(user string) *CookieBundle {
	return &CookieBundle{
		Cookies: []Cookie{
			{Name: "c_user", Value: user, Domain: ".facebook.com", Path: "/"},
			{Name: "xs", Value: "12%3AaBcDeFgHiJkLmN%3A2%3A1700000000", Domain: ".facebook.com", Path: "/", Secure: true},
			{Name: "datr", Value: "datr_value_123456", Domain: ".facebook.com", Path: "/"},
		},
	}
}

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username: "testuser",
		Cookies:  testBundle("100012345678901"),
	}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if got := retrieved.Cookies.UserID(); got != "100012345678901" {
		t.Errorf("c_user mismatch: got %s", got)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected one account in list, got %d", len(accounts))
	}

	sanitized := SanitizeAccount(account)
	xs, _ := sanitized.Cookies.Value("xs")
	if xs == "12%3AaBcDeFgHiJkLmN%3A2%3A1700000000" {
		t.Error("xs should be masked")
	}
	if orig, _ := account.Cookies.Value("xs"); orig != "12%3AaBcDeFgHiJkLmN%3A2%3A1700000000" {
		t.Error("SanitizeAccount must not modify the original")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	if err := manager.Delete("testuser"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("testuser"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, mockStore := NewMockManager()

	tests := []struct {
		name    string
		account *Account
		wantErr error
	}{
		{"nil account", nil, nil},
		{"no username", &Account{Cookies: testBundle("1")}, nil},
		{"no cookies", &Account{Username: "u"}, ErrInvalidCookieFormat},
		{"missing xs", &Account{Username: "u", Cookies: &CookieBundle{Cookies: []Cookie{
			{Name: "c_user", Value: "1", Domain: ".facebook.com", Path: "/"},
		}}}, ErrMissingCookies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.Store(tt.account)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if mockStore.Count() != 0 {
		t.Errorf("invalid accounts must not be stored, got %d", mockStore.Count())
	}
}

func TestManagerFallsBackAcrossStores(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = ErrStoreUnavailable
	working := NewMockStore()
	manager := NewManagerWithStores(failing, working)

	if err := manager.Store(&Account{Username: "u", Cookies: testBundle("1")}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if failing.Count() != 0 || working.Count() != 1 {
		t.Errorf("expected account in second store, got %d/%d", failing.Count(), working.Count())
	}

	failing.StoreError = errors.New("locked")
	working.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Username: "v", Cookies: testBundle("2")})
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("disk full")) {
		t.Errorf("expected last store error, got %v", err)
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	store := NewMockStore()
	manager := NewManagerWithStores(store)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		name   string
		offset time.Duration
	}{{"old", 0}, {"newest", 2 * time.Hour}, {"middle", time.Hour}} {
		offset, name := tc.offset, tc.name
		manager.now = func() time.Time { return base.Add(offset) }
		if err := manager.Store(&Account{Username: name, Cookies: testBundle(fmt.Sprint(i))}); err != nil {
			t.Fatal(err)
		}
	}

	accounts, _ := manager.List()
	var names []string
	for _, a := range accounts {
		names = append(names, a.Username)
	}
	if fmt.Sprint(names) != "[newest middle old]" {
		t.Errorf("got order %v", names)
	}

	def, err := manager.RetrieveDefault()
	if err != nil || def.Username != "newest" {
		t.Errorf("RetrieveDefault = %v, %v", def, err)
	}
}

func TestResolveBundle(t *testing.T) {
	dir := t.TempDir()
	cookieFile := filepath.Join(dir, "cookies.json")
	if err := os.WriteFile(cookieFile, []byte(validExport), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("stored account wins", func(t *testing.T) {
		manager, _ := NewMockManager()
		if err := manager.Store(&Account{Username: "jane", Cookies: testBundle("777")}); err != nil {
			t.Fatal(err)
		}
		b, src, err := manager.ResolveBundle("jane", cookieFile)
		if err != nil {
			t.Fatal(err)
		}
		if src != SourceStore || b.UserID() != "777" {
			t.Errorf("got %s from %s", b.UserID(), src)
		}
	})

	t.Run("default account when username empty", func(t *testing.T) {
		manager, _ := NewMockManager()
		_ = manager.Store(&Account{Username: "jane", Cookies: testBundle("777")})
		_, src, err := manager.ResolveBundle("", cookieFile)
		if err != nil || src != SourceStore {
			t.Errorf("got %s, %v", src, err)
		}
	})

	t.Run("file fallback", func(t *testing.T) {
		manager, _ := NewMockManager()
		b, src, err := manager.ResolveBundle("nobody", cookieFile)
		if err != nil {
			t.Fatal(err)
		}
		if src != SourceFile || b.UserID() != "100012345678901" {
			t.Errorf("got %s from %s", b.UserID(), src)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		manager, _ := NewMockManager()
		_, _, err := manager.ResolveBundle("nobody", filepath.Join(dir, "absent.json"))
		if !errors.Is(err, ErrCookieFileNotFound) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		manager, _ := NewMockManager()
		_, _, err := manager.ResolveBundle("", "")
		if !errors.Is(err, ErrCredentialsNotFound) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("file without required cookies", func(t *testing.T) {
		partial := filepath.Join(dir, "partial.json")
		_ = os.WriteFile(partial, []byte(`{"cookies":[{"name":"datr","value":"x","domain":".facebook.com","path":"/"}],"origins":[]}`), 0600)
		manager, _ := NewMockManager()
		_, _, err := manager.ResolveBundle("", partial)
		if !errors.Is(err, ErrMissingCookies) {
			t.Errorf("got %v", err)
		}
	})
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")
	t.Setenv(PassphraseEnv, "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{Username: "encrypted_user", Cookies: testBundle("100099988877766")}
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Cookies.UserID() != "100099988877766" {
		t.Errorf("c_user mismatch after encryption/decryption")
	}

	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(fileContent, []byte("100099988877766")) {
		t.Error("File contains plaintext c_user")
	}
	if bytes.Contains(fileContent, []byte("aBcDeFgHiJkLmN")) {
		t.Error("File contains plaintext xs")
	}

	// Deleting the last account removes the file
	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Errorf("expected file removed, got %v", err)
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")

	store, err := NewEncryptedFileStoreWithPassphrase(path, "right")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "u", Cookies: testBundle("1")}); err != nil {
		t.Fatal(err)
	}

	other, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("u"); err == nil {
		t.Error("expected decryption failure")
	}

	if _, err := NewEncryptedFileStoreWithPassphrase(path, ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}

func TestEncryptedStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(PassphraseEnv, "")

	first, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Store(&Account{Username: "u", Cookies: testBundle("1")}); err != nil {
		t.Fatal(err)
	}

	// A second store over the same directory reuses the saved passphrase
	second, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := second.Retrieve("u"); err != nil {
		t.Errorf("Retrieve with saved passphrase: %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(CookiesEnv, validExport)
	t.Setenv(UsernameEnv, "")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Username != "default" {
		t.Errorf("Username = %s, want default", account.Username)
	}
	if account.Cookies.UserID() != "100012345678901" {
		t.Errorf("c_user mismatch: %s", account.Cookies.UserID())
	}

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
	if err := store.Delete("default"); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment delete")
	}

	t.Setenv(UsernameEnv, "jane")
	if _, err := store.Retrieve("john"); err != ErrCredentialsNotFound {
		t.Errorf("other username should not match, got %v", err)
	}
	if account, err := store.Retrieve(""); err != nil || account.Username != "jane" {
		t.Errorf("expected jane, got %v %v", account, err)
	}

	t.Setenv(CookiesEnv, "")
	if store.Exists("") {
		t.Error("no environment cookies should not exist")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("NewKeyringStore: %v", err)
	}

	for _, name := range []string{"bob", "alice"} {
		if err := store.Store(&Account{Username: name, Cookies: testBundle(name)}); err != nil {
			t.Fatal(err)
		}
	}
	// Storing again must not duplicate the index entry
	if err := store.Store(&Account{Username: "bob", Cookies: testBundle("bob2")}); err != nil {
		t.Fatal(err)
	}

	accounts, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[1].Cookies.UserID() != "bob2" {
		t.Errorf("unexpected accounts: %s %s", accounts[0].Username, accounts[1].Cookies.UserID())
	}

	if !store.Exists("alice") {
		t.Error("alice should exist")
	}
	if err := store.Delete("alice"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("alice"); err != ErrCredentialsNotFound {
		t.Errorf("second delete = %v", err)
	}
	accounts, _ = store.List()
	if len(accounts) != 1 || accounts[0].Username != "bob" {
		t.Errorf("index not updated: %v", accounts)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected 0 accounts, got %d", len(accounts))
	}

	if err := store.Store(&Account{Username: "mockuser", Cookies: testBundle("1")}); err != nil {
		t.Errorf("Failed to store account: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 account, got %d", store.Count())
	}
	if !store.Exists("mockuser") {
		t.Error("Account should exist")
	}

	store.ListError = fmt.Errorf("injected error")
	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestMockStoreKeepsItsOwnCookies(t *testing.T) {
	store := NewMockStore()
	bundle := testBundle("42")
	if err := store.Store(&Account{Username: "jane", Cookies: bundle}); err != nil {
		t.Fatal(err)
	}

	bundle.Cookies[0].Value = "99"
	got, err := store.Retrieve("jane")
	if err != nil {
		t.Fatal(err)
	}
	if got.Cookies.UserID() != "42" {
		t.Errorf("stored bundle changed with the caller's copy: c_user=%s", got.Cookies.UserID())
	}

	got.Cookies.Cookies[0].Value = "7"
	again, _ := store.Retrieve("jane")
	if again.Cookies.UserID() != "42" {
		t.Errorf("retrieved bundle aliases the stored one: c_user=%s", again.Cookies.UserID())
	}
}

func TestMockStoreRejectsBundleWithoutSession(t *testing.T) {
	store := NewMockStore()
	noUser := &CookieBundle{Cookies: []Cookie{{Name: "xs", Value: "abc", Domain: ".facebook.com"}}}

	err := store.Store(&Account{Username: "jane", Cookies: noUser})
	if !errors.Is(err, ErrMissingCookies) {
		t.Errorf("expected ErrMissingCookies, got %v", err)
	}
	if store.Exists("jane") {
		t.Error("bundle without c_user must not be stored")
	}
}
