package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Account is a stored Facebook session: the mbasic username plus the
// exported cookie bundle that authenticates it.
type Account struct {
	Username     string        `json:"username"`
	Cookies      *CookieBundle `json:"cookies"`
	LastModified time.Time     `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(account *Account) error

	// Retrieve gets credentials for a specific username
	Retrieve(username string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes credentials for a specific username
	Delete(username string) error

	// Exists checks if credentials exist for a username
	Exists(username string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
	now    func() time.Time
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// System keychain first
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	path, err := DefaultStorePath()
	if err != nil {
		return nil, err
	}

	encryptedStore, err := NewEncryptedFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// DefaultStorePath is the encrypted credentials file in the config directory
func DefaultStorePath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "credentials.enc"), nil
}

// NewManagerWithStores creates a Manager over explicit backends, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores, now: time.Now}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return errors.New("username is required")
	}
	if err := account.Cookies.ValidateFormat(); err != nil {
		return err
	}
	if err := account.Cookies.Require(); err != nil {
		return err
	}

	account.LastModified = m.now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault gets the environment account, else the most recently
// stored one.
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if account, err := envStore.Retrieve(""); err == nil && account != nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns all stored accounts from all stores, newest first
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			// Use the most recently modified version
			if existing, ok := accountMap[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Username] = account
			}
		}
	}

	result := make([]*Account, 0, len(accountMap))
	for _, account := range accountMap {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Username < result[j].Username
	})

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		_ = m.Delete(account.Username) // Ignore individual errors
	}

	return nil
}

// Source says where ResolveBundle found the cookies
type Source string

const (
	SourceStore Source = "credential store"
	SourceFile  Source = "cookie file"
)

// ResolveBundle finds the cookies for a run. A stored account for
// username wins (the default account when username is empty); the
// cookie export at cookiesPath is the fallback. The returned bundle
// always carries the required cookies.
func (m *Manager) ResolveBundle(username, cookiesPath string) (*CookieBundle, Source, error) {
	var account *Account
	var err error
	if m != nil && len(m.stores) > 0 {
		if username != "" {
			account, err = m.Retrieve(username)
		} else {
			account, err = m.RetrieveDefault()
		}
	}
	if err == nil && account != nil && account.Cookies != nil {
		if err := account.Cookies.Require(); err != nil {
			return nil, SourceStore, err
		}
		return account.Cookies, SourceStore, nil
	}

	if cookiesPath == "" {
		return nil, "", fmt.Errorf("%w: no stored session and no cookie file configured", ErrCredentialsNotFound)
	}
	bundle, err := LoadCookieBundle(cookiesPath)
	if err != nil {
		return nil, SourceFile, err
	}
	if err := bundle.Require(); err != nil {
		return nil, SourceFile, err
	}
	return bundle, SourceFile, nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "fbcleanup")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "fbcleanup")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "fbcleanup")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "fbcleanup")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeAccount creates a copy of the account with cookie values masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	out := &Account{
		Username:     account.Username,
		LastModified: account.LastModified,
	}
	if account.Cookies != nil {
		masked := &CookieBundle{Origins: account.Cookies.Origins}
		for _, c := range account.Cookies.Cookies {
			c.Value = maskString(c.Value)
			masked.Cookies = append(masked.Cookies, c)
		}
		out.Cookies = masked
	}
	return out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
