package auth

import (
	"os"
	"time"
)

const (
	// CookiesEnv holds a full cookie export as JSON
	CookiesEnv = "FACEBOOK_COOKIES_JSON"
	// UsernameEnv names the account the CookiesEnv bundle belongs to
	UsernameEnv = "FACEBOOK_USERNAME"
)

// EnvironmentStore implements CredentialStore over environment variables,
// for CI and container runs where no keychain or config dir exists.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve parses the bundle in FACEBOOK_COOKIES_JSON. An empty username
// matches; otherwise it must equal FACEBOOK_USERNAME when that is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	raw := e.getenv(CookiesEnv)
	if raw == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := e.getenv(UsernameEnv)
	if username != "" && envUser != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	bundle, err := ParseCookieBundle([]byte(raw))
	if err != nil {
		return nil, err
	}

	switch {
	case username != "":
	case envUser != "":
		username = envUser
	default:
		username = "default"
	}

	return &Account{
		Username:     username,
		Cookies:      bundle,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment carries one
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
