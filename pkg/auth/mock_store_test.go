package auth

import (
	"sync"
)

// MockStore keeps accounts in memory. Cookie bundles are copied on the way
// in and out so a caller editing a bundle never changes what is stored.
type MockStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	StoreError error
	ListError  error
}

func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]*Account)}
}

// NewMockManager creates a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func cloneAccount(a *Account) *Account {
	out := *a
	if a.Cookies != nil {
		out.Cookies = &CookieBundle{
			Cookies: append([]Cookie(nil), a.Cookies.Cookies...),
			Origins: append(a.Cookies.Origins[:0:0], a.Cookies.Origins...),
		}
	}
	return &out
}

// Store rejects a bundle without the session cookies, like a real session
// export would be rejected on load
func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	if err := account.Cookies.Require(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = cloneAccount(account)
	return nil
}

func (m *MockStore) Retrieve(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if username == "" {
		return nil, ErrInvalidCredentials
	}
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return cloneAccount(account), nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, cloneAccount(a))
	}
	return accounts, nil
}

func (m *MockStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if username == "" {
		return ErrInvalidCredentials
	}
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.accounts[username]
	return ok
}

func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.accounts)
}
