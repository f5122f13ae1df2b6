package apiclient

import "sync"

// CredentialStore holds the admin key sent with admin calls.
type CredentialStore interface {
	AdminKey() string
	ClearAdminKey()
}

// MemoryCredentials is a process-local CredentialStore.
type MemoryCredentials struct {
	mu  sync.RWMutex
	key string
}

func NewMemoryCredentials(adminKey string) *MemoryCredentials {
	return &MemoryCredentials{key: adminKey}
}

func (m *MemoryCredentials) AdminKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

func (m *MemoryCredentials) SetAdminKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
}

func (m *MemoryCredentials) ClearAdminKey() {
	m.SetAdminKey("")
}
