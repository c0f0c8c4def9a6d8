// Package keymgr tracks provider API keys and flags ones that need
// rotation, either on an explicit usage-count limit or on age.
//
// Grounded on SecureApiKey/SecureKeyManager as used by AIProviderRegistry in
// the orchestration service this system is modeled on: keys are registered
// per provider name, optionally with a maximum usage count, and every
// dispatched request records a use against its key so rotation can be
// flagged proactively instead of after a provider starts rejecting calls.
package keymgr

import (
	"fmt"
	"sync"
	"time"
)

// maxKeyAge is how long a key may go without rotation before it is flagged,
// independent of any usage-count limit.
const maxKeyAge = 90 * 24 * time.Hour

// Key is a tracked API key for one provider.
type Key struct {
	mu sync.Mutex

	provider  string
	value     string
	maxUsage  uint64 // 0 means unlimited
	usageCount uint64
	createdAt time.Time
}

// newKey constructs a tracked key with the given optional usage limit.
func newKey(provider, value string, maxUsage uint64) *Key {
	return &Key{provider: provider, value: value, maxUsage: maxUsage, createdAt: time.Now()}
}

// Value returns the raw key material.
func (k *Key) Value() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.value
}

// RecordUse increments the key's usage counter.
func (k *Key) RecordUse() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.usageCount++
}

// NeedsRotation reports whether the key has reached its usage limit (if
// any) or exceeded maxKeyAge since creation.
func (k *Key) NeedsRotation() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.maxUsage > 0 && k.usageCount >= k.maxUsage {
		return true
	}
	return time.Since(k.createdAt) > maxKeyAge
}

// Manager holds one [Key] per provider name. Safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	keys map[string]*Key
}

// NewManager returns an empty, ready-to-use [Manager].
func NewManager() *Manager {
	return &Manager{keys: make(map[string]*Key)}
}

// AddKey registers apiKey for provider with no usage limit, replacing any
// existing key for that provider.
func (m *Manager) AddKey(provider, apiKey string) {
	m.AddKeyWithRotation(provider, apiKey, 0)
}

// AddKeyWithRotation registers apiKey for provider with a usage-count limit
// after which [Key.NeedsRotation] reports true. maxUsage of 0 means
// unlimited usage (age-based rotation still applies).
func (m *Manager) AddKeyWithRotation(provider, apiKey string, maxUsage uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[provider] = newKey(provider, apiKey, maxUsage)
}

// GetKey returns the tracked key for provider.
func (m *Manager) GetKey(provider string) (*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[provider]
	if !ok {
		return nil, fmt.Errorf("keymgr: no key registered for provider %q", provider)
	}
	return k, nil
}

// CheckRotationNeeded returns the provider names whose keys currently need
// rotation.
func (m *Manager) CheckRotationNeeded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for provider, k := range m.keys {
		if k.NeedsRotation() {
			out = append(out, provider)
		}
	}
	return out
}

// Providers returns every provider name currently holding a key.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.keys))
	for provider := range m.keys {
		out = append(out, provider)
	}
	return out
}
