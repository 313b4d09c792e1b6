package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"cmsbackup/internal/backup"
)

// MemoryVault keeps payloads in memory. It is safe for concurrent use.
type MemoryVault struct {
	mu       sync.RWMutex
	payloads map[string][]byte

	// FailPut makes every PutPayload fail with this error.
	FailPut error
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{payloads: make(map[string][]byte)}
}

func (m *MemoryVault) PutPayload(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if m.FailPut != nil {
		return m.FailPut
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[key] = data
	return nil
}

func (m *MemoryVault) GetPayload(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.payloads[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("payload %s: %w", key, backup.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

func (m *MemoryVault) DeletePayload(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, key)
	return nil
}

// ValidateSetup always succeeds for an in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// Keys returns the stored keys, sorted.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.payloads))
	for k := range m.payloads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores data under key directly, bypassing size checks.
func (m *MemoryVault) Set(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[key] = append([]byte(nil), data...)
}

var _ backup.Vault = (*MemoryVault)(nil)
