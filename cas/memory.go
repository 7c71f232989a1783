package cas

import (
	"fmt"
	"sync"
)

// MemoryCAS holds encoded bundles in a map. Entries are checked against
// their address when read back.
type MemoryCAS struct {
	mu      sync.RWMutex
	bundles map[Hash][]byte
	size    int
}

func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{bundles: make(map[Hash][]byte)}
}

func (m *MemoryCAS) Put(item Hashable) (Hash, error) {
	data, h, err := encode(item)
	if err != nil {
		return 0, fmt.Errorf("encoding bundle: %w", err)
	}

	m.mu.Lock()
	if _, dup := m.bundles[h]; !dup {
		m.bundles[h] = data
		m.size += len(data)
	}
	m.mu.Unlock()
	return h, nil
}

func (m *MemoryCAS) Has(h Hash) bool {
	m.mu.RLock()
	_, ok := m.bundles[h]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryCAS) getValue(h Hash) (bool, []byte, error) {
	m.mu.RLock()
	data, ok := m.bundles[h]
	m.mu.RUnlock()
	switch {
	case !ok:
		return false, nil, nil
	case HashBytes(data) != h:
		return true, nil, fmt.Errorf("cas: bundle %s is corrupt", h)
	}
	return true, data, nil
}

// Len is the number of distinct bundles stored.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bundles)
}

// Size is the total encoded size of every stored bundle.
func (m *MemoryCAS) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
