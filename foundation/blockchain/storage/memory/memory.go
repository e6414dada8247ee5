// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/storage"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the storage.Serializer
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks [][]byte
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified encoded block and stores it in memory.
func (m *Memory) Write(num uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(len(m.blocks)) != num {
		return errors.New("block is out of order")
	}

	m.blocks = append(m.blocks, slices.Clone(data))

	return nil
}

// GetBlock returns the contents of the specified block by number.
func (m *Memory) GetBlock(num uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num >= uint64(len(m.blocks)) {
		return nil, storage.ErrBlockNotFound
	}

	return slices.Clone(m.blocks[num]), nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (m *Memory) ForEach() storage.Iterator {
	return &memoryIterator{storage: m}
}

// Reset will clear out the blocks held in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through and reading blocks in memory. This implements the storage
// Iterator interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (mi *memoryIterator) Next() ([]byte, error) {
	if mi.eoc {
		return nil, errors.New("end of chain")
	}

	data, err := mi.storage.GetBlock(mi.current)
	if errors.Is(err, storage.ErrBlockNotFound) {
		mi.eoc = true
	}

	mi.current++

	return data, err
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
