package cas

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/vm"
)

// ChunkCache maps source text to the bundle compiled from it. Bundles live in
// the CAS; the index only records which bundle belongs to which source.
type ChunkCache struct {
	mu    sync.Mutex
	store CAS
	index map[Hash]Hash
}

func NewChunkCache(store CAS) *ChunkCache {
	return &ChunkCache{
		store: store,
		index: make(map[Hash]Hash),
	}
}

func sourceKey(name string, src []byte) Hash {
	return HashBytes(append([]byte(name+"\x00"), src...))
}

// Lookup returns a freshly decoded copy of the chunk stored for src.
func (c *ChunkCache) Lookup(name string, src []byte) (*vm.Chunk, bool) {
	c.mu.Lock()
	bundle, ok := c.index[sourceKey(name, src)]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	chunk, err := Retrieve[*vm.Chunk](c.store, bundle)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("chunk cache: unreadable entry")
		return nil, false
	}
	log.Debug().Str("file", name).Stringer("bundle", bundle).Msg("chunk cache: hit")
	return chunk, true
}

// Store records chunk as the compiled form of src.
func (c *ChunkCache) Store(name string, src []byte, chunk *vm.Chunk) (Hash, error) {
	bundle, err := c.store.Put(chunk)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.index[sourceKey(name, src)] = bundle
	c.mu.Unlock()
	log.Debug().Str("file", name).Stringer("bundle", bundle).Msg("chunk cache: stored")
	return bundle, nil
}

func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
