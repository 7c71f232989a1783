package cas

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultLRUSize = 64

// LRUCache serves recently read bundles from memory and falls back to
// another CAS for everything else. Writes go straight through.
type LRUCache struct {
	mu      sync.Mutex
	backing CAS
	limit   int
	recent  *list.List
	byHash  map[Hash]*list.Element
	bytes   int
	stats   CacheStats
}

type bundle struct {
	hash Hash
	data []byte
}

type CacheStats struct {
	Size    int
	MaxSize int
	Bytes   int
	Hits    int
	Misses  int
	Evicted int
}

// NewLRUCache wraps backing. A limit of 0 or less means DefaultLRUSize.
func NewLRUCache(backing CAS, limit int) *LRUCache {
	if limit <= 0 {
		limit = DefaultLRUSize
	}
	return &LRUCache{
		backing: backing,
		limit:   limit,
		recent:  list.New(),
		byHash:  make(map[Hash]*list.Element),
	}
}

func (l *LRUCache) Put(item Hashable) (Hash, error) {
	return l.backing.Put(item)
}

func (l *LRUCache) Has(hash Hash) bool {
	l.mu.Lock()
	_, cached := l.byHash[hash]
	l.mu.Unlock()
	return cached || l.backing.Has(hash)
}

func (l *LRUCache) getValue(h Hash) (bool, []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.byHash[h]; ok {
		l.stats.Hits++
		l.recent.MoveToFront(e)
		return true, e.Value.(*bundle).data, nil
	}

	l.stats.Misses++
	found, data, err := l.backing.getValue(h)
	if err != nil || !found {
		return found, nil, err
	}
	l.remember(h, data)
	return true, data, nil
}

// remember inserts data at the front and drops bundles from the back until
// the cache is within its limit. Callers hold mu.
func (l *LRUCache) remember(h Hash, data []byte) {
	l.byHash[h] = l.recent.PushFront(&bundle{hash: h, data: data})
	l.bytes += len(data)

	for l.recent.Len() > l.limit {
		oldest := l.recent.Back()
		b := l.recent.Remove(oldest).(*bundle)
		delete(l.byHash, b.hash)
		l.bytes -= len(b.data)
		l.stats.Evicted++
		log.Trace().Stringer("bundle", b.hash).Int("bytes", len(b.data)).Msg("lru: evicted")
	}
}

func (l *LRUCache) Stats() CacheStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	st.Size = l.recent.Len()
	st.MaxSize = l.limit
	st.Bytes = l.bytes
	return st
}
