package bpe

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// encodeCache maps an input word to its merged, space-joined subword string.
// Implementations must be safe for concurrent use.
type encodeCache interface {
	Get(word string) (string, bool)
	Add(word, merged string)
	Len() int
	Purge()
}

// mapCache grows for the lifetime of the engine and never evicts.
type mapCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]string)}
}

func (c *mapCache) Get(word string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[word]
	return s, ok
}

func (c *mapCache) Add(word, merged string) {
	c.mu.Lock()
	c.m[word] = merged
	c.mu.Unlock()
}

func (c *mapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *mapCache) Purge() {
	c.mu.Lock()
	c.m = make(map[string]string)
	c.mu.Unlock()
}

// lruCache bounds memory for long-running processes that see many rare words.
type lruCache struct {
	c *lru.Cache[string, string]
}

func newLRUCache(size int) (*lruCache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &lruCache{c: c}, nil
}

func (c *lruCache) Get(word string) (string, bool) { return c.c.Get(word) }
func (c *lruCache) Add(word, merged string)        { c.c.Add(word, merged) }
func (c *lruCache) Len() int                       { return c.c.Len() }
func (c *lruCache) Purge()                         { c.c.Purge() }
