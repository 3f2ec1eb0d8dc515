package fetcher

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	data        []byte
	contentType string
}

// byteCache bounds the decoded-image cache by entry count (delegated to the
// LRU) and by total payload bytes (enforced here by evicting oldest entries
// after each add). It is only touched from the fetcher run loop and needs
// no locking of its own.
type byteCache struct {
	lru      *lru.Cache[string, cacheEntry]
	maxBytes int64
	bytes    int64
}

func newByteCache(maxEntries int, maxBytes int64) (*byteCache, error) {
	c := &byteCache{maxBytes: maxBytes}
	l, err := lru.NewWithEvict[string, cacheEntry](maxEntries, func(_ string, v cacheEntry) {
		c.bytes -= int64(len(v.data))
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *byteCache) get(key string) ([]byte, string, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, "", false
	}
	return e.data, e.contentType, true
}

func (c *byteCache) add(key string, data []byte, contentType string) {
	// Remove first so the evict callback keeps the byte count exact when a
	// key is overwritten.
	c.lru.Remove(key)
	c.lru.Add(key, cacheEntry{data: data, contentType: contentType})
	c.bytes += int64(len(data))
	for c.bytes > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

func (c *byteCache) purge() {
	c.lru.Purge()
}

func (c *byteCache) len() int {
	return c.lru.Len()
}
