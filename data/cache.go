package data

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingLoader is a read-through LRU wrapper around another loader, for
// callers that replay the same directory repeatedly (parameter sweeps).
// Every hit and every miss returns an isolated copy of the instance order,
// so a caller shuffling its batch in place cannot disturb the cache.
type CachingLoader struct {
	inner Loader
	cache *lru.Cache[string, *Batch]
}

func NewCachingLoader(inner Loader, size int) (*CachingLoader, error) {
	cache, err := lru.New[string, *Batch](size)
	if err != nil {
		return nil, err
	}
	return &CachingLoader{inner: inner, cache: cache}, nil
}

func (c *CachingLoader) Load(path string) (*Batch, error) {
	if cached, ok := c.cache.Get(path); ok {
		return cached.clone(), nil
	}
	batch, err := c.inner.Load(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, batch.clone())
	return batch, nil
}
