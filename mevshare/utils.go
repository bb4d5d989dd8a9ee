package mevshare

import (
	"context"
	"sync"
	"time"
)

// CachingChainBackend wraps a ChainBackend and caches BlockNumber for a few
// seconds. Useful when many handles resolve their default wait windows
// against the same provider.
type CachingChainBackend struct {
	ChainBackend

	mu          sync.RWMutex
	blockNumber uint64
	lastUpdate  time.Time
}

func NewCachingChainBackend(backend ChainBackend) *CachingChainBackend {
	return &CachingChainBackend{
		ChainBackend: backend,
		lastUpdate:   time.Now().Add(-10 * time.Second),
	}
}

// BlockNumber returns the most recent block number, cached for 5 seconds
func (c *CachingChainBackend) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if time.Since(c.lastUpdate) < 5*time.Second {
		defer c.mu.RUnlock()
		return c.blockNumber, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	blockNumber, err := c.ChainBackend.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	c.blockNumber = blockNumber
	c.lastUpdate = time.Now()
	return blockNumber, nil
}
