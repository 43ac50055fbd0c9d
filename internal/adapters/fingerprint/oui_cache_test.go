package fingerprint

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOUICache_LRU(t *testing.T) {
	cache := NewOUICache(3)
	cache.Set("00:00:00", "Vendor1")
	cache.Set("11:11:11", "Vendor2")
	cache.Set("22:22:22", "Vendor3")

	v, ok := cache.Get("00:00:00")
	assert.True(t, ok)
	assert.Equal(t, "Vendor1", v)

	// 11:11:11 is now the least recently used
	cache.Set("33:33:33", "Vendor4")

	_, ok = cache.Get("11:11:11")
	assert.False(t, ok)
	_, ok = cache.Get("00:00:00")
	assert.True(t, ok)

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	cache.Clear()
	assert.Equal(t, CacheStats{}, cache.Stats())
}

func TestOUICache_UpdateExisting(t *testing.T) {
	cache := NewOUICache(2)
	cache.Set("AA:AA:AA", "Old")
	cache.Set("AA:AA:AA", "New")

	v, _ := cache.Get("AA:AA:AA")
	assert.Equal(t, "New", v)
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestOUICache_ConcurrentGet(t *testing.T) {
	cache := NewOUICache(8)
	cache.Set("AA:AA:AA", "A")
	cache.Set("BB:BB:BB", "B")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cache.Get("AA:AA:AA")
				cache.Get("BB:BB:BB")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(16*200*2), cache.Stats().Hits)
}
