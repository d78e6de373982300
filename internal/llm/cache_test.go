package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCache_GetSet(t *testing.T) {
	cache := newResponseCache(time.Minute)
	defer cache.Close()

	key := cacheKey("openai/gpt-4-turbo-preview", Request{Prompt: "water bottle"})

	_, ok := cache.get(key)
	assert.False(t, ok)

	cache.set(key, "HS code 7323.93")
	got, ok := cache.get(key)
	assert.True(t, ok)
	assert.Equal(t, "HS code 7323.93", got)
	assert.Equal(t, 1, cache.size())
}

func TestResponseCache_Expiry(t *testing.T) {
	cache := newResponseCache(50 * time.Millisecond)
	defer cache.Close()

	cache.set("k", "v")
	time.Sleep(100 * time.Millisecond)

	_, ok := cache.get("k")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	base := Request{System: "s", Prompt: "p"}

	assert.Equal(t, cacheKey("a", base), cacheKey("a", base))
	assert.NotEqual(t, cacheKey("a", base), cacheKey("b", base))
	assert.NotEqual(t, cacheKey("a", base), cacheKey("a", Request{System: "s", Prompt: "q"}))
	assert.NotEqual(t, cacheKey("a", base), cacheKey("a", Request{System: "s", Prompt: "p", MaxTokens: 10}))
}

func TestResponseCache_Concurrent(t *testing.T) {
	cache := newResponseCache(time.Minute)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := cacheKey("mock", Request{Prompt: string(rune('a' + i))})
			cache.set(key, "x")
			_, _ = cache.get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, cache.size())
}

func TestResponseCache_CloseTwice(t *testing.T) {
	cache := newResponseCache(0)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}
