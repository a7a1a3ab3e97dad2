package llm

import (
	"testing"
	"time"

	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSuggestionCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newSuggestionCache(5 * time.Minute)
		defer cache.Close()

		_, found := cache.get("non-existent")
		assert.False(t, found)

		matches := []model.CategoryMatch{{CategoryCode: "MEIO_AMBIENTE", Confidence: 0.9}}
		cache.set("key1", matches)

		retrieved, found := cache.get("key1")
		assert.True(t, found)
		assert.Equal(t, matches, retrieved)
		assert.Equal(t, 1, cache.size())

		// Callers cannot mutate cached entries.
		retrieved[0].Confidence = 0
		again, _ := cache.get("key1")
		assert.InDelta(t, 0.9, again[0].Confidence, 1e-9)
	})

	t.Run("empty results are cached", func(t *testing.T) {
		cache := newSuggestionCache(time.Minute)
		defer cache.Close()

		cache.set("none", nil)
		got, found := cache.get("none")
		assert.True(t, found)
		assert.Empty(t, got)
	})

	t.Run("expiration", func(t *testing.T) {
		cache := newSuggestionCache(50 * time.Millisecond)
		defer cache.Close()

		cache.set("key2", []model.CategoryMatch{{CategoryCode: "X"}})
		_, found := cache.get("key2")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)

		_, found = cache.get("key2")
		assert.False(t, found)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		cache := newSuggestionCache(time.Minute)
		cache.Close()
		cache.Close()
	})
}
