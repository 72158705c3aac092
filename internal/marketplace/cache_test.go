// internal/marketplace/cache_test.go
package marketplace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListingCacheExpiry(t *testing.T) {
	c := newListingCache(20*time.Millisecond, zap.NewNop())

	c.put("k", []Listing{{ID: "a"}}, 1)
	listings, total, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 1, total)
	assert.Len(t, listings, 1)
	assert.Equal(t, 1, c.size())

	time.Sleep(30 * time.Millisecond)
	_, _, ok = c.get("k")
	assert.False(t, ok)
	assert.Zero(t, c.size())
}

func TestListingCacheMiss(t *testing.T) {
	c := newListingCache(time.Minute, zap.NewNop())
	_, _, ok := c.get("absent")
	assert.False(t, ok)
}

func TestListingCacheOverwrite(t *testing.T) {
	c := newListingCache(time.Minute, zap.NewNop())
	c.put("k", []Listing{{ID: "a"}}, 1)
	c.put("k", []Listing{{ID: "b"}, {ID: "c"}}, 2)

	listings, total, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 2, total)
	require.Len(t, listings, 2)
	assert.Equal(t, "b", listings[0].ID)
	assert.Equal(t, 1, c.size())
}
