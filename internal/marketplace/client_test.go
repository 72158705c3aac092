// internal/marketplace/client_test.go
package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listingPage(prices ...string) wireResponse {
	resp := wireResponse{Total: len(prices)}
	for i, p := range prices {
		resp.Results = append(resp.Results, wireListing{
			ID:    string(rune('a' + i)),
			Price: p,
		})
	}
	return resp
}

func listingServer(t *testing.T, hits *atomic.Int32, resp wireResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings", r.URL.Path)

		var q wireQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
}

func TestClientFetchListings(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, listingPage("1000000000000000000", "1200000000000000000"))
	defer srv.Close()

	c := NewClient(Config{PrimaryURL: srv.URL}, zap.NewNop())

	listings, total, err := c.FetchListings(context.Background(), Query{Collection: "axie", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, listings, 2)
	assert.Equal(t, "1000000000000000000", listings[0].Price.String())
}

func TestClientCacheHitBypassesNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, listingPage("1000000000000000000"))
	defer srv.Close()

	c := NewClient(Config{PrimaryURL: srv.URL, CacheTTL: time.Minute}, zap.NewNop())

	q := Query{Collection: "axie", Limit: 10}
	_, _, err := c.FetchListings(context.Background(), q)
	require.NoError(t, err)
	_, _, err = c.FetchListings(context.Background(), q)
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1, c.CacheSize())

	// A different filter set is a different cache entry.
	q.Limit = 20
	_, _, err = c.FetchListings(context.Background(), q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClientFailover(t *testing.T) {
	var primaryHits, secondaryHits atomic.Int32
	primary := failingServer(t, &primaryHits)
	defer primary.Close()
	secondary := listingServer(t, &secondaryHits, listingPage("1000000000000000000"))
	defer secondary.Close()

	c := NewClient(Config{PrimaryURL: primary.URL, SecondaryURL: secondary.URL}, zap.NewNop())

	listings, total, err := c.FetchListings(context.Background(), Query{Collection: "axie", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, listings, 1)
	assert.EqualValues(t, 1, primaryHits.Load())
	assert.EqualValues(t, 1, secondaryHits.Load())
}

func TestClientBothEndpointsFail(t *testing.T) {
	var hits atomic.Int32
	primary := failingServer(t, &hits)
	defer primary.Close()
	secondary := failingServer(t, &hits)
	defer secondary.Close()

	c := NewClient(Config{PrimaryURL: primary.URL, SecondaryURL: secondary.URL}, zap.NewNop())

	_, _, err := c.FetchListings(context.Background(), Query{Collection: "axie", Limit: 5})
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, secondary.URL, fetchErr.Endpoint)
	assert.ErrorContains(t, fetchErr.Cause, "502")
	assert.EqualValues(t, 2, hits.Load())
}

func TestClientRateLimiterSpacing(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, listingPage("1000000000000000000"))
	defer srv.Close()

	// 600 per minute means one request every 100ms, with no burst allowance
	// even from a cold start.
	c := NewClient(Config{PrimaryURL: srv.URL, RequestsPerMinute: 600}, zap.NewNop())

	start := time.Now()
	for _, collection := range []string{"one", "two", "three"} {
		_, _, err := c.FetchListings(context.Background(), Query{Collection: collection, Limit: 5})
		require.NoError(t, err)
	}

	// Three distinct (uncached) queries: the second and third each wait out
	// a full period.
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
	assert.EqualValues(t, 3, hits.Load())
}

func TestClientMalformedPriceRejected(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, listingPage("not-a-number"))
	defer srv.Close()

	// No secondary: the malformed payload is the final answer.
	c := NewClient(Config{PrimaryURL: srv.URL}, zap.NewNop())

	_, _, err := c.FetchListings(context.Background(), Query{Collection: "axie"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid price")
}

func TestClientFetchStats(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, listingPage(
		"1000000000000000000",
		"2000000000000000000",
		"3000000000000000000",
	))
	defer srv.Close()

	c := NewClient(Config{PrimaryURL: srv.URL}, zap.NewNop())

	stats, err := c.FetchStats(context.Background(), "axie")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalListed)
	assert.Equal(t, "1000000000000000000", stats.Floor.String())
	// Fewer than ten listings: the averages cover what is there.
	assert.Equal(t, "2000000000000000000", stats.Avg10.String())
	assert.Equal(t, stats.Avg10, stats.Avg100)
}

func TestClientFetchStatsEmptyCollection(t *testing.T) {
	var hits atomic.Int32
	srv := listingServer(t, &hits, wireResponse{})
	defer srv.Close()

	c := NewClient(Config{PrimaryURL: srv.URL}, zap.NewNop())

	stats, err := c.FetchStats(context.Background(), "ghost-town")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalListed)
	assert.Nil(t, stats.Floor)
}

func TestQueryCacheKeyCanonical(t *testing.T) {
	min, max := 1, 3
	q1 := Query{Collection: "axie", Classes: []string{"beast"}, BreedCountMin: &min, BreedCountMax: &max, Sort: SortPriceAsc, Limit: 10}
	q2 := Query{Collection: "axie", Classes: []string{"beast"}, BreedCountMin: &min, BreedCountMax: &max, Sort: SortPriceAsc, Limit: 10}
	assert.Equal(t, q1.CacheKey(), q2.CacheKey())

	q2.Limit = 20
	assert.NotEqual(t, q1.CacheKey(), q2.CacheKey())

	q3 := q1
	q3.Sort = SortPriceDesc
	assert.NotEqual(t, q1.CacheKey(), q3.CacheKey())
}
