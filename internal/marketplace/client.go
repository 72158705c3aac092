// internal/marketplace/client.go
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config describes the listing query client.
type Config struct {
	PrimaryURL        string
	SecondaryURL      string
	RequestsPerMinute int
	CacheTTL          time.Duration
	RequestTimeout    time.Duration
}

// Client fetches marketplace listings and collection stats. All network calls
// from any concurrent caller are funneled through one leaky-bucket limiter, so
// the configured rate ceiling holds regardless of caller concurrency. Results
// are cached by (collection, filter set) for a bounded TTL; cache hits bypass
// both the limiter and the network.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter ratelimit.Limiter
	cache   *listingCache
	group   singleflight.Group
	logger  *zap.Logger
}

// NewClient constructs a query client. The limiter and cache are owned by the
// client instance; there is no process-wide state.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Second
	}

	var limiter ratelimit.Limiter
	if cfg.RequestsPerMinute > 0 {
		// WithoutSlack keeps the minimum inter-request gap even after idle
		// periods; the default slack would let bursts through.
		limiter = ratelimit.New(cfg.RequestsPerMinute, ratelimit.Per(time.Minute), ratelimit.WithoutSlack)
	} else {
		limiter = ratelimit.NewUnlimited()
	}

	log := logger.Named("marketplace")
	return &Client{
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:     cfg,
		limiter: limiter,
		cache:   newListingCache(cfg.CacheTTL, log),
		logger:  log,
	}
}

type fetchResult struct {
	listings []Listing
	total    int
}

// FetchListings runs one structured query and returns the page of listings
// plus the total count reported by the API.
func (c *Client) FetchListings(ctx context.Context, q Query) ([]Listing, int, error) {
	key := q.CacheKey()
	if listings, total, ok := c.cache.get(key); ok {
		c.logger.Debug("listing cache hit", zap.String("collection", q.Collection))
		return listings, total, nil
	}

	// Concurrent identical queries collapse onto one network call.
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := c.fetchWithFailover(ctx, q)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, res.listings, res.total)
		return res, nil
	})
	if err != nil {
		return nil, 0, err
	}

	res := v.(*fetchResult)
	return res.listings, res.total, nil
}

// FetchStats derives collection stats from a single price-ascending page.
func (c *Client) FetchStats(ctx context.Context, collection string) (Stats, error) {
	listings, total, err := c.FetchListings(ctx, Query{
		Collection:  collection,
		AuctionType: AuctionSale,
		Sort:        SortPriceAsc,
		Limit:       100,
	})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalListed: total}
	if len(listings) == 0 {
		return stats, nil
	}
	stats.Floor = new(big.Int).Set(listings[0].Price)
	stats.Avg10 = averagePrice(listings, 10)
	stats.Avg50 = averagePrice(listings, 50)
	stats.Avg100 = averagePrice(listings, 100)
	return stats, nil
}

func averagePrice(listings []Listing, n int) *big.Int {
	if n > len(listings) {
		n = len(listings)
	}
	if n == 0 {
		return nil
	}
	sum := new(big.Int)
	for _, l := range listings[:n] {
		sum.Add(sum, l.Price)
	}
	return sum.Div(sum, big.NewInt(int64(n)))
}

// fetchWithFailover tries the primary endpoint, then retries once against the
// secondary. Both failing surfaces a single FetchError with the last cause.
func (c *Client) fetchWithFailover(ctx context.Context, q Query) (*fetchResult, error) {
	endpoints := []string{c.cfg.PrimaryURL}
	if c.cfg.SecondaryURL != "" {
		endpoints = append(endpoints, c.cfg.SecondaryURL)
	}

	var lastErr error
	var lastEndpoint string
	for i, endpoint := range endpoints {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.limiter.Take()

		res, err := c.fetchOnce(ctx, endpoint, q)
		if err == nil {
			return res, nil
		}
		lastErr = err
		lastEndpoint = endpoint
		if i+1 < len(endpoints) {
			c.logger.Warn("primary listing endpoint failed, retrying against secondary",
				zap.String("collection", q.Collection),
				zap.Error(err))
		}
	}
	return nil, &FetchError{Endpoint: lastEndpoint, Cause: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string, q Query) (*fetchResult, error) {
	body, err := json.Marshal(toWireQuery(q))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/listings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("listing request completed",
		zap.Duration("duration", time.Since(start)),
		zap.String("collection", q.Collection),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(snippet))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	listings := make([]Listing, 0, len(wire.Results))
	for _, wl := range wire.Results {
		l, err := wl.toListing()
		if err != nil {
			return nil, fmt.Errorf("malformed listing %q: %w", wl.ID, err)
		}
		listings = append(listings, l)
	}
	return &fetchResult{listings: listings, total: wire.Total}, nil
}

// CacheSize reports the number of live cache entries, for diagnostics.
func (c *Client) CacheSize() int {
	return c.cache.size()
}

type wireQuery struct {
	Collection    string   `json:"collection"`
	Classes       []string `json:"classes,omitempty"`
	MaxPrice      string   `json:"maxPrice,omitempty"`
	BreedCountMin *int     `json:"breedCountMin,omitempty"`
	BreedCountMax *int     `json:"breedCountMax,omitempty"`
	Purity        *int     `json:"purity,omitempty"`
	PartIDs       []string `json:"partIds,omitempty"`
	AuctionType   string   `json:"auctionType,omitempty"`
	Sort          string   `json:"sort,omitempty"`
	Offset        int      `json:"offset"`
	Limit         int      `json:"limit"`
}

func toWireQuery(q Query) wireQuery {
	wq := wireQuery{
		Collection:    q.Collection,
		Classes:       q.Classes,
		BreedCountMin: q.BreedCountMin,
		BreedCountMax: q.BreedCountMax,
		Purity:        q.Purity,
		PartIDs:       q.PartIDs,
		AuctionType:   string(q.AuctionType),
		Sort:          string(q.Sort),
		Offset:        q.Offset,
		Limit:         q.Limit,
	}
	if q.MaxPrice != nil {
		wq.MaxPrice = q.MaxPrice.String()
	}
	return wq
}

type wireResponse struct {
	Total   int           `json:"total"`
	Results []wireListing `json:"results"`
}

type wireListing struct {
	ID                  string `json:"id"`
	Collection          string `json:"collection"`
	Seller              string `json:"seller"`
	TokenAddress        string `json:"tokenAddress"`
	TokenID             string `json:"tokenId"`
	Price               string `json:"price"`
	BasePrice           string `json:"basePrice"`
	EndedPrice          string `json:"endedPrice"`
	StartedAt           int64  `json:"startedAt"`
	ExpiredAt           int64  `json:"expiredAt"`
	EndedAt             int64  `json:"endedAt"`
	Nonce               uint64 `json:"nonce"`
	MarketFeePercentage uint64 `json:"marketFeePercentage"`
	Signature           string `json:"signature"`
}

// toListing converts a wire entry. The current price must parse; the other
// settlement fields may be absent and are left zero for the selector to
// filter and report.
func (w wireListing) toListing() (Listing, error) {
	price, ok := new(big.Int).SetString(w.Price, 10)
	if !ok {
		return Listing{}, fmt.Errorf("invalid price %q", w.Price)
	}

	l := Listing{
		ID:                  w.ID,
		Collection:          w.Collection,
		Seller:              common.HexToAddress(w.Seller),
		TokenAddress:        common.HexToAddress(w.TokenAddress),
		Price:               price,
		StartedAt:           w.StartedAt,
		ExpiredAt:           w.ExpiredAt,
		EndedAt:             w.EndedAt,
		Nonce:               w.Nonce,
		MarketFeePercentage: w.MarketFeePercentage,
	}
	if w.TokenID != "" {
		if id, ok := new(big.Int).SetString(w.TokenID, 10); ok {
			l.TokenID = id
		}
	}
	if w.BasePrice != "" {
		if bp, ok := new(big.Int).SetString(w.BasePrice, 10); ok {
			l.BasePrice = bp
		}
	}
	if w.EndedPrice != "" {
		if ep, ok := new(big.Int).SetString(w.EndedPrice, 10); ok {
			l.EndedPrice = ep
		}
	}
	if w.Signature != "" {
		if sig, err := hexutil.Decode(w.Signature); err == nil {
			l.Signature = sig
		}
	}
	return l, nil
}
