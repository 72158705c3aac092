// internal/exchange/order_test.go
package exchange

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roninsweep/sweepbot/internal/marketplace"
)

func completeListing() marketplace.Listing {
	return marketplace.Listing{
		ID:                  "listing-1",
		Collection:          "0x32950db2a7164ae833121501c797d79e7b79d74c",
		Seller:              common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TokenAddress:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		TokenID:             big.NewInt(42),
		Price:               big.NewInt(1_000_000),
		BasePrice:           big.NewInt(1_000_000),
		StartedAt:           time.Now().Add(-time.Hour).Unix(),
		ExpiredAt:           time.Now().Add(time.Hour).Unix(),
		Nonce:               3,
		MarketFeePercentage: 425,
		Signature:           make([]byte, 65),
	}
}

func TestFromListing(t *testing.T) {
	l := completeListing()
	order, err := FromListing(l)
	require.NoError(t, err)

	assert.Equal(t, l.Seller, order.Maker)
	assert.Equal(t, l.TokenAddress, order.TokenAddress)
	assert.Equal(t, big.NewInt(42), order.TokenID)
	assert.Equal(t, big.NewInt(1_000_000), order.BasePrice)
	// No ended price on a fixed-price sale: the base price stands in.
	assert.Equal(t, order.BasePrice, order.EndedPrice)
	assert.Equal(t, big.NewInt(3), order.Nonce)
	assert.Equal(t, big.NewInt(425), order.MarketFeePercentage)
	assert.Equal(t, "listing-1", order.ListingID)

	// The order holds copies, not aliases into the listing.
	l.TokenID.SetInt64(99)
	assert.Equal(t, big.NewInt(42), order.TokenID)
}

func TestFromListingMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*marketplace.Listing)
		want   string
	}{
		{"seller", func(l *marketplace.Listing) { l.Seller = common.Address{} }, "missing seller"},
		{"token address", func(l *marketplace.Listing) { l.TokenAddress = common.Address{} }, "missing token address"},
		{"token id", func(l *marketplace.Listing) { l.TokenID = nil }, "missing token id"},
		{"base price", func(l *marketplace.Listing) { l.BasePrice = nil }, "missing base price"},
		{"expiry", func(l *marketplace.Listing) { l.ExpiredAt = 0 }, "missing expiry"},
		{"no signature", func(l *marketplace.Listing) { l.Signature = nil }, "signature"},
		{"short signature", func(l *marketplace.Listing) { l.Signature = make([]byte, 64) }, "signature"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := completeListing()
			tc.mutate(&l)
			_, err := FromListing(l)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
			assert.ErrorContains(t, err, l.ID)
		})
	}
}

func TestOrderHash(t *testing.T) {
	a, err := FromListing(completeListing())
	require.NoError(t, err)
	b, err := FromListing(completeListing())
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())

	// Any identity field changing moves the hash.
	c := b
	c.Nonce = big.NewInt(4)
	assert.NotEqual(t, a.Hash(), c.Hash())

	d := b
	d.TokenID = big.NewInt(43)
	assert.NotEqual(t, a.Hash(), d.Hash())
}
