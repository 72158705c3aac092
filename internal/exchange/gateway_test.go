// internal/exchange/gateway_test.go
package exchange

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := NewGateway(common.HexToAddress("0x213073989821f738A7BA3520C3D31a1F9aD31bBd"))
	require.NoError(t, err)
	return gw
}

func TestSettleCalldata(t *testing.T) {
	gw := testGateway(t)

	order, err := FromListing(completeListing())
	require.NoError(t, err)

	data, err := gw.SettleCalldata([]Order{order}, []*big.Int{big.NewInt(1_000_000)})
	require.NoError(t, err)
	require.Greater(t, len(data), 4)

	// Same input, same calldata, stable selector.
	again, err := gw.SettleCalldata([]Order{order}, []*big.Int{big.NewInt(1_000_000)})
	require.NoError(t, err)
	assert.Equal(t, data, again)

	// A different expected price changes the arguments, not the selector.
	other, err := gw.SettleCalldata([]Order{order}, []*big.Int{big.NewInt(2_000_000)})
	require.NoError(t, err)
	assert.Equal(t, data[:4], other[:4])
	assert.NotEqual(t, data, other)
}

func TestSettleCalldataRejectsBadInput(t *testing.T) {
	gw := testGateway(t)
	order, err := FromListing(completeListing())
	require.NoError(t, err)

	_, err = gw.SettleCalldata(nil, nil)
	assert.ErrorContains(t, err, "no orders")

	_, err = gw.SettleCalldata([]Order{order}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.ErrorContains(t, err, "length mismatch")
}

func TestOrderStatesRoundTrip(t *testing.T) {
	gw := testGateway(t)
	order, err := FromListing(completeListing())
	require.NoError(t, err)

	data, err := gw.OrderStatesCalldata([]Order{order, order})
	require.NoError(t, err)
	assert.Greater(t, len(data), 4)

	want := []uint8{OrderStateOpen, OrderStateFilled, OrderStateCancelled, OrderStateExpired}
	packed, err := gw.abi.Methods["orderStates"].Outputs.Pack(want)
	require.NoError(t, err)

	states, err := gw.DecodeOrderStates(packed)
	require.NoError(t, err)
	assert.Equal(t, want, states)
}

func TestDecodeOrderStatesGarbage(t *testing.T) {
	gw := testGateway(t)
	_, err := gw.DecodeOrderStates([]byte{0x01, 0x02})
	assert.Error(t, err)
}
