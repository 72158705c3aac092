// internal/marketplace/ron_test.go
package marketplace

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"1.25", "1250000000000000000"},
		{"0.000000000000000001", "1"},
		{".5", "500000000000000000"},
		{"500", "500000000000000000000"},
		{" 2.5 ", "2500000000000000000"},
	}
	for _, tc := range cases {
		got, err := ParseRON(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseRONRejectsInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"abc",
		"-1",
		"1.2.3",
		"1.-5",
		"1.+5",
		"1. 5",
		"0.0000000000000000001", // 19 decimal places
	} {
		_, err := ParseRON(in)
		assert.Error(t, err, in)
	}
}

func TestFormatRON(t *testing.T) {
	assert.Equal(t, "0", FormatRON(nil))
	assert.Equal(t, "0", FormatRON(big.NewInt(0)))
	assert.Equal(t, "1", FormatRON(mustParse(t, "1")))
	assert.Equal(t, "1.25", FormatRON(mustParse(t, "1.25")))
	assert.Equal(t, "0.000000000000000001", FormatRON(big.NewInt(1)))
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0.1", "3.7", "500", "123.456789"} {
		assert.Equal(t, s, FormatRON(mustParse(t, s)))
	}
}

func mustParse(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseRON(s)
	require.NoError(t, err)
	return v
}
