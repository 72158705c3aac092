// internal/marketplace/ron.go
package marketplace

import (
	"fmt"
	"math/big"
	"strings"
)

// RON uses 18 decimals, like most EVM native currencies.
const ronDecimals = 18

var weiPerRON = new(big.Int).Exp(big.NewInt(10), big.NewInt(ronDecimals), nil)

// ParseRON converts a decimal RON amount ("1.25") into wei. Monetary sums stay
// in integer arithmetic; this is the only place a decimal string is parsed.
func ParseRON(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > ronDecimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, ronDecimals)
	}

	wi, ok := new(big.Int).SetString(whole, 10)
	if !ok || wi.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	out := new(big.Int).Mul(wi, weiPerRON)

	if frac != "" {
		// Digits only: SetString would accept a sign here and corrupt the
		// amount.
		for _, r := range frac {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("invalid amount %q", s)
			}
		}
		fi, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(ronDecimals-len(frac))), nil)
		out.Add(out, fi.Mul(fi, scale))
	}
	return out, nil
}

// FormatRON renders a wei amount as a RON decimal string for display only.
func FormatRON(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	q, r := new(big.Int).QuoRem(wei, weiPerRON, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%018s", r.String())
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}
