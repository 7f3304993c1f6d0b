package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// stakeDecimals is the fixed-point scale of the stake asset: 1e18 base units
// per whole unit, ERC-20 style.
const stakeDecimals = 18

var stakeUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(stakeDecimals), nil)

// ParseStake converts a decimal stake amount ("0.0005") into base units.
func ParseStake(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty stake amount")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > stakeDecimals {
		return nil, fmt.Errorf("stake amount %q has more than %d decimal places", s, stakeDecimals)
	}

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return nil, fmt.Errorf("malformed stake amount %q", s)
	}
	out := new(big.Int).Mul(w, stakeUnit)

	if frac != "" {
		f, ok := new(big.Int).SetString(frac+strings.Repeat("0", stakeDecimals-len(frac)), 10)
		if !ok {
			return nil, fmt.Errorf("malformed stake amount %q", s)
		}
		out.Add(out, f)
	}
	return out, nil
}

// FormatStake renders a base-unit amount as a trimmed decimal string.
func FormatStake(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	whole, rem := new(big.Int).QuoRem(v, stakeUnit, new(big.Int))
	if rem.Sign() == 0 {
		return whole.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return whole.String() + "." + frac
}
