package settlement

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// questionPlaceholder stands in for markets deployed without an on-chain
// question string.
const questionPlaceholder = "BTC Prediction"

// maxFeltBits bounds a field element; anything wider is a malformed response.
const maxFeltBits = 252

// parseFelt parses one felt value from the engine's response. Both 0x-hex and
// decimal renderings appear in the wild.
func parseFelt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty felt: %w", domain.ErrDecodeFailure)
	}

	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("malformed felt %q: %w", s, domain.ErrDecodeFailure)
	}
	if v.Sign() < 0 || v.BitLen() > maxFeltBits {
		return nil, fmt.Errorf("felt %q out of range: %w", s, domain.ErrDecodeFailure)
	}
	return v, nil
}

// parseFeltUint64 parses a felt expected to fit in 64 bits (deadlines, counts).
func parseFeltUint64(s string) (uint64, error) {
	v, err := parseFelt(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("felt %q exceeds u64: %w", s, domain.ErrDecodeFailure)
	}
	return v.Uint64(), nil
}

// parseFeltBool parses a felt-encoded flag. Only 0 and 1 are legal.
func parseFeltBool(s string) (bool, error) {
	n, err := parseFeltUint64(s)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("felt %q is not a bool: %w", s, domain.ErrDecodeFailure)
	}
}

// parseU256 combines the low and high limbs of a two-felt unsigned 256-bit
// value into a big.Int.
func parseU256(low, high string) (*big.Int, error) {
	lo, err := parseFelt(low)
	if err != nil {
		return nil, err
	}
	hi, err := parseFelt(high)
	if err != nil {
		return nil, err
	}
	if lo.BitLen() > 128 || hi.BitLen() > 128 {
		return nil, fmt.Errorf("u256 limb exceeds 128 bits: %w", domain.ErrDecodeFailure)
	}
	return new(big.Int).Or(new(big.Int).Lsh(hi, 128), lo), nil
}

// decodeShortString decodes a felt-packed ASCII short string. A zero felt or a
// payload with non-printable bytes falls back to the placeholder rather than
// surfacing mojibake.
func decodeShortString(s string) (string, error) {
	v, err := parseFelt(s)
	if err != nil {
		return "", err
	}
	if v.Sign() == 0 {
		return questionPlaceholder, nil
	}

	raw := v.Bytes()
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return questionPlaceholder, nil
		}
	}
	return string(raw), nil
}

// encodeUint64 renders an integer as 0x-hex felt calldata.
func encodeUint64(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// encodeU256 splits an unsigned 256-bit amount into its low and high felt
// limbs, in calldata order.
func encodeU256(v *big.Int) (low, high string, err error) {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return "", "", fmt.Errorf("settlement: amount out of u256 range")
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	lo := new(big.Int).And(v, mask)
	hi := new(big.Int).Rsh(v, 128)
	return fmt.Sprintf("0x%x", lo), fmt.Sprintf("0x%x", hi), nil
}
