// Package commitment implements the binding-and-hiding commitment scheme of
// the ShadowTrade protocol: a one-way function of (vote, secret) published at
// commit time and re-derived by the settlement engine at reveal time.
package commitment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// secretLen is the number of random bytes in a generated secret. 256 bits is
// far beyond any brute-force budget over a reveal window.
const secretLen = 32

// NewSecret returns a fresh random secret as a 0x-prefixed hex string. The
// bytes come from crypto/rand; a predictable source would let an observer
// grind (vote, secret) pairs against the published commitment.
func NewSecret() (string, error) {
	buf := make([]byte, secretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("commitment: generate secret: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// Compute derives the commitment for a (vote, secret) pair as
// keccak256(voteByte || secretBytes), returned as a 0x-prefixed hex string.
// The function is deterministic: the settlement engine re-applies it to the
// revealed pair and compares against the published value.
//
// An empty or malformed secret returns ErrInvalidSecret rather than silently
// producing a weak commitment.
func Compute(vote domain.Vote, secret string) (string, error) {
	if !vote.Valid() {
		return "", fmt.Errorf("commitment: vote sentinel %d is not committable", vote)
	}
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	preimage := make([]byte, 0, 1+len(secretBytes))
	preimage = append(preimage, byte(vote))
	preimage = append(preimage, secretBytes...)

	return "0x" + hex.EncodeToString(ethcrypto.Keccak256(preimage)), nil
}

// SecretHex normalizes a user-supplied secret into the 0x-prefixed hex form
// used on the wire at reveal time. It applies the same byte decoding as
// Compute, so the revealed value always matches the committed preimage.
func SecretHex(secret string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// decodeSecret converts a user-supplied secret into its byte form. 0x-prefixed
// values must be valid hex; anything else is hashed as its raw UTF-8 bytes so
// hand-typed passphrases keep working.
func decodeSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, fmt.Errorf("commitment: empty secret: %w", domain.ErrInvalidSecret)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h := s[2:]
		if h == "" {
			return nil, fmt.Errorf("commitment: empty hex secret: %w", domain.ErrInvalidSecret)
		}
		if len(h)%2 != 0 {
			h = "0" + h
		}
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("commitment: malformed hex secret: %w", domain.ErrInvalidSecret)
		}
		return raw, nil
	}
	return []byte(s), nil
}
