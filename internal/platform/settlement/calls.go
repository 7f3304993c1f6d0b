package settlement

import (
	"fmt"
	"math/big"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// CommitBatch builds the ordered two-call batch for a commit: approve the
// market to pull the stake from the token ledger, then commit. Order matters;
// the engine checks the allowance inside the commit call.
func CommitBatch(stakeToken, market, commitmentHash string, stake *big.Int) ([]domain.Call, error) {
	if stake == nil || stake.Sign() <= 0 {
		return nil, fmt.Errorf("settlement: stake must be positive")
	}
	low, high, err := encodeU256(stake)
	if err != nil {
		return nil, err
	}

	return []domain.Call{
		{
			Contract:   stakeToken,
			Entrypoint: "approve",
			Calldata:   []string{market, low, high},
		},
		{
			Contract:   market,
			Entrypoint: "commit",
			Calldata:   []string{commitmentHash, low, high},
		},
	}, nil
}

// RevealCall builds the single call that opens a commitment: the plain vote
// and the secret the commitment was derived from.
func RevealCall(market string, vote domain.Vote, secretHex string) ([]domain.Call, error) {
	if !vote.Valid() {
		return nil, fmt.Errorf("settlement: vote sentinel %d is not revealable", vote)
	}
	return []domain.Call{
		{
			Contract:   market,
			Entrypoint: "reveal",
			Calldata:   []string{encodeUint64(uint64(vote)), secretHex},
		},
	}, nil
}

// ClaimCall builds the single call that collects winnings from a resolved
// market.
func ClaimCall(market string) []domain.Call {
	return []domain.Call{
		{
			Contract:   market,
			Entrypoint: "claim",
			Calldata:   []string{},
		},
	}
}
