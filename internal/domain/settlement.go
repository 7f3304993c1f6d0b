package domain

import (
	"context"
	"math/big"
)

// Call is one entry of an ordered on-chain call batch: contract address,
// entrypoint name, and felt-encoded calldata.
type Call struct {
	Contract   string   `json:"contract"`
	Entrypoint string   `json:"entrypoint"`
	Calldata   []string `json:"calldata"`
}

// BatchResult is the acknowledgment for a submitted call batch.
type BatchResult struct {
	TxHash string
}

// SettlementReader is the settlement engine's query surface. All three market
// reads are point-in-time snapshots with no side effects; two consecutive
// calls may observe different values as the ledger advances.
type SettlementReader interface {
	MarketInfo(ctx context.Context, address string) (Market, error)
	PoolInfo(ctx context.Context, address string) (Pool, error)
	UserInfo(ctx context.Context, address, participant string) (UserPosition, error)
	// BalanceOf reads the participant's stake-asset balance from the token
	// ledger at the given address.
	BalanceOf(ctx context.Context, token, account string) (*big.Int, error)
}

// BatchSubmitter is the settlement engine's write surface, reached through
// the participant's wallet relayer. Calls within one Submit are delivered in
// order; the engine must observe an approval before the commit that spends
// it. Submit has no retry semantics of its own - retries are a fresh
// orchestrator invocation.
//
// Error contract: a batch whose first call landed but whose later call failed
// wraps ErrPartialBatchFailure; a rejection by the engine (double commit and
// the like) wraps ErrRemoteRejected.
type BatchSubmitter interface {
	Submit(ctx context.Context, calls []Call) (BatchResult, error)
}
