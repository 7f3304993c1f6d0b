// Package settlement talks to the on-chain settlement engine: a read gateway
// for market queries and a wallet relayer for ordered write batches.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// ReaderClient implements domain.SettlementReader over the read gateway's
// JSON-RPC surface. Every read is a view call; nothing here mutates chain
// state.
type ReaderClient struct {
	baseURL    string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewReaderClient creates a read-gateway client.
//
// baseURL is the gateway root, e.g.
// "https://starknet-sepolia.public.blastapi.io/rpc/v0_7".
func NewReaderClient(baseURL string, timeout time.Duration) *ReaderClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReaderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ domain.SettlementReader = (*ReaderClient)(nil)

// MarketInfo reads the market's static metadata and resolution state. A market
// whose reveal deadline precedes its commit deadline is rejected here, at the
// edge, so nothing downstream ever sees an impossible window.
func (c *ReaderClient) MarketInfo(ctx context.Context, address string) (domain.Market, error) {
	result, err := c.call(ctx, address, "get_market_info", nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: %w", address, err)
	}
	if len(result) != 5 {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: got %d felts, want 5: %w",
			address, len(result), domain.ErrDecodeFailure)
	}

	question, err := decodeShortString(result[0])
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: question: %w", address, err)
	}
	commitDeadline, err := parseFeltUint64(result[1])
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: commit deadline: %w", address, err)
	}
	revealDeadline, err := parseFeltUint64(result[2])
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: reveal deadline: %w", address, err)
	}
	resolved, err := parseFeltBool(result[3])
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: resolved: %w", address, err)
	}
	outcome, err := parseFeltUint64(result[4])
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement: market info %s: outcome: %w", address, err)
	}

	if revealDeadline < commitDeadline {
		return domain.Market{}, fmt.Errorf("settlement: market %s: reveal deadline %d before commit deadline %d: %w",
			address, revealDeadline, commitDeadline, domain.ErrInvalidDeadlines)
	}

	return domain.Market{
		Address:        address,
		Question:       question,
		CommitDeadline: int64(commitDeadline),
		RevealDeadline: int64(revealDeadline),
		Resolved:       resolved,
		Outcome:        domain.Outcome(outcome),
	}, nil
}

// PoolInfo reads the revealed-vote tallies and stake pools.
func (c *ReaderClient) PoolInfo(ctx context.Context, address string) (domain.Pool, error) {
	result, err := c.call(ctx, address, "get_pool_info", nil)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: %w", address, err)
	}
	if len(result) != 6 {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: got %d felts, want 6: %w",
			address, len(result), domain.ErrDecodeFailure)
	}

	yesVotes, err := parseFeltUint64(result[0])
	if err != nil {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: yes votes: %w", address, err)
	}
	noVotes, err := parseFeltUint64(result[1])
	if err != nil {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: no votes: %w", address, err)
	}
	yesStake, err := parseU256(result[2], result[3])
	if err != nil {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: yes stake: %w", address, err)
	}
	noStake, err := parseU256(result[4], result[5])
	if err != nil {
		return domain.Pool{}, fmt.Errorf("settlement: pool info %s: no stake: %w", address, err)
	}

	return domain.Pool{
		YesVotes: uint32(yesVotes),
		NoVotes:  uint32(noVotes),
		YesStake: yesStake,
		NoStake:  noStake,
	}, nil
}

// UserInfo reads the participant's progression on a market.
func (c *ReaderClient) UserInfo(ctx context.Context, address, participant string) (domain.UserPosition, error) {
	result, err := c.call(ctx, address, "get_user_info", []string{participant})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s/%s: %w", address, participant, err)
	}
	if len(result) != 6 {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s/%s: got %d felts, want 6: %w",
			address, participant, len(result), domain.ErrDecodeFailure)
	}

	committed, err := parseFeltBool(result[0])
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s: committed: %w", address, err)
	}
	revealed, err := parseFeltBool(result[1])
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s: revealed: %w", address, err)
	}
	claimed, err := parseFeltBool(result[2])
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s: claimed: %w", address, err)
	}
	vote, err := parseFeltUint64(result[3])
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s: vote: %w", address, err)
	}
	stake, err := parseU256(result[4], result[5])
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("settlement: user info %s: stake: %w", address, err)
	}

	return domain.UserPosition{
		HasCommitted: committed,
		HasRevealed:  revealed,
		HasClaimed:   claimed,
		Vote:         domain.Vote(vote),
		Stake:        stake,
	}, nil
}

// BalanceOf reads the participant's stake-asset balance from the token ledger.
func (c *ReaderClient) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	result, err := c.call(ctx, token, "balance_of", []string{account})
	if err != nil {
		return nil, fmt.Errorf("settlement: balance of %s: %w", account, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("settlement: balance of %s: got %d felts, want 2: %w",
			account, len(result), domain.ErrDecodeFailure)
	}
	bal, err := parseU256(result[0], result[1])
	if err != nil {
		return nil, fmt.Errorf("settlement: balance of %s: %w", account, err)
	}
	return bal, nil
}

// --------------------------------------------------------------------------
// JSON-RPC plumbing
// --------------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Request  rpcCall `json:"request"`
	BlockTag string  `json:"block_id"`
}

type rpcCall struct {
	ContractAddress string   `json:"contract_address"`
	EntryPoint      string   `json:"entry_point"`
	Calldata        []string `json:"calldata"`
}

type rpcResponse struct {
	Result []string  `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one view call against a contract and returns the raw felt
// result vector.
func (c *ReaderClient) call(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "starknet_call",
		Params: rpcParams{
			Request: rpcCall{
				ContractAddress: contract,
				EntryPoint:      entrypoint,
				Calldata:        calldata,
			},
			BlockTag: "latest",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w: %v", domain.ErrDecodeFailure, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
