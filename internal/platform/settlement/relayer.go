package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// RelayerClient implements domain.BatchSubmitter against the participant's
// wallet relayer. The relayer signs and submits the batch on the
// participant's behalf; calls within one batch execute in order and the whole
// batch reverts together unless the relayer reports otherwise.
type RelayerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayerClient creates a wallet-relayer client.
func NewRelayerClient(baseURL string, timeout time.Duration) *RelayerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RelayerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ domain.BatchSubmitter = (*RelayerClient)(nil)

type executeRequest struct {
	Calls []domain.Call `json:"calls"`
}

type executeResponse struct {
	TxHash string `json:"tx_hash"`
	// Error fields, populated on rejection.
	Error    string `json:"error,omitempty"`
	Executed int    `json:"executed,omitempty"` // calls that landed before the failure
}

// Submit sends an ordered call batch to the relayer. A rejection where some
// calls already landed wraps domain.ErrPartialBatchFailure; an engine-side
// revert (double commit, closed window) wraps domain.ErrRemoteRejected.
func (r *RelayerClient) Submit(ctx context.Context, calls []domain.Call) (domain.BatchResult, error) {
	if len(calls) == 0 {
		return domain.BatchResult{}, fmt.Errorf("settlement: empty call batch")
	}

	payload, err := json.Marshal(executeRequest{Calls: calls})
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("settlement: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("settlement: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("settlement: submit batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("settlement: read relayer response: %w", err)
	}

	var out executeResponse
	if unmarshalErr := json.Unmarshal(body, &out); unmarshalErr != nil && resp.StatusCode >= 300 {
		// Non-JSON error body; classify on status alone.
		return domain.BatchResult{}, fmt.Errorf("settlement: relayer HTTP %d: %s", resp.StatusCode, string(body))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out.TxHash == "" {
			return domain.BatchResult{}, fmt.Errorf("settlement: relayer accepted batch without tx hash: %w", domain.ErrDecodeFailure)
		}
		return domain.BatchResult{TxHash: out.TxHash}, nil
	}

	// A batch that failed midway left earlier calls on-chain. The approval
	// without its commit is the case the orchestrator must surface loudly.
	if out.Executed > 0 && out.Executed < len(calls) {
		return domain.BatchResult{TxHash: out.TxHash}, fmt.Errorf(
			"settlement: batch failed after %d of %d calls: %s: %w",
			out.Executed, len(calls), out.Error, domain.ErrPartialBatchFailure)
	}

	if resp.StatusCode == http.StatusConflict || isRevert(out.Error) {
		return domain.BatchResult{}, fmt.Errorf("settlement: engine rejected batch: %s: %w",
			out.Error, domain.ErrRemoteRejected)
	}

	return domain.BatchResult{}, fmt.Errorf("settlement: relayer HTTP %d: %s", resp.StatusCode, out.Error)
}

// isRevert reports whether the relayer error text carries an execution revert
// from the engine rather than a transport-level failure.
func isRevert(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "revert") || strings.Contains(m, "assert")
}
