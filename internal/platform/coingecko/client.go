// Package coingecko is a minimal client for the CoinGecko simple-price API,
// used to anchor market commentary to the live BTC spot price.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the REST client for the CoinGecko API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a CoinGecko client.
//
// baseURL is the API root, e.g. "https://api.coingecko.com/api/v3".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BTCPriceUSD returns the current bitcoin spot price in USD.
func (c *Client) BTCPriceUSD(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?ids=bitcoin&vs_currencies=usd", nil)
	if err != nil {
		return 0, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coingecko: get price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var out map[string]map[string]float64
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("coingecko: decode response: %w", err)
	}
	price, ok := out["bitcoin"]["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("coingecko: response missing bitcoin/usd price")
	}
	return price, nil
}
