package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Gas oracle endpoints per chain. Chains without one are not gas-gated.
var gasOracleEndpoints = map[uint64]string{
	1:     "https://api.etherscan.io/api?module=gastracker&action=gasoracle",
	10:    "https://api-optimistic.etherscan.io/api?module=gastracker&action=gasoracle",
	137:   "https://api.polygonscan.com/api?module=gastracker&action=gasoracle",
	8453:  "https://api.basescan.org/api?module=gastracker&action=gasoracle",
	42161: "https://api.arbiscan.io/api?module=gastracker&action=gasoracle",
}

// GasPriceClient reads current gas prices from the per-chain gas oracles.
type GasPriceClient struct {
	httpClient *http.Client
}

func NewGasPriceClient() *GasPriceClient {
	return &GasPriceClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// gasOracleResponse is the Etherscan-family gas tracker payload.
type gasOracleResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		SafeGasPrice    string `json:"SafeGasPrice"`
		ProposeGasPrice string `json:"ProposeGasPrice"`
		FastGasPrice    string `json:"FastGasPrice"`
	} `json:"result"`
}

// GasPriceGwei returns the proposed gas price for chainID, rounded up to a
// whole gwei. Chains without a known oracle return (0, nil); callers treat
// zero as "no reading".
func (c *GasPriceClient) GasPriceGwei(ctx context.Context, chainID uint64) (uint64, error) {
	url, ok := gasOracleEndpoints[chainID]
	if !ok {
		return 0, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gas oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gas oracle returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read gas oracle response: %w", err)
	}

	var parsed gasOracleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode gas oracle response: %w", err)
	}
	if parsed.Status != "1" {
		return 0, fmt.Errorf("gas oracle error: %s", parsed.Message)
	}

	price, err := strconv.ParseFloat(parsed.Result.ProposeGasPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable gas price %q: %w", parsed.Result.ProposeGasPrice, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative gas price %q", parsed.Result.ProposeGasPrice)
	}
	return uint64(math.Ceil(price)), nil
}
