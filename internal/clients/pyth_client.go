package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lucifer1017/yieldforge/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// PythClient pulls price updates from a Pyth Hermes endpoint. It also acts
// as the ledger's oracle source: the raw blobs it fetches are the blobs it
// knows how to decode.
type PythClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPythClient creates a Hermes client. timeout is in seconds; zero means
// the 10 second default.
func NewPythClient(baseURL string, timeout int) *PythClient {
	if timeout <= 0 {
		timeout = 10
	}
	return &PythClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// hermesLatestResponse is the shape of GET /v2/updates/price/latest.
type hermesLatestResponse struct {
	Parsed []hermesParsedFeed `json:"parsed"`
}

type hermesParsedFeed struct {
	ID    string `json:"id"`
	Price struct {
		Price       string `json:"price"`
		Conf        string `json:"conf"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

// FetchLatest pulls the latest readings for the given feeds and returns one
// blob per feed, each decodable by ParsePriceUpdates.
func (c *PythClient) FetchLatest(ctx context.Context, feedIDs []common.Hash) ([][]byte, error) {
	if len(feedIDs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	for _, id := range feedIDs {
		query.Add("ids[]", id.Hex())
	}
	endpoint := fmt.Sprintf("%s/v2/updates/price/latest?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hermes request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hermes returned status %d: %s", resp.StatusCode, string(body))
	}

	var latest hermesLatestResponse
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, fmt.Errorf("failed to decode hermes response: %w", err)
	}

	blobs := make([][]byte, 0, len(latest.Parsed))
	for _, feed := range latest.Parsed {
		blob, err := json.Marshal(feed)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode feed %s: %w", feed.ID, err)
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// ParsePriceUpdates decodes blobs produced by FetchLatest.
func (c *PythClient) ParsePriceUpdates(data [][]byte) ([]ledger.PriceData, error) {
	out := make([]ledger.PriceData, 0, len(data))
	for _, blob := range data {
		var feed hermesParsedFeed
		if err := json.Unmarshal(blob, &feed); err != nil {
			return nil, fmt.Errorf("failed to parse price update: %w", err)
		}

		price, err := strconv.ParseInt(feed.Price.Price, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for feed %s: %w", feed.Price.Price, feed.ID, err)
		}
		conf, err := strconv.ParseUint(feed.Price.Conf, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q for feed %s: %w", feed.Price.Conf, feed.ID, err)
		}

		out = append(out, ledger.PriceData{
			FeedID:      common.HexToHash(feed.ID),
			Price:       price,
			Confidence:  conf,
			Expo:        feed.Price.Expo,
			PublishTime: time.Unix(feed.Price.PublishTime, 0),
		})
	}
	return out, nil
}
