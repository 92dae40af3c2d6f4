package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const hermesFixture = `{
	"parsed": [
		{
			"id": "c9d8b075a5c69303365ae23633d4e085199bf5c520a3b90fed1322a0342ffc33",
			"price": {
				"price": "99995000",
				"conf": "52000",
				"expo": -8,
				"publish_time": 1717243200
			}
		}
	]
}`

func TestFetchLatestAndParse(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NotEmpty(t, r.URL.Query()["ids[]"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(hermesFixture))
	}))
	defer server.Close()

	client := NewPythClient(server.URL, 5)
	feedID := common.HexToHash("0xc9d8b075a5c69303365ae23633d4e085199bf5c520a3b90fed1322a0342ffc33")

	blobs, err := client.FetchLatest(context.Background(), []common.Hash{feedID})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, "/v2/updates/price/latest", gotPath)

	parsed, err := client.ParsePriceUpdates(blobs)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.Equal(t, feedID, parsed[0].FeedID)
	require.Equal(t, int64(99995000), parsed[0].Price)
	require.Equal(t, uint64(52000), parsed[0].Confidence)
	require.Equal(t, int32(-8), parsed[0].Expo)
	require.Equal(t, time.Unix(1717243200, 0), parsed[0].PublishTime)
}

func TestFetchLatestEmptyFeedList(t *testing.T) {
	client := NewPythClient("http://unused", 5)
	blobs, err := client.FetchLatest(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, blobs)
}

func TestFetchLatestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewPythClient(server.URL, 5)
	_, err := client.FetchLatest(context.Background(), []common.Hash{{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestParsePriceUpdatesRejectsGarbage(t *testing.T) {
	client := NewPythClient("http://unused", 5)
	_, err := client.ParsePriceUpdates([][]byte{[]byte("not json")})
	require.Error(t, err)
}
