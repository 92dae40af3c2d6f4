package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	pyusdFeed = common.HexToHash("0x0101")
	apyFeed   = common.HexToHash("0x0202")
)

// stubSource hands back canned readings regardless of the raw blobs.
type stubSource struct {
	parsed []PriceData
	err    error
}

func (s *stubSource) ParsePriceUpdates(_ [][]byte) ([]PriceData, error) {
	return s.parsed, s.err
}

func newTestOracle(t *testing.T, source OracleSource) (*OracleIntegrator, *fakeClock, *recordingSink) {
	t.Helper()
	clock := newFakeClock()
	sink := &recordingSink{}
	acl := NewAccessRegistry(deployer)
	oracle := NewOracleIntegrator(acl, source, big.NewInt(1_000_000_000_000_000), sink)
	oracle.SetNowFunc(clock.Now)
	return oracle, clock, sink
}

func TestRegisterFeedAndResolve(t *testing.T) {
	oracle, _, sink := newTestOracle(t, nil)

	require.NoError(t, oracle.RegisterFeed(deployer, pyusdFeed, "PYUSD/USD"))

	id, err := oracle.GetFeedID("PYUSD/USD")
	require.NoError(t, err)
	require.Equal(t, pyusdFeed, id)

	_, err = oracle.GetFeedID("WETH/USD")
	require.ErrorIs(t, err, ErrFeedNotFound)

	require.Len(t, sink.ofType("oracle.feed_registered"), 1)
}

func TestRegisterFeedRequiresAdmin(t *testing.T) {
	oracle, _, _ := newTestOracle(t, nil)

	err := oracle.RegisterFeed(user1, pyusdFeed, "PYUSD/USD")
	require.ErrorIs(t, err, ErrUnauthorizedAccount)
}

func TestRegisterFeedSeedsUnitPrice(t *testing.T) {
	oracle, _, _ := newTestOracle(t, nil)

	require.NoError(t, oracle.RegisterFeed(deployer, pyusdFeed, "PYUSD/USD"))

	pd, valid, err := oracle.GetLatestPrice(pyusdFeed)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, int64(100_000_000), pd.Price)
	require.Equal(t, int32(-8), pd.Expo)
}

func TestUpdatePriceFeedsFeeGating(t *testing.T) {
	source := &stubSource{parsed: []PriceData{{FeedID: pyusdFeed, Price: 99_990_000, Expo: -8}}}
	oracle, _, _ := newTestOracle(t, source)
	require.NoError(t, oracle.RegisterFeed(deployer, pyusdFeed, "PYUSD/USD"))

	// 0.0001 ETH is below the 0.001 ETH floor.
	err := oracle.UpdatePriceFeeds([][]byte{{0x01}}, big.NewInt(100_000_000_000_000))
	require.ErrorIs(t, err, ErrInsufficientFee)

	err = oracle.UpdatePriceFeeds([][]byte{{0x01}}, big.NewInt(1_000_000_000_000_000))
	require.NoError(t, err)

	pd, _, err := oracle.GetLatestPrice(pyusdFeed)
	require.NoError(t, err)
	require.Equal(t, int64(99_990_000), pd.Price)
}

func TestUpdatePriceFeedsSkipsUnregistered(t *testing.T) {
	source := &stubSource{parsed: []PriceData{
		{FeedID: pyusdFeed, Price: 99_990_000, Expo: -8},
		{FeedID: apyFeed, Price: 42, Expo: 0},
	}}
	oracle, _, sink := newTestOracle(t, source)
	require.NoError(t, oracle.RegisterFeed(deployer, pyusdFeed, "PYUSD/USD"))

	require.NoError(t, oracle.UpdatePriceFeeds(nil, big.NewInt(1_000_000_000_000_000)))

	require.Len(t, sink.ofType("oracle.price_updated"), 1)
	_, _, err := oracle.GetLatestPrice(apyFeed)
	require.ErrorIs(t, err, ErrFeedNotFound)
}

func TestStalenessWindow(t *testing.T) {
	oracle, clock, _ := newTestOracle(t, nil)
	require.NoError(t, oracle.RegisterFeed(deployer, pyusdFeed, "PYUSD/USD"))

	pd, err := oracle.GetValidPrice(pyusdFeed, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(100_000_000), pd.Price)

	clock.Advance(2 * time.Minute)

	_, err = oracle.GetValidPrice(pyusdFeed, time.Minute)
	require.ErrorIs(t, err, ErrStalePrice)

	ok, err := oracle.IsPriceValid(pyusdFeed, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = oracle.IsPriceValid(pyusdFeed, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// The informational flag on GetLatestPrice tracks the same clock.
	_, valid, err := oracle.GetLatestPrice(pyusdFeed)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestUpdateAPYAndDefault(t *testing.T) {
	oracle, _, sink := newTestOracle(t, nil)

	// No registration required for APY feeds.
	require.Equal(t, DefaultAPYBps, oracle.GetAPY(apyFeed))

	require.ErrorIs(t, oracle.UpdateAPY(user1, apyFeed, 450), ErrUnauthorizedAccount)

	require.NoError(t, oracle.UpdateAPY(deployer, apyFeed, 450))
	require.Equal(t, uint32(450), oracle.GetAPY(apyFeed))
	require.Len(t, sink.ofType("oracle.apy_updated"), 1)
}

func TestUpdatePriceFeedsWithoutSource(t *testing.T) {
	oracle, _, _ := newTestOracle(t, nil)

	err := oracle.UpdatePriceFeeds(nil, big.NewInt(1_000_000_000_000_000))
	require.ErrorIs(t, err, errNoOracleSource)
}
