package ledger

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultAPYBps is returned for a feed whose APY was never set. Always
	// positive so downstream guardrail math has a floor to work with.
	DefaultAPYBps uint32 = 400
	// defaultValidityWindow feeds the non-authoritative IsValid flag on
	// GetLatestPrice. Callers enforcing staleness pass their own maxAge.
	defaultValidityWindow = 60 * time.Second
)

var errNoOracleSource = errors.New("oracle source not configured")

// PriceData is one cached reading from the external oracle network.
type PriceData struct {
	FeedID      common.Hash `json:"feed_id"`
	Price       int64       `json:"price"`
	Confidence  uint64      `json:"confidence"`
	Expo        int32       `json:"expo"`
	PublishTime time.Time   `json:"publish_time"`
}

// OracleSource is the narrow capability through which raw update blobs from
// the oracle network are decoded. The integrator never calls out
// synchronously for a price; updates are pushed through UpdatePriceFeeds.
type OracleSource interface {
	ParsePriceUpdates(data [][]byte) ([]PriceData, error)
}

// OracleIntegrator caches symbol->feed mappings, prices and APY readings,
// and exposes staleness-checked reads to the vault and intent guardrails.
type OracleIntegrator struct {
	mu sync.Mutex

	acl    *AccessRegistry
	source OracleSource
	sink   EventSink
	now    func() time.Time

	minUpdateFee *big.Int

	symbols    map[string]common.Hash // symbol -> feed id
	registered map[common.Hash]string // feed id -> symbol
	prices     map[common.Hash]PriceData
	apy        map[common.Hash]uint32
}

func NewOracleIntegrator(acl *AccessRegistry, source OracleSource, minUpdateFee *big.Int, sink EventSink) *OracleIntegrator {
	return &OracleIntegrator{
		acl:          acl,
		source:       source,
		sink:         sink,
		now:          time.Now,
		minUpdateFee: clone(minUpdateFee),
		symbols:      make(map[string]common.Hash),
		registered:   make(map[common.Hash]string),
		prices:       make(map[common.Hash]PriceData),
		apy:          make(map[common.Hash]uint32),
	}
}

// SetNowFunc overrides the clock. Test hook.
func (o *OracleIntegrator) SetNowFunc(now func() time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = now
}

// RegisterFeed binds a human-readable symbol to an opaque feed id and seeds
// a unit-price cache entry stamped now, so reads work before the first
// push arrives.
func (o *OracleIntegrator) RegisterFeed(caller common.Address, feedID common.Hash, symbol string) error {
	if err := o.acl.requireAdmin(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.symbols[symbol] = feedID
	o.registered[feedID] = symbol
	if _, ok := o.prices[feedID]; !ok {
		o.prices[feedID] = PriceData{
			FeedID:      feedID,
			Price:       100_000_000, // 1.0 at expo -8
			Expo:        -8,
			PublishTime: o.now(),
		}
	}

	publish(o.sink, PriceFeedRegisteredEvent{FeedID: feedID, Symbol: symbol})
	return nil
}

// GetFeedID resolves a registered symbol.
func (o *OracleIntegrator) GetFeedID(symbol string) (common.Hash, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.symbols[symbol]
	if !ok {
		return common.Hash{}, ErrFeedNotFound
	}
	return id, nil
}

// UpdatePriceFeeds forwards raw update blobs to the oracle source and
// refreshes the cache for every registered feed the blobs cover. The
// attached fee must meet the configured minimum.
func (o *OracleIntegrator) UpdatePriceFeeds(updates [][]byte, fee *big.Int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.minUpdateFee != nil && o.minUpdateFee.Sign() > 0 {
		if fee == nil || fee.Cmp(o.minUpdateFee) < 0 {
			return ErrInsufficientFee
		}
	}
	if o.source == nil {
		return errNoOracleSource
	}

	parsed, err := o.source.ParsePriceUpdates(updates)
	if err != nil {
		return err
	}
	for _, pd := range parsed {
		if _, ok := o.registered[pd.FeedID]; !ok {
			continue
		}
		if pd.PublishTime.IsZero() {
			pd.PublishTime = o.now()
		}
		o.prices[pd.FeedID] = pd
		publish(o.sink, PriceUpdatedEvent{
			FeedID: pd.FeedID, Price: pd.Price, Confidence: pd.Confidence, PublishTime: pd.PublishTime,
		})
	}
	return nil
}

// GetLatestPrice returns the cached reading plus a computed validity flag.
// The flag is informational; staleness enforcement belongs to
// GetValidPrice.
func (o *OracleIntegrator) GetLatestPrice(feedID common.Hash) (PriceData, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.registered[feedID]; !ok {
		return PriceData{}, false, ErrFeedNotFound
	}
	pd := o.prices[feedID]
	valid := o.now().Sub(pd.PublishTime) <= defaultValidityWindow
	return pd, valid, nil
}

// GetValidPrice returns the cached reading only if it is younger than
// maxAge.
func (o *OracleIntegrator) GetValidPrice(feedID common.Hash, maxAge time.Duration) (PriceData, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.registered[feedID]; !ok {
		return PriceData{}, ErrFeedNotFound
	}
	pd := o.prices[feedID]
	if o.now().Sub(pd.PublishTime) > maxAge {
		return PriceData{}, ErrStalePrice
	}
	return pd, nil
}

// IsPriceValid reports whether the cached reading is younger than maxAge.
func (o *OracleIntegrator) IsPriceValid(feedID common.Hash, maxAge time.Duration) (bool, error) {
	_, err := o.GetValidPrice(feedID, maxAge)
	if errors.Is(err, ErrStalePrice) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAPY records an APY reading for a feed. ADMIN-only; registration is
// not required (APY feeds exist independently of price feeds).
func (o *OracleIntegrator) UpdateAPY(caller common.Address, feedID common.Hash, apyBps uint32) error {
	if err := o.acl.requireAdmin(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.apy[feedID] = apyBps
	publish(o.sink, APYUpdatedEvent{FeedID: feedID, APYBps: apyBps})
	return nil
}

// GetAPY returns the recorded APY for a feed, or a positive default when
// it was never set.
func (o *OracleIntegrator) GetAPY(feedID common.Hash) uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if apy, ok := o.apy[feedID]; ok {
		return apy
	}
	return DefaultAPYBps
}

// MinUpdateFee returns the fee floor for UpdatePriceFeeds.
func (o *OracleIntegrator) MinUpdateFee() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return clone(o.minUpdateFee)
}
