package services

import (
	"math/big"
	"time"

	"github.com/lucifer1017/yieldforge/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// OracleService exposes staleness-checked price reads and APY controls.
type OracleService struct {
	core        *ledger.Core
	maxPriceAge time.Duration
	logger      *logrus.Logger
}

func NewOracleService(core *ledger.Core, maxPriceAge time.Duration, logger *logrus.Logger) *OracleService {
	if maxPriceAge <= 0 {
		maxPriceAge = time.Minute
	}
	return &OracleService{core: core, maxPriceAge: maxPriceAge, logger: logger}
}

// RegisterFeed binds a symbol to a feed id. ADMIN-only.
func (s *OracleService) RegisterFeed(caller common.Address, feedID common.Hash, symbol string) error {
	if err := s.core.Oracle.RegisterFeed(caller, feedID, symbol); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"feed":   feedID.Hex(),
	}).Info("Price feed registered")
	return nil
}

// ResolveFeed returns the feed id registered for symbol.
func (s *OracleService) ResolveFeed(symbol string) (common.Hash, error) {
	return s.core.Oracle.GetFeedID(symbol)
}

// LatestPrice returns the cached reading with its validity flag.
func (s *OracleService) LatestPrice(feedID common.Hash) (ledger.PriceData, bool, error) {
	return s.core.Oracle.GetLatestPrice(feedID)
}

// ValidPrice returns the cached reading only when younger than the
// configured staleness bound.
func (s *OracleService) ValidPrice(feedID common.Hash) (ledger.PriceData, error) {
	return s.core.Oracle.GetValidPrice(feedID, s.maxPriceAge)
}

// UpdatePrices pushes raw update blobs into the ledger cache.
func (s *OracleService) UpdatePrices(updates [][]byte, fee *big.Int) error {
	return s.core.Oracle.UpdatePriceFeeds(updates, fee)
}

// APY returns the recorded APY for feedID, or the default floor.
func (s *OracleService) APY(feedID common.Hash) uint32 {
	return s.core.Oracle.GetAPY(feedID)
}

// UpdateAPY records an APY reading. ADMIN-only.
func (s *OracleService) UpdateAPY(caller common.Address, feedID common.Hash, apyBps uint32) error {
	if err := s.core.Oracle.UpdateAPY(caller, feedID, apyBps); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"feed": feedID.Hex(),
		"apy":  apyBps,
	}).Info("APY updated")
	return nil
}

// MinUpdateFee returns the fee floor for price pushes.
func (s *OracleService) MinUpdateFee() *big.Int {
	return s.core.Oracle.MinUpdateFee()
}
