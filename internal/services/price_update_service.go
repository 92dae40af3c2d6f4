package services

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/lucifer1017/yieldforge/internal/clients"
	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/metrics"
	"github.com/lucifer1017/yieldforge/internal/models"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// PriceUpdateService periodically pulls price updates from Hermes and pushes
// them into the oracle ledger, snapshotting each reading for history.
type PriceUpdateService struct {
	core     *ledger.Core
	pyth     *clients.PythClient
	repo     repository.PriceSnapshotRepository
	logger   *logrus.Logger
	interval time.Duration
	fee      *big.Int
	feeds    map[string]common.Hash // symbol -> feed id

	ticker    *time.Ticker
	done      chan bool
	mu        sync.Mutex
	isRunning bool
}

func NewPriceUpdateService(core *ledger.Core, pyth *clients.PythClient, repo repository.PriceSnapshotRepository, feeds map[string]common.Hash, interval time.Duration, logger *logrus.Logger) *PriceUpdateService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PriceUpdateService{
		core:     core,
		pyth:     pyth,
		repo:     repo,
		logger:   logger,
		interval: interval,
		fee:      core.Oracle.MinUpdateFee(),
		feeds:    feeds,
		done:     make(chan bool),
	}
}

// Start begins the pull loop.
func (s *PriceUpdateService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.ticker = time.NewTicker(s.interval)

	go func() {
		// Pull immediately on start so reads do not wait one full interval.
		s.updatePrices()

		for {
			select {
			case <-s.done:
				s.ticker.Stop()
				return
			case <-s.ticker.C:
				s.updatePrices()
			}
		}
	}()

	s.logger.WithField("interval", s.interval).Info("✅ Price update service started")
}

// Stop stops the pull loop.
func (s *PriceUpdateService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	select {
	case s.done <- true:
	default:
	}
	s.logger.Info("🛑 Price update service stopped")
}

func (s *PriceUpdateService) updatePrices() {
	if len(s.feeds) == 0 {
		return
	}

	feedIDs := make([]common.Hash, 0, len(s.feeds))
	symbols := make(map[common.Hash]string, len(s.feeds))
	for symbol, id := range s.feeds {
		feedIDs = append(feedIDs, id)
		symbols[id] = symbol
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	blobs, err := s.pyth.FetchLatest(ctx, feedIDs)
	if err != nil {
		metrics.PriceUpdateFailures.Inc()
		s.logger.WithError(err).Warn("Hermes pull failed")
		return
	}

	if err := s.core.Oracle.UpdatePriceFeeds(blobs, s.fee); err != nil {
		metrics.PriceUpdateFailures.Inc()
		s.logger.WithError(err).Warn("Oracle ledger rejected price updates")
		return
	}

	parsed, err := s.pyth.ParsePriceUpdates(blobs)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to re-parse updates for snapshots")
		return
	}

	now := time.Now()
	for _, pd := range parsed {
		symbol := symbols[pd.FeedID]
		metrics.PriceUpdatesReceived.WithLabelValues(symbol).Inc()
		metrics.OraclePriceAge.WithLabelValues(symbol).Set(now.Sub(pd.PublishTime).Seconds())

		if s.repo != nil {
			snapshot := &models.PriceSnapshot{
				FeedID:      pd.FeedID.Hex(),
				Symbol:      symbol,
				Price:       pd.Price,
				Confidence:  pd.Confidence,
				Expo:        pd.Expo,
				PublishTime: pd.PublishTime,
			}
			if err := s.repo.Create(ctx, snapshot); err != nil {
				s.logger.WithError(err).Warn("Failed to persist price snapshot")
			}
		}
	}
}
