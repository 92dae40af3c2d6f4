package services

import (
	"context"
	"sync"
	"time"

	"github.com/lucifer1017/yieldforge/internal/clients"
	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const schedulerBatchSize = 200

// AgentSchedulerService scans active intents and executes the ones whose
// conditions are met: cooldown elapsed and the market APY clearing the
// intent's floor by the configured margin. Execution failures are expected
// (cooldown races, deactivations) and only logged.
type AgentSchedulerService struct {
	intents       *IntentService
	oracle        *OracleService
	repo          repository.IntentRepository
	gas           *clients.GasPriceClient
	logger        *logrus.Logger
	interval      time.Duration
	apyFeed       common.Hash
	minYieldDelta uint32

	ticker    *time.Ticker
	done      chan bool
	mu        sync.Mutex
	isRunning bool
}

func NewAgentSchedulerService(intents *IntentService, oracle *OracleService, repo repository.IntentRepository, gas *clients.GasPriceClient, apyFeed common.Hash, minYieldDelta uint32, interval time.Duration, logger *logrus.Logger) *AgentSchedulerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AgentSchedulerService{
		intents:       intents,
		oracle:        oracle,
		repo:          repo,
		gas:           gas,
		logger:        logger,
		interval:      interval,
		apyFeed:       apyFeed,
		minYieldDelta: minYieldDelta,
		done:          make(chan bool),
	}
}

// Start begins the scan loop.
func (s *AgentSchedulerService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.ticker = time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-s.done:
				s.ticker.Stop()
				return
			case <-s.ticker.C:
				s.scanAndExecute()
			}
		}
	}()

	s.logger.WithField("interval", s.interval).Info("✅ Agent scheduler started")
}

// Stop stops the scan loop.
func (s *AgentSchedulerService) Stop() {
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
	s.logger.Info("🛑 Agent scheduler stopped")
}

func (s *AgentSchedulerService) scanAndExecute() {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	candidates, total, err := s.repo.FindActive(ctx, 1, schedulerBatchSize)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load active intents")
		return
	}
	if total == 0 {
		return
	}

	marketAPY := s.oracle.APY(s.apyFeed)
	gasByChain := make(map[uint64]uint64)

	executed := 0
	for _, record := range candidates {
		if record.LastExecuted != nil && time.Since(*record.LastExecuted) < ledger.ExecutionCooldown {
			continue
		}
		if marketAPY < record.MinAPYBps+s.minYieldDelta {
			continue
		}
		if s.gasTooHigh(ctx, gasByChain, record.TargetChainID, record.MaxGasPrice) {
			continue
		}

		user := common.HexToAddress(record.Owner)
		if _, err := s.intents.Execute(ctx, user, record.IntentIndex, nil); err != nil {
			s.logger.WithFields(logrus.Fields{
				"user":  record.Owner,
				"index": record.IntentIndex,
			}).WithError(err).Debug("Scheduled execution skipped")
			continue
		}
		executed++
	}

	if executed > 0 {
		s.logger.WithFields(logrus.Fields{
			"executed":   executed,
			"candidates": len(candidates),
			"market_apy": marketAPY,
		}).Info("Scheduler pass completed")
	}
}

// gasTooHigh reports whether the current gas price on chainID exceeds the
// intent's ceiling. Readings are cached per pass; a failed or missing
// reading never blocks execution.
func (s *AgentSchedulerService) gasTooHigh(ctx context.Context, cache map[uint64]uint64, chainID uint64, maxGasPrice uint64) bool {
	if maxGasPrice == 0 || s.gas == nil {
		return false
	}

	price, ok := cache[chainID]
	if !ok {
		fetched, err := s.gas.GasPriceGwei(ctx, chainID)
		if err != nil {
			s.logger.WithField("chain_id", chainID).WithError(err).Debug("Gas price lookup failed")
			fetched = 0
		}
		cache[chainID] = fetched
		price = fetched
	}

	return price > 0 && price > maxGasPrice
}
