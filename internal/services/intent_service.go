package services

import (
	"context"
	"time"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/metrics"
	"github.com/lucifer1017/yieldforge/internal/models"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// IntentService exposes intent submission and execution, keeping the
// database read model in step with the ledger.
type IntentService struct {
	core   *ledger.Core
	repo   repository.IntentRepository
	agent  common.Address // principal used for agent-triggered executions
	logger *logrus.Logger
}

func NewIntentService(core *ledger.Core, repo repository.IntentRepository, agent common.Address, logger *logrus.Logger) *IntentService {
	return &IntentService{core: core, repo: repo, agent: agent, logger: logger}
}

// Submit validates and stores a new intent for owner.
func (s *IntentService) Submit(ctx context.Context, owner common.Address, sub ledger.IntentSubmission) (uint32, error) {
	index, err := s.core.Intent.SubmitIntent(owner, sub)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"owner":    owner.Hex(),
			"min_apy":  sub.MinAPYBps,
			"chain_id": sub.TargetChainID,
			"protocol": sub.TargetProtocol.Hex(),
		}).WithError(err).Warn("Intent rejected")
		return 0, err
	}

	metrics.IntentsSubmitted.Inc()
	s.syncIntent(ctx, owner, index)
	s.logger.WithFields(logrus.Fields{
		"owner": owner.Hex(),
		"index": index,
	}).Info("Intent submitted")
	return index, nil
}

// Deactivate flags the owner's intent inactive.
func (s *IntentService) Deactivate(ctx context.Context, owner common.Address, index uint32) error {
	if err := s.core.Intent.DeactivateIntent(owner, index); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.MarkInactive(ctx, owner.Hex(), index); err != nil {
			s.logger.WithError(err).Warn("Failed to mark intent inactive in read model")
		}
	}
	return nil
}

// Execute runs an agent-triggered rebalance of one intent and records the
// outcome.
func (s *IntentService) Execute(ctx context.Context, user common.Address, index uint32, executionData []byte) (*ledger.RebalanceResult, error) {
	started := time.Now()
	result, err := s.core.Intent.ExecuteRebalance(s.agent, user, index, executionData)
	metrics.RebalanceDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.RebalancesExecuted.WithLabelValues("rejected").Inc()
		return nil, err
	}

	outcome := "success"
	if result.LegErr != nil {
		outcome = "leg_failed"
		s.logger.WithFields(logrus.Fields{
			"user":  user.Hex(),
			"index": index,
		}).WithError(result.LegErr).Warn("Cross-chain leg failed, rebalance stands")
	}
	metrics.RebalancesExecuted.WithLabelValues(outcome).Inc()

	if s.repo != nil {
		now := time.Now()
		if err := s.repo.MarkExecuted(ctx, user.Hex(), index, now); err != nil {
			s.logger.WithError(err).Warn("Failed to mark intent executed in read model")
		}
		exec := &models.RebalanceExecution{
			User:        user.Hex(),
			IntentIndex: index,
			YieldBefore: result.YieldBefore.String(),
			YieldAfter:  result.YieldAfter.String(),
			ExecutedAt:  now,
		}
		if result.BridgeKey != nil {
			exec.BridgeKey = result.BridgeKey.Hex()
		}
		if result.LegErr != nil {
			exec.LegError = result.LegErr.Error()
		}
		if err := s.repo.CreateExecution(ctx, exec); err != nil {
			s.logger.WithError(err).Warn("Failed to record rebalance execution")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user":    user.Hex(),
		"index":   index,
		"outcome": outcome,
	}).Info("Rebalance executed")
	return result, nil
}

// ListByOwner returns every intent owner ever submitted.
func (s *IntentService) ListByOwner(owner common.Address) []ledger.Intent {
	return s.core.Intent.GetUserIntents(owner)
}

// ListActive returns the owner's active intents.
func (s *IntentService) ListActive(owner common.Address) []ledger.Intent {
	return s.core.Intent.GetActiveIntents(owner)
}

// Executions returns the persisted rebalance history for user.
func (s *IntentService) Executions(ctx context.Context, user common.Address, page, limit int) ([]*models.RebalanceExecution, int64, error) {
	if s.repo == nil {
		return nil, 0, nil
	}
	return s.repo.FindExecutionsByUser(ctx, user.Hex(), page, limit)
}

// Pause stops submissions and executions. ADMIN-only.
func (s *IntentService) Pause(caller common.Address) error {
	return s.core.Intent.Pause(caller)
}

func (s *IntentService) Unpause(caller common.Address) error {
	return s.core.Intent.Unpause(caller)
}

// syncIntent copies the ledger state of one intent into the read model.
func (s *IntentService) syncIntent(ctx context.Context, owner common.Address, index uint32) {
	if s.repo == nil {
		return
	}
	for _, intent := range s.core.Intent.GetUserIntents(owner) {
		if intent.Index != index {
			continue
		}
		record := &models.IntentRecord{
			Owner:          owner.Hex(),
			IntentIndex:    intent.Index,
			MinAPYBps:      intent.MinAPYBps,
			SlippageBps:    intent.SlippageBps,
			TargetProtocol: intent.TargetProtocol.Hex(),
			TargetChainID:  intent.TargetChainID,
			MaxGasPrice:    intent.MaxGasPrice,
			IsActive:       intent.IsActive,
		}
		if !intent.LastExecuted.IsZero() {
			last := intent.LastExecuted
			record.LastExecuted = &last
		}
		if err := s.repo.Upsert(ctx, record); err != nil {
			s.logger.WithError(err).Warn("Failed to sync intent read model")
		}
		return
	}
}
