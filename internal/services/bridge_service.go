package services

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/metrics"
	"github.com/lucifer1017/yieldforge/internal/models"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// BridgeService exposes the cross-chain operation lifecycle.
type BridgeService struct {
	core   *ledger.Core
	repo   repository.BridgeOperationRepository
	agent  common.Address
	logger *logrus.Logger
}

func NewBridgeService(core *ledger.Core, repo repository.BridgeOperationRepository, agent common.Address, logger *logrus.Logger) *BridgeService {
	return &BridgeService{core: core, repo: repo, agent: agent, logger: logger}
}

// Initiate records a bridge operation funded from the user's own balance.
func (s *BridgeService) Initiate(ctx context.Context, user, token common.Address, amount *big.Int, toChainID uint64, executeData []byte) (common.Hash, error) {
	key, err := s.core.Bridge.InitiateBridge(user, token, amount, toChainID, executeData)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"user":     user.Hex(),
			"token":    token.Hex(),
			"to_chain": toChainID,
		}).WithError(err).Warn("Bridge initiation rejected")
		return common.Hash{}, err
	}

	metrics.BridgeOperationsInitiated.WithLabelValues(strconv.FormatUint(toChainID, 10)).Inc()
	s.syncOperation(ctx, key)
	s.logger.WithFields(logrus.Fields{
		"user":     user.Hex(),
		"key":      key.Hex(),
		"amount":   amount.String(),
		"to_chain": toChainID,
	}).Info("Bridge operation initiated")
	return key, nil
}

// Execute settles a pending operation. Agent-gated by the ledger.
func (s *BridgeService) Execute(ctx context.Context, user, token common.Address, amount *big.Int, toChainID uint64) error {
	if err := s.core.Bridge.ExecuteBridge(s.agent, user, token, amount, toChainID); err != nil {
		return err
	}

	metrics.BridgeOperationsExecuted.WithLabelValues(strconv.FormatUint(toChainID, 10)).Inc()
	key := ledger.OperationKey(user, token, amount, toChainID)
	if s.repo != nil {
		if err := s.repo.MarkExecuted(ctx, key.Hex(), time.Now()); err != nil {
			s.logger.WithError(err).Warn("Failed to mark bridge operation executed in read model")
		}
	}
	s.logger.WithFields(logrus.Fields{
		"user": user.Hex(),
		"key":  key.Hex(),
	}).Info("Bridge operation executed")
	return nil
}

// Operation returns the ledger record for key; unknown keys come back
// zero-valued.
func (s *BridgeService) Operation(key common.Hash) ledger.BridgeOperation {
	return s.core.Bridge.GetBridgeOperation(key)
}

// History returns the operation keys user has initiated, oldest first.
func (s *BridgeService) History(user common.Address) []common.Hash {
	return s.core.Bridge.GetUserBridgeHistory(user)
}

// PersistedHistory returns the read-model rows for user.
func (s *BridgeService) PersistedHistory(ctx context.Context, user common.Address, page, limit int) ([]*models.BridgeOperationRecord, int64, error) {
	if s.repo == nil {
		return nil, 0, nil
	}
	return s.repo.FindByUser(ctx, user.Hex(), page, limit)
}

// SetSupportedToken maintains the token allowlist. ADMIN-only.
func (s *BridgeService) SetSupportedToken(caller, token common.Address, supported bool) error {
	return s.core.Bridge.SetSupportedToken(caller, token, supported)
}

// SetSupportedChain maintains the chain allowlist. ADMIN-only.
func (s *BridgeService) SetSupportedChain(caller common.Address, chainID uint64, supported bool) error {
	return s.core.Bridge.SetSupportedChain(caller, chainID, supported)
}

// SetFee updates the bridge fee. ADMIN-only.
func (s *BridgeService) SetFee(caller common.Address, feeBps uint32) error {
	return s.core.Bridge.SetBridgeFee(caller, feeBps)
}

// syncOperation copies the ledger record for key into the read model.
func (s *BridgeService) syncOperation(ctx context.Context, key common.Hash) {
	if s.repo == nil {
		return
	}
	op := s.core.Bridge.GetBridgeOperation(key)
	record := &models.BridgeOperationRecord{
		OperationKey: key.Hex(),
		User:         op.User.Hex(),
		Token:        op.Token.Hex(),
		Amount:       op.Amount.String(),
		ToChainID:    op.ToChainID,
		Executed:     op.Executed,
		InitiatedAt:  op.Timestamp,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		s.logger.WithError(err).Warn("Failed to sync bridge read model")
	}
}
