package services

import (
	"math/big"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// VaultService exposes the vault ledger to the HTTP and scheduler layers.
type VaultService struct {
	core   *ledger.Core
	logger *logrus.Logger
}

func NewVaultService(core *ledger.Core, logger *logrus.Logger) *VaultService {
	return &VaultService{core: core, logger: logger}
}

// VaultPosition is the read model for one account.
type VaultPosition struct {
	Shares      *big.Int `json:"shares"`
	MaxWithdraw *big.Int `json:"max_withdraw"`
	YieldEarned *big.Int `json:"yield_earned"`
}

// VaultStats is the read model for the whole vault.
type VaultStats struct {
	TotalShares *big.Int `json:"total_shares"`
	TotalAssets *big.Int `json:"total_assets"`
	TotalYield  *big.Int `json:"total_yield"`
	APYBps      uint32   `json:"apy_bps"`
	Paused      bool     `json:"paused"`
}

// Deposit pulls amount from caller and mints shares to receiver.
func (s *VaultService) Deposit(caller common.Address, amount *big.Int, receiver common.Address) (*big.Int, error) {
	shares, err := s.core.Vault.Deposit(caller, amount, receiver)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"caller": caller.Hex(),
			"amount": amount.String(),
		}).WithError(err).Warn("Deposit rejected")
		return nil, err
	}

	metrics.VaultDeposits.Inc()
	s.updateVaultGauges()
	s.logger.WithFields(logrus.Fields{
		"caller":   caller.Hex(),
		"receiver": receiver.Hex(),
		"amount":   amount.String(),
		"shares":   shares.String(),
	}).Info("Deposit accepted")
	return shares, nil
}

// Withdraw pays out amount of the underlying asset to receiver, burning
// shares from owner.
func (s *VaultService) Withdraw(caller common.Address, amount *big.Int, receiver, owner common.Address) (*big.Int, error) {
	burned, err := s.core.Vault.Withdraw(caller, amount, receiver, owner)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"caller": caller.Hex(),
			"amount": amount.String(),
		}).WithError(err).Warn("Withdraw rejected")
		return nil, err
	}

	metrics.VaultWithdrawals.Inc()
	s.updateVaultGauges()
	s.logger.WithFields(logrus.Fields{
		"owner":  owner.Hex(),
		"amount": amount.String(),
		"burned": burned.String(),
	}).Info("Withdraw executed")
	return burned, nil
}

// Redeem burns an exact share count from owner.
func (s *VaultService) Redeem(caller common.Address, shares *big.Int, receiver, owner common.Address) (*big.Int, error) {
	assets, err := s.core.Vault.Redeem(caller, shares, receiver, owner)
	if err != nil {
		return nil, err
	}
	metrics.VaultWithdrawals.Inc()
	s.updateVaultGauges()
	return assets, nil
}

// Position returns the caller-visible state of one account.
func (s *VaultService) Position(owner common.Address) VaultPosition {
	return VaultPosition{
		Shares:      s.core.Vault.BalanceOf(owner),
		MaxWithdraw: s.core.Vault.MaxWithdraw(owner),
		YieldEarned: s.core.Vault.YieldOf(owner),
	}
}

// Stats returns vault-wide accounting.
func (s *VaultService) Stats() VaultStats {
	return VaultStats{
		TotalShares: s.core.Vault.TotalShares(),
		TotalAssets: s.core.Vault.TotalAssets(),
		TotalYield:  s.core.Vault.TotalYield(),
		APYBps:      s.core.Vault.APYBps(),
		Paused:      s.core.Vault.Paused(),
	}
}

// Pause stops deposits and withdrawals. ADMIN-only, enforced by the ledger.
func (s *VaultService) Pause(caller common.Address) error {
	if err := s.core.Vault.Pause(caller); err != nil {
		return err
	}
	s.logger.WithField("caller", caller.Hex()).Warn("Vault paused")
	return nil
}

func (s *VaultService) Unpause(caller common.Address) error {
	if err := s.core.Vault.Unpause(caller); err != nil {
		return err
	}
	s.logger.WithField("caller", caller.Hex()).Info("Vault unpaused")
	return nil
}

func (s *VaultService) SetDepositLimits(caller common.Address, min, max *big.Int) error {
	return s.core.Vault.SetDepositLimits(caller, min, max)
}

func (s *VaultService) updateVaultGauges() {
	assets, _ := new(big.Float).SetInt(s.core.Vault.TotalAssets()).Float64()
	shares, _ := new(big.Float).SetInt(s.core.Vault.TotalShares()).Float64()
	metrics.VaultTotalAssets.Set(assets)
	metrics.VaultTotalShares.Set(shares)
	metrics.VaultAPYBps.Set(float64(s.core.Vault.APYBps()))
}
