package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDepositMintsShares(t *testing.T) {
	core, _, sink := newTestCore(t)

	minted, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	requireAmount(t, units(1000), minted)
	requireAmount(t, units(1000), core.Vault.BalanceOf(user1))
	requireAmount(t, units(1000), core.Vault.TotalAssets())

	events := sink.ofType("vault.deposit")
	require.Len(t, events, 1)
	dep := events[0].(DepositEvent)
	require.Equal(t, user1, dep.User)
	requireAmount(t, units(1000), dep.Shares)
	requireAmount(t, units(1000), dep.Assets)
}

func TestDepositRejectsOutOfBounds(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, big.NewInt(0), user1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Below the 1-unit minimum.
	_, err = core.Vault.Deposit(user1, big.NewInt(500_000), user1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Above the 1M-unit maximum.
	_, err = core.Vault.Deposit(user1, units(2_000_000), user1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	requireAmount(t, big.NewInt(0), core.Vault.TotalAssets())
	requireAmount(t, big.NewInt(0), core.Vault.TotalShares())
}

func TestDepositRejectsInsufficientBalance(t *testing.T) {
	core, _, _ := newTestCore(t)

	poor := user2
	require.NoError(t, core.Tokens.Burn(pyusd, poor, units(1_000_000)))
	require.NoError(t, core.Tokens.Mint(pyusd, poor, units(10)))

	_, err := core.Vault.Deposit(poor, units(100), poor)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireAmount(t, units(10), core.Tokens.BalanceOf(pyusd, poor))
}

func TestDepositWhilePaused(t *testing.T) {
	core, _, _ := newTestCore(t)

	require.NoError(t, core.Vault.Pause(deployer))
	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.ErrorIs(t, err, ErrVaultPaused)

	require.NoError(t, core.Vault.Unpause(deployer))
	_, err = core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
}

func TestFullWithdrawLeavesZero(t *testing.T) {
	core, _, _ := newTestCore(t)

	before := core.Tokens.BalanceOf(pyusd, user1)
	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	_, err = core.Vault.Withdraw(user1, units(1000), user1, user1)
	require.NoError(t, err)

	requireAmount(t, big.NewInt(0), core.Vault.BalanceOf(user1))
	requireAmount(t, big.NewInt(0), core.Vault.TotalAssets())
	requireAmount(t, big.NewInt(0), core.Vault.TotalShares())
	requireAmount(t, before, core.Tokens.BalanceOf(pyusd, user1))
}

func TestWithdrawValidation(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	_, err = core.Vault.Withdraw(user1, big.NewInt(0), user1, user1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = core.Vault.Withdraw(user1, units(2000), user1, user1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Only the owner may withdraw their balance.
	_, err = core.Vault.Withdraw(user2, units(100), user2, user1)
	require.ErrorIs(t, err, ErrUnauthorizedAccount)

	require.NoError(t, core.Vault.Pause(deployer))
	_, err = core.Vault.Withdraw(user1, units(100), user1, user1)
	require.ErrorIs(t, err, ErrVaultPaused)
}

func TestRedeemAllShares(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	shares := core.Vault.BalanceOf(user1)
	assets, err := core.Vault.Redeem(user1, shares, user1, user1)
	require.NoError(t, err)
	requireAmount(t, units(1000), assets)
	requireAmount(t, big.NewInt(0), core.Vault.BalanceOf(user1))
}

func TestShareInvariantAcrossSequence(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	_, err = core.Vault.Deposit(user2, units(250), user2)
	require.NoError(t, err)
	_, err = core.Vault.Withdraw(user1, units(400), user1, user1)
	require.NoError(t, err)
	_, err = core.Vault.Redeem(user2, units(50), user2, user2)
	require.NoError(t, err)

	sum := new(big.Int).Add(core.Vault.BalanceOf(user1), core.Vault.BalanceOf(user2))
	requireAmount(t, core.Vault.TotalShares(), sum)
}

func TestYieldAccruesOverTime(t *testing.T) {
	core, clock, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)

	// Withdrawal touches the account and records the accrual.
	_, err = core.Vault.Withdraw(user1, units(1000), user1, user1)
	require.NoError(t, err)

	require.Positive(t, core.Vault.YieldOf(user1).Sign())
	requireAmount(t, core.Vault.YieldOf(user1), core.Vault.TotalYield())
}

func TestExecuteRebalanceRecordsYield(t *testing.T) {
	core, _, sink := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	require.NoError(t, core.Vault.ExecuteRebalance(agent, user1, units(10), 600))
	requireAmount(t, units(10), core.Vault.YieldOf(user1))
	requireAmount(t, units(10), core.Vault.TotalYield())
	require.Equal(t, uint32(600), core.Vault.APYBps())

	events := sink.ofType("vault.rebalance_executed")
	require.Len(t, events, 1)
}

func TestExecuteRebalanceRequiresAgent(t *testing.T) {
	core, _, _ := newTestCore(t)

	err := core.Vault.ExecuteRebalance(user1, user1, units(10), 600)
	require.ErrorIs(t, err, ErrUnauthorizedAgent)
	requireAmount(t, big.NewInt(0), core.Vault.YieldOf(user1))
}

func TestApproveForBridge(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	require.NoError(t, core.Vault.ApproveForBridge(agent, BridgeAccount, units(500)))
	requireAmount(t, units(500), core.Tokens.Allowance(pyusd, VaultAccount, BridgeAccount))

	err = core.Vault.ApproveForBridge(user1, BridgeAccount, units(500))
	require.ErrorIs(t, err, ErrUnauthorizedAgent)
}

func TestApproveForBridgeDefaultsToHook(t *testing.T) {
	core, _, _ := newTestCore(t)

	// A zero spender resolves to the hook bound at wiring time.
	require.NoError(t, core.Vault.ApproveForBridge(agent, common.Address{}, units(250)))
	requireAmount(t, units(250), core.Tokens.Allowance(pyusd, VaultAccount, BridgeAccount))

	// Unbinding the hook leaves a zero spender with no valid target.
	require.NoError(t, core.Vault.SetBridgeHook(deployer, common.Address{}))
	err := core.Vault.ApproveForBridge(agent, common.Address{}, units(250))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPauseRequiresAdmin(t *testing.T) {
	core, _, _ := newTestCore(t)

	require.ErrorIs(t, core.Vault.Pause(user1), ErrUnauthorizedAccount)
	require.False(t, core.Vault.Paused())

	require.NoError(t, core.Vault.Pause(deployer))
	require.True(t, core.Vault.Paused())

	// Agent accounting keeps running while paused.
	require.NoError(t, core.Vault.ExecuteRebalance(agent, user1, units(1), 500))
}
