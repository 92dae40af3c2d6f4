package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestInitiateBridgeTakesCustody(t *testing.T) {
	core, _, sink := newTestCore(t)

	key, err := core.Bridge.InitiateBridge(user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)
	require.Equal(t, OperationKey(user1, pyusd, units(100), 10), key)

	requireAmount(t, units(999_900), core.Tokens.BalanceOf(pyusd, user1))
	requireAmount(t, units(100), core.Tokens.BalanceOf(pyusd, BridgeAccount))

	op := core.Bridge.GetBridgeOperation(key)
	require.Equal(t, user1, op.User)
	requireAmount(t, units(100), op.Amount)
	require.False(t, op.Executed)

	require.Len(t, sink.ofType("bridge.initiated"), 1)
}

func TestInitiateBridgeValidationOrder(t *testing.T) {
	core, _, _ := newTestCore(t)

	other := common.HexToAddress("0x00000000000000000000000000000000000000c2")
	_, err := core.Bridge.InitiateBridge(user1, other, units(100), 10, nil)
	require.ErrorIs(t, err, ErrUnsupportedToken)

	_, err = core.Bridge.InitiateBridge(user1, pyusd, units(100), 999, nil)
	require.ErrorIs(t, err, ErrUnsupportedChain)

	_, err = core.Bridge.InitiateBridge(user1, pyusd, big.NewInt(0), 10, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = core.Bridge.InitiateBridge(user1, pyusd, units(2_000_000), 10, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = core.Bridge.InitiateBridge(user1, pyusd, units(1_000_001), 10, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	broke := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	_, err = core.Bridge.InitiateBridge(broke, pyusd, units(100), 10, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestInitiateBridgeIdenticalRetry(t *testing.T) {
	core, clock, _ := newTestCore(t)

	key1, err := core.Bridge.InitiateBridge(user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	key2, err := core.Bridge.InitiateBridge(user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)
	require.Equal(t, key1, key2)

	// Both transfers took custody even though they share one record.
	requireAmount(t, units(200), core.Tokens.BalanceOf(pyusd, BridgeAccount))
	op := core.Bridge.GetBridgeOperation(key1)
	requireAmount(t, units(100), op.Amount)

	history := core.Bridge.GetUserBridgeHistory(user1)
	require.Equal(t, []common.Hash{key1, key1}, history)
}

func TestInitiateBridgeForPullsOnAllowance(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)

	// No approval yet: the registry cannot pull from vault custody.
	_, err = core.Bridge.InitiateBridgeFor(VaultAccount, user1, pyusd, units(100), 10, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireAmount(t, units(1000), core.Tokens.BalanceOf(pyusd, VaultAccount))

	require.NoError(t, core.Vault.ApproveForBridge(agent, BridgeAccount, units(100)))
	_, err = core.Bridge.InitiateBridgeFor(VaultAccount, user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)

	requireAmount(t, units(900), core.Tokens.BalanceOf(pyusd, VaultAccount))
	requireAmount(t, units(100), core.Tokens.BalanceOf(pyusd, BridgeAccount))
	requireAmount(t, big.NewInt(0), core.Tokens.Allowance(pyusd, VaultAccount, BridgeAccount))
}

func TestExecuteBridgeSettlesFee(t *testing.T) {
	core, _, sink := newTestCore(t)

	_, err := core.Bridge.InitiateBridge(user1, pyusd, units(1000), 10, nil)
	require.NoError(t, err)

	require.NoError(t, core.Bridge.ExecuteBridge(agent, user1, pyusd, units(1000), 10))

	// 10 bps of 1000 units is 1 unit to the collector; the rest burns.
	requireAmount(t, units(1), core.Tokens.BalanceOf(pyusd, FeeCollectorAccount))
	requireAmount(t, big.NewInt(0), core.Tokens.BalanceOf(pyusd, BridgeAccount))

	key := OperationKey(user1, pyusd, units(1000), 10)
	require.True(t, core.Bridge.GetBridgeOperation(key).Executed)
	require.Len(t, sink.ofType("bridge.executed"), 1)

	// A second execution of the same record is not found.
	err = core.Bridge.ExecuteBridge(agent, user1, pyusd, units(1000), 10)
	require.ErrorIs(t, err, ErrOperationNotFound)
}

func TestExecuteBridgeExactMatchOnly(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Bridge.InitiateBridge(user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)

	require.ErrorIs(t, core.Bridge.ExecuteBridge(agent, user1, pyusd, units(99), 10), ErrOperationNotFound)
	require.ErrorIs(t, core.Bridge.ExecuteBridge(agent, user1, pyusd, units(100), 137), ErrOperationNotFound)
	require.ErrorIs(t, core.Bridge.ExecuteBridge(agent, user2, pyusd, units(100), 10), ErrOperationNotFound)
}

func TestExecuteBridgeRequiresAgent(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Bridge.InitiateBridge(user1, pyusd, units(100), 10, nil)
	require.NoError(t, err)

	err = core.Bridge.ExecuteBridge(user1, user1, pyusd, units(100), 10)
	require.ErrorIs(t, err, ErrUnauthorizedAgent)
	require.False(t, core.Bridge.GetBridgeOperation(OperationKey(user1, pyusd, units(100), 10)).Executed)
}

func TestGetBridgeOperationUnknownKeyIsZeroValued(t *testing.T) {
	core, _, _ := newTestCore(t)

	op := core.Bridge.GetBridgeOperation(common.HexToHash("0xdeadbeef"))
	require.Equal(t, common.Address{}, op.User)
	requireAmount(t, big.NewInt(0), op.Amount)
	require.False(t, op.Executed)
	require.True(t, op.Timestamp.IsZero())
}

func TestBridgeAdminControls(t *testing.T) {
	core, _, _ := newTestCore(t)

	require.ErrorIs(t, core.Bridge.SetBridgeFee(user1, 50), ErrUnauthorizedAccount)
	require.ErrorIs(t, core.Bridge.SetBridgeFee(deployer, 10_001), ErrInvalidAmount)
	require.NoError(t, core.Bridge.SetBridgeFee(deployer, 50))
	require.Equal(t, uint32(50), core.Bridge.FeeBps())

	other := common.HexToAddress("0x00000000000000000000000000000000000000c2")
	require.False(t, core.Bridge.IsTokenSupported(other))
	require.NoError(t, core.Bridge.SetSupportedToken(deployer, other, true))
	require.True(t, core.Bridge.IsTokenSupported(other))

	require.False(t, core.Bridge.IsChainSupported(56))
	require.NoError(t, core.Bridge.SetSupportedChain(deployer, 56, true))
	require.True(t, core.Bridge.IsChainSupported(56))
	require.NoError(t, core.Bridge.SetSupportedChain(deployer, 56, false))
	require.False(t, core.Bridge.IsChainSupported(56))
}

func TestOperationKeyIsContentAddressed(t *testing.T) {
	k1 := OperationKey(user1, pyusd, units(100), 10)
	k2 := OperationKey(user1, pyusd, units(100), 10)
	require.Equal(t, k1, k2)

	require.NotEqual(t, k1, OperationKey(user2, pyusd, units(100), 10))
	require.NotEqual(t, k1, OperationKey(user1, pyusd, units(101), 10))
	require.NotEqual(t, k1, OperationKey(user1, pyusd, units(100), 137))
}
