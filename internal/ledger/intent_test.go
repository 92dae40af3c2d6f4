package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func defaultSubmission() IntentSubmission {
	return IntentSubmission{
		MinAPYBps:      500,
		SlippageBps:    100,
		TargetProtocol: protocol,
		TargetChainID:  8453,
		MaxGasPrice:    50_000_000_000,
	}
}

// encodeExecutionData packs (protocol, amount) into two 32-byte words.
func encodeExecutionData(target common.Address, amount *big.Int) []byte {
	data := make([]byte, 64)
	copy(data[12:32], target.Bytes())
	amount.FillBytes(data[32:64])
	return data
}

func TestSubmitIntentAssignsSequentialIndexes(t *testing.T) {
	core, _, sink := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	idx, err = core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx)

	// Indexes are per owner.
	idx, err = core.Intent.SubmitIntent(user2, defaultSubmission())
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	require.Equal(t, 2, core.Intent.UserIntentCount(user1))
	require.Len(t, sink.ofType("intents.submitted"), 3)
}

func TestSubmitIntentValidation(t *testing.T) {
	core, _, _ := newTestCore(t)

	sub := defaultSubmission()
	sub.MinAPYBps = 0
	_, err := core.Intent.SubmitIntent(user1, sub)
	require.ErrorIs(t, err, ErrInvalidIntent)

	sub = defaultSubmission()
	sub.SlippageBps = MaxSlippageBps + 1
	_, err = core.Intent.SubmitIntent(user1, sub)
	require.ErrorIs(t, err, ErrInvalidSlippage)

	sub = defaultSubmission()
	sub.TargetProtocol = common.Address{}
	_, err = core.Intent.SubmitIntent(user1, sub)
	require.ErrorIs(t, err, ErrUnsupportedProtocol)

	sub = defaultSubmission()
	sub.TargetChainID = 999
	_, err = core.Intent.SubmitIntent(user1, sub)
	require.ErrorIs(t, err, ErrUnsupportedChain)

	require.Equal(t, 0, core.Intent.UserIntentCount(user1))
}

func TestSubmitIntentWhilePaused(t *testing.T) {
	core, _, _ := newTestCore(t)

	require.NoError(t, core.Intent.Pause(deployer))
	_, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.ErrorIs(t, err, ErrExecutorPaused)

	require.NoError(t, core.Intent.Unpause(deployer))
	_, err = core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
}

func TestDeactivateIntent(t *testing.T) {
	core, _, _ := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
	_, err = core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	require.NoError(t, core.Intent.DeactivateIntent(user1, idx))

	all := core.Intent.GetUserIntents(user1)
	require.Len(t, all, 2)
	require.False(t, all[0].IsActive)
	require.True(t, all[1].IsActive)

	active := core.Intent.GetActiveIntents(user1)
	require.Len(t, active, 1)
	require.Equal(t, uint32(1), active[0].Index)

	require.ErrorIs(t, core.Intent.DeactivateIntent(user1, 5), ErrIntentNotFound)
}

func TestExecuteRebalanceHappyPath(t *testing.T) {
	core, _, sink := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	result, err := core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.NoError(t, err)
	require.NoError(t, result.LegErr)
	require.Nil(t, result.BridgeKey)
	requireAmount(t, big.NewInt(0), result.YieldBefore)

	events := sink.ofType("intents.rebalance_executed")
	require.Len(t, events, 1)
	evt := events[0].(RebalanceExecutedEvent)
	require.Equal(t, user1, evt.User)
	require.Equal(t, idx, evt.IntentIndex)
}

func TestExecuteRebalanceRequiresAgentRole(t *testing.T) {
	core, _, _ := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	_, err = core.Intent.ExecuteRebalance(user1, user1, idx, nil)
	require.ErrorIs(t, err, ErrUnauthorizedAgent)
}

func TestExecuteRebalanceUnknownIndex(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Intent.ExecuteRebalance(agent, user1, 0, nil)
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestExecuteRebalanceInactiveIntent(t *testing.T) {
	core, _, _ := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
	require.NoError(t, core.Intent.DeactivateIntent(user1, idx))

	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.ErrorIs(t, err, ErrIntentNotActive)
}

func TestExecuteRebalanceCooldown(t *testing.T) {
	core, clock, _ := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.NoError(t, err)

	// Inside the window the record is invisible to the agent.
	clock.Advance(30 * time.Minute)
	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.ErrorIs(t, err, ErrIntentNotFound)

	clock.Advance(30*time.Minute + time.Second)
	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.NoError(t, err)
}

func TestExecuteRebalanceFailureRestoresLastExecuted(t *testing.T) {
	core, clock, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.NoError(t, err)
	first := core.Intent.GetUserIntents(user1)[idx].LastExecuted

	// Break the deployment wiring: without its agent grant the executor's
	// vault call is rejected, and the rejection must not touch the intent.
	clock.Advance(2 * time.Hour)
	require.NoError(t, core.Access.RevokeRole(deployer, RoleAgent, ExecutorAccount))

	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.ErrorIs(t, err, ErrUnauthorizedAgent)
	require.Equal(t, first, core.Intent.GetUserIntents(user1)[idx].LastExecuted)
}

func TestExecuteRebalanceWhilePaused(t *testing.T) {
	core, _, _ := newTestCore(t)

	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)
	require.NoError(t, core.Intent.Pause(deployer))

	_, err = core.Intent.ExecuteRebalance(agent, user1, idx, nil)
	require.ErrorIs(t, err, ErrExecutorPaused)
}

func TestExecuteRebalanceCrossChainLeg(t *testing.T) {
	core, _, sink := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	data := encodeExecutionData(protocol, units(100))
	result, err := core.Intent.ExecuteRebalance(agent, user1, idx, data)
	require.NoError(t, err)
	require.NoError(t, result.LegErr)
	require.NotNil(t, result.BridgeKey)

	op := core.Bridge.GetBridgeOperation(*result.BridgeKey)
	require.Equal(t, user1, op.User)
	require.Equal(t, pyusd, op.Token)
	requireAmount(t, units(100), op.Amount)
	require.Equal(t, uint64(8453), op.ToChainID)
	require.False(t, op.Executed)

	// The leg is funded from vault custody, not the user's wallet, and the
	// custody pull consumes the approval granted for it.
	requireAmount(t, units(900), core.Tokens.BalanceOf(pyusd, VaultAccount))
	requireAmount(t, units(100), core.Tokens.BalanceOf(pyusd, BridgeAccount))
	requireAmount(t, big.NewInt(0), core.Tokens.Allowance(pyusd, VaultAccount, BridgeAccount))

	require.Len(t, sink.ofType("bridge.initiated"), 1)
}

func TestExecuteRebalanceLegFailureDoesNotFailRebalance(t *testing.T) {
	core, _, _ := newTestCore(t)

	// No deposit: vault custody cannot fund the cross-chain leg.
	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	data := encodeExecutionData(protocol, units(100))
	result, err := core.Intent.ExecuteRebalance(agent, user1, idx, data)
	require.NoError(t, err)
	require.ErrorIs(t, result.LegErr, ErrInsufficientBalance)
	require.Nil(t, result.BridgeKey)
}

func TestExecuteRebalanceShortExecutionDataSkipsLeg(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Vault.Deposit(user1, units(1000), user1)
	require.NoError(t, err)
	idx, err := core.Intent.SubmitIntent(user1, defaultSubmission())
	require.NoError(t, err)

	result, err := core.Intent.ExecuteRebalance(agent, user1, idx, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Nil(t, result.BridgeKey)
	require.NoError(t, result.LegErr)
	requireAmount(t, units(1000), core.Tokens.BalanceOf(pyusd, VaultAccount))
}

func TestSetSupportedChainExpandsSubmissions(t *testing.T) {
	core, _, _ := newTestCore(t)

	sub := defaultSubmission()
	sub.TargetChainID = 56
	_, err := core.Intent.SubmitIntent(user1, sub)
	require.ErrorIs(t, err, ErrUnsupportedChain)

	require.ErrorIs(t, core.Intent.SetSupportedChain(user1, 56, true), ErrUnauthorizedAccount)
	require.NoError(t, core.Intent.SetSupportedChain(deployer, 56, true))

	_, err = core.Intent.SubmitIntent(user1, sub)
	require.NoError(t, err)
}
