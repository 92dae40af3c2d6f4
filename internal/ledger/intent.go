package ledger

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxSlippageBps caps the slippage tolerance a user may declare.
	MaxSlippageBps = 1000
	// ExecutionCooldown is the minimum gap between successive executions
	// of the same intent.
	ExecutionCooldown = time.Hour
)

// Intent is a user-declared rebalancing policy the agent must respect.
// Intents are identified by a per-owner monotonically increasing index and
// are never deleted, only flagged inactive.
type Intent struct {
	Owner          common.Address `json:"owner"`
	Index          uint32         `json:"index"`
	MinAPYBps      uint32         `json:"min_apy_bps"`
	SlippageBps    uint32         `json:"slippage_bps"`
	TargetProtocol common.Address `json:"target_protocol"`
	TargetChainID  uint64         `json:"target_chain_id"`
	MaxGasPrice    uint64         `json:"max_gas_price"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	LastExecuted   time.Time      `json:"last_executed"`
}

// IntentSubmission is the user-controlled subset of an Intent.
type IntentSubmission struct {
	MinAPYBps      uint32         `json:"min_apy_bps"`
	SlippageBps    uint32         `json:"slippage_bps"`
	TargetProtocol common.Address `json:"target_protocol"`
	TargetChainID  uint64         `json:"target_chain_id"`
	MaxGasPrice    uint64         `json:"max_gas_price"`
}

// RebalanceResult reports what a successful execution did. The cross-chain
// leg is best-effort: when it cannot complete (hook unset, token not
// allowlisted, vault short) the rebalance itself still stands and LegErr
// carries the reason for the caller to log.
type RebalanceResult struct {
	YieldBefore *big.Int
	YieldAfter  *big.Int
	BridgeKey   *common.Hash
	LegErr      error
}

// ExecutorConfig seeds the validation policy.
type ExecutorConfig struct {
	NativeChainID   uint64
	SupportedChains []uint64
	// AllowedProtocols, when non-empty, restricts target protocols beyond
	// the non-zero check.
	AllowedProtocols []common.Address
}

// IntentExecutor owns per-user intent records and their cooldown-gated
// execution. It acts toward the vault as its own AGENT principal (self),
// mirroring the deployment wiring that grants the intent manager an agent
// role on the vault.
type IntentExecutor struct {
	mu sync.Mutex

	acl    *AccessRegistry
	vault  *Vault
	oracle *OracleIntegrator
	bridge *BridgeRegistry // nil disables cross-chain legs
	self   common.Address
	sink   EventSink
	now    func() time.Time

	paused           bool
	nativeChainID    uint64
	supportedChains  map[uint64]bool
	allowedProtocols map[common.Address]bool

	intents map[common.Address][]*Intent
}

func NewIntentExecutor(acl *AccessRegistry, vault *Vault, oracle *OracleIntegrator, self common.Address, cfg ExecutorConfig, sink EventSink) *IntentExecutor {
	e := &IntentExecutor{
		acl:              acl,
		vault:            vault,
		oracle:           oracle,
		self:             self,
		sink:             sink,
		now:              time.Now,
		nativeChainID:    cfg.NativeChainID,
		supportedChains:  make(map[uint64]bool),
		allowedProtocols: make(map[common.Address]bool),
		intents:          make(map[common.Address][]*Intent),
	}
	for _, c := range cfg.SupportedChains {
		e.supportedChains[c] = true
	}
	for _, p := range cfg.AllowedProtocols {
		e.allowedProtocols[p] = true
	}
	return e
}

// SetNowFunc overrides the clock. Test hook.
func (e *IntentExecutor) SetNowFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Self returns the principal the executor uses toward the vault.
func (e *IntentExecutor) Self() common.Address { return e.self }

// SubmitIntent validates and appends a new intent for caller at the next
// free per-owner index.
func (e *IntentExecutor) SubmitIntent(caller common.Address, sub IntentSubmission) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return 0, ErrExecutorPaused
	}
	if sub.MinAPYBps == 0 {
		return 0, ErrInvalidIntent
	}
	if sub.SlippageBps > MaxSlippageBps {
		return 0, ErrInvalidSlippage
	}
	if sub.TargetProtocol == (common.Address{}) {
		return 0, ErrUnsupportedProtocol
	}
	if len(e.allowedProtocols) > 0 && !e.allowedProtocols[sub.TargetProtocol] {
		return 0, ErrUnsupportedProtocol
	}
	if !e.supportedChains[sub.TargetChainID] {
		return 0, ErrUnsupportedChain
	}

	now := e.now()
	index := uint32(len(e.intents[caller]))
	intent := &Intent{
		Owner:          caller,
		Index:          index,
		MinAPYBps:      sub.MinAPYBps,
		SlippageBps:    sub.SlippageBps,
		TargetProtocol: sub.TargetProtocol,
		TargetChainID:  sub.TargetChainID,
		MaxGasPrice:    sub.MaxGasPrice,
		IsActive:       true,
		CreatedAt:      now,
	}
	e.intents[caller] = append(e.intents[caller], intent)

	publish(e.sink, IntentSubmittedEvent{User: caller, Index: index, Intent: *intent, Timestamp: now})
	return index, nil
}

// DeactivateIntent flags the caller's intent inactive. There is no
// reactivation; a new intent must be submitted.
func (e *IntentExecutor) DeactivateIntent(caller common.Address, index uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	owned := e.intents[caller]
	if int(index) >= len(owned) {
		return ErrIntentNotFound
	}
	owned[index].IsActive = false

	publish(e.sink, IntentDeactivatedEvent{User: caller, Index: index, Timestamp: e.now()})
	return nil
}

// ExecuteRebalance runs the agent-triggered execution of one intent.
// A missing index and a cooldown that has not elapsed both surface
// ErrIntentNotFound: the external behavior of the system this replaces
// conflates the two, and schedulers already treat them identically
// (retry later).
func (e *IntentExecutor) ExecuteRebalance(caller, user common.Address, index uint32, executionData []byte) (*RebalanceResult, error) {
	if err := e.acl.requireAgent(caller); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrExecutorPaused
	}
	owned := e.intents[user]
	if int(index) >= len(owned) {
		return nil, ErrIntentNotFound
	}
	intent := owned[index]
	now := e.now()
	if !intent.LastExecuted.IsZero() && now.Sub(intent.LastExecuted) < ExecutionCooldown {
		return nil, ErrIntentNotFound
	}
	if !intent.IsActive {
		return nil, ErrIntentNotActive
	}

	// First writer wins: the timestamp moves before any external leg so a
	// concurrent second call lands in the cooldown branch above.
	prevExecuted := intent.LastExecuted
	intent.LastExecuted = now

	yieldBefore := e.vault.YieldOf(user)
	result := &RebalanceResult{YieldBefore: yieldBefore}

	if err := e.vault.ExecuteRebalance(e.self, user, nil, 0); err != nil {
		// The executor's own agent grant is deployment wiring; losing it
		// is a configuration fault, not a user error. The rejected call
		// must leave the intent exactly as it found it.
		intent.LastExecuted = prevExecuted
		return nil, err
	}

	protocol, amount := decodeExecutionData(executionData)
	if e.bridge != nil && intent.TargetChainID != e.nativeChainID && amount.Sign() > 0 {
		result.LegErr = e.runBridgeLeg(result, intent, user, protocol, amount, executionData)
	}

	result.YieldAfter = e.vault.YieldOf(user)
	publish(e.sink, RebalanceExecutedEvent{
		User: user, IntentIndex: index,
		YieldBefore: yieldBefore, YieldAfter: clone(result.YieldAfter), Timestamp: now,
	})
	return result, nil
}

// runBridgeLeg funds a cross-chain operation from the vault's custody on
// the user's behalf.
func (e *IntentExecutor) runBridgeLeg(result *RebalanceResult, intent *Intent, user, protocol common.Address, amount *big.Int, executionData []byte) error {
	if err := e.vault.ApproveForBridge(e.self, e.bridge.Address(), amount); err != nil {
		return err
	}
	key, err := e.bridge.InitiateBridgeFor(e.vault.Address(), user, e.vault.Asset(), amount, intent.TargetChainID, executionData)
	if err != nil {
		return err
	}
	result.BridgeKey = &key
	_ = protocol // recorded in executionData; routing inside the target protocol is external
	return nil
}

// decodeExecutionData extracts (targetProtocol, amount) from two 32-byte
// ABI words. Short or absent data decodes to zero values, which skips the
// cross-chain leg.
func decodeExecutionData(data []byte) (common.Address, *big.Int) {
	if len(data) < 64 {
		return common.Address{}, new(big.Int)
	}
	protocol := common.BytesToAddress(data[12:32])
	amount := new(big.Int).SetBytes(data[32:64])
	return protocol, amount
}

// SetBridgeHook rebinds the bridge registry consulted for cross-chain
// legs. nil disables cross-chain behavior; same-chain rebalances still run.
func (e *IntentExecutor) SetBridgeHook(caller common.Address, bridge *BridgeRegistry) error {
	if err := e.acl.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bridge = bridge
	return nil
}

// SetSupportedChain maintains the target-chain allowlist for submissions.
func (e *IntentExecutor) SetSupportedChain(caller common.Address, chainID uint64, supported bool) error {
	if err := e.acl.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.supportedChains[chainID] = supported
	return nil
}

func (e *IntentExecutor) Pause(caller common.Address) error {
	if err := e.acl.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

func (e *IntentExecutor) Unpause(caller common.Address) error {
	if err := e.acl.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	return nil
}

func (e *IntentExecutor) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// GetUserIntents returns copies of every intent owner ever submitted.
func (e *IntentExecutor) GetUserIntents(owner common.Address) []Intent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Intent, 0, len(e.intents[owner]))
	for _, it := range e.intents[owner] {
		out = append(out, *it)
	}
	return out
}

// GetActiveIntents filters GetUserIntents by the active flag.
func (e *IntentExecutor) GetActiveIntents(owner common.Address) []Intent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Intent
	for _, it := range e.intents[owner] {
		if it.IsActive {
			out = append(out, *it)
		}
	}
	return out
}

// UserIntentCount returns how many intents owner has submitted.
func (e *IntentExecutor) UserIntentCount(owner common.Address) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.intents[owner])
}
