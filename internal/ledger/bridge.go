package ledger

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BridgeOperation is a recorded intent-to-move-value across chains. It is
// keyed by the content hash of (user, token, amount, toChainId), so an
// identical retry addresses the same record; operations are never deleted,
// only flagged executed.
type BridgeOperation struct {
	User        common.Address `json:"user"`
	Token       common.Address `json:"token"`
	Amount      *big.Int       `json:"amount"`
	ToChainID   uint64         `json:"to_chain_id"`
	ExecuteData []byte         `json:"execute_data"`
	Executed    bool           `json:"executed"`
	Timestamp   time.Time      `json:"timestamp"`
}

// BridgeConfig carries the ADMIN-mutable allowlists and fee policy.
type BridgeConfig struct {
	SupportedTokens []common.Address
	SupportedChains []uint64
	FeeBps          uint32
	MaxBridgeAmount *big.Int
}

// BridgeRegistry owns the cross-chain transfer lifecycle: initiate records
// the operation and takes custody of the funds, execute (agent-only) marks
// it done and settles the fee.
type BridgeRegistry struct {
	mu sync.Mutex

	acl          *AccessRegistry
	tokens       *TokenLedger
	addr         common.Address // custody account
	feeCollector common.Address
	sink         EventSink
	now          func() time.Time

	supportedTokens map[common.Address]bool
	supportedChains map[uint64]bool
	feeBps          uint32
	maxBridgeAmount *big.Int

	ops     map[common.Hash]*BridgeOperation
	history map[common.Address][]common.Hash
}

func NewBridgeRegistry(acl *AccessRegistry, tokens *TokenLedger, addr, feeCollector common.Address, cfg BridgeConfig, sink EventSink) *BridgeRegistry {
	b := &BridgeRegistry{
		acl:             acl,
		tokens:          tokens,
		addr:            addr,
		feeCollector:    feeCollector,
		sink:            sink,
		now:             time.Now,
		supportedTokens: make(map[common.Address]bool),
		supportedChains: make(map[uint64]bool),
		feeBps:          cfg.FeeBps,
		maxBridgeAmount: clone(cfg.MaxBridgeAmount),
		ops:             make(map[common.Hash]*BridgeOperation),
		history:         make(map[common.Address][]common.Hash),
	}
	for _, t := range cfg.SupportedTokens {
		b.supportedTokens[t] = true
	}
	for _, c := range cfg.SupportedChains {
		b.supportedChains[c] = true
	}
	return b
}

// SetNowFunc overrides the clock. Test hook.
func (b *BridgeRegistry) SetNowFunc(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Address returns the registry's custody account.
func (b *BridgeRegistry) Address() common.Address { return b.addr }

// OperationKey derives the content hash that identifies a bridge operation.
func OperationKey(user, token common.Address, amount *big.Int, toChainID uint64) common.Hash {
	var amountWord [32]byte
	clone(amount).FillBytes(amountWord[:])
	var chainWord [8]byte
	binary.BigEndian.PutUint64(chainWord[:], toChainID)
	return crypto.Keccak256Hash(user.Bytes(), token.Bytes(), amountWord[:], chainWord[:])
}

func (b *BridgeRegistry) SetSupportedToken(caller common.Address, token common.Address, supported bool) error {
	if err := b.acl.requireAdmin(caller); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supportedTokens[token] = supported
	publish(b.sink, TokenSupportedEvent{Token: token, Supported: supported})
	return nil
}

func (b *BridgeRegistry) SetSupportedChain(caller common.Address, chainID uint64, supported bool) error {
	if err := b.acl.requireAdmin(caller); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supportedChains[chainID] = supported
	publish(b.sink, ChainSupportedEvent{ChainID: chainID, Supported: supported})
	return nil
}

func (b *BridgeRegistry) SetBridgeFee(caller common.Address, feeBps uint32) error {
	if err := b.acl.requireAdmin(caller); err != nil {
		return err
	}
	if feeBps > bpsDenominator {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feeBps = feeBps
	publish(b.sink, BridgeFeeUpdatedEvent{FeeBps: feeBps})
	return nil
}

// InitiateBridge records a bridge operation for the caller, funding it from
// the caller's own token balance.
func (b *BridgeRegistry) InitiateBridge(caller, token common.Address, amount *big.Int, toChainID uint64, executeData []byte) (common.Hash, error) {
	return b.initiate(caller, caller, token, amount, toChainID, executeData)
}

// InitiateBridgeFor records a bridge operation attributed to user but
// funded from another account the caller controls (the intent executor
// funds cross-chain legs from the vault's custody this way).
func (b *BridgeRegistry) InitiateBridgeFor(funding, user, token common.Address, amount *big.Int, toChainID uint64, executeData []byte) (common.Hash, error) {
	return b.initiate(funding, user, token, amount, toChainID, executeData)
}

func (b *BridgeRegistry) initiate(funding, user, token common.Address, amount *big.Int, toChainID uint64, executeData []byte) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.supportedTokens[token] {
		return common.Hash{}, ErrUnsupportedToken
	}
	if !b.supportedChains[toChainID] {
		return common.Hash{}, ErrUnsupportedChain
	}
	if !isPositive(amount) {
		return common.Hash{}, ErrInvalidAmount
	}
	if b.maxBridgeAmount != nil && b.maxBridgeAmount.Sign() > 0 && amount.Cmp(b.maxBridgeAmount) > 0 {
		return common.Hash{}, ErrInvalidAmount
	}
	if b.tokens.BalanceOf(token, funding).Cmp(amount) < 0 {
		return common.Hash{}, ErrInsufficientBalance
	}

	// Self-initiated operations move the caller's own funds. Third-party
	// funding (the executor bridging from vault custody) is pulled on the
	// allowance granted to this registry, so the approval gates the move.
	if funding == user {
		if err := b.tokens.Transfer(token, funding, b.addr, amount); err != nil {
			return common.Hash{}, err
		}
	} else {
		if err := b.tokens.TransferFrom(token, b.addr, funding, b.addr, amount); err != nil {
			return common.Hash{}, err
		}
	}

	now := b.now()
	key := OperationKey(user, token, amount, toChainID)
	// An identical unexecuted request re-addresses the same record; the
	// retry just refreshes its timestamp (content-hash keying, no nonce).
	b.ops[key] = &BridgeOperation{
		User:        user,
		Token:       token,
		Amount:      clone(amount),
		ToChainID:   toChainID,
		ExecuteData: append([]byte(nil), executeData...),
		Executed:    false,
		Timestamp:   now,
	}
	b.history[user] = append(b.history[user], key)

	publish(b.sink, BridgeInitiatedEvent{
		User: user, Token: token, Amount: clone(amount), ToChainID: toChainID,
		ExecuteData: append([]byte(nil), executeData...), OperationKey: key, Timestamp: now,
	})
	return key, nil
}

// ExecuteBridge marks the matching unexecuted operation done and settles
// the configured fee. Exact-match lookup: a different amount or chain is
// OperationNotFound, never closest-match.
func (b *BridgeRegistry) ExecuteBridge(caller, user, token common.Address, amount *big.Int, toChainID uint64) error {
	if err := b.acl.requireAgent(caller); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OperationKey(user, token, amount, toChainID)
	op := b.ops[key]
	if op == nil || op.Executed {
		return ErrOperationNotFound
	}

	fee := applyBps(op.Amount, b.feeBps)
	bridged := new(big.Int).Sub(op.Amount, fee)

	if fee.Sign() > 0 {
		if err := b.tokens.Transfer(token, b.addr, b.feeCollector, fee); err != nil {
			return err
		}
	}
	// The net amount leaves this ledger; the destination chain mints it.
	if bridged.Sign() > 0 {
		if err := b.tokens.Burn(token, b.addr, bridged); err != nil {
			return err
		}
	}

	now := b.now()
	op.Executed = true

	publish(b.sink, BridgeExecutedEvent{
		User: user, Token: token, Amount: clone(op.Amount), Fee: fee,
		ToChainID: toChainID, OperationKey: key, Timestamp: now,
	})
	return nil
}

// GetUserBridgeHistory returns the operation keys initiated by user,
// oldest first.
func (b *BridgeRegistry) GetUserBridgeHistory(user common.Address) []common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]common.Hash(nil), b.history[user]...)
}

// GetBridgeOperation returns the operation for key, or a zero-valued record
// when the key was never initiated. Lookups never fail.
func (b *BridgeRegistry) GetBridgeOperation(key common.Hash) BridgeOperation {
	b.mu.Lock()
	defer b.mu.Unlock()
	op := b.ops[key]
	if op == nil {
		return BridgeOperation{Amount: new(big.Int)}
	}
	out := *op
	out.Amount = clone(op.Amount)
	out.ExecuteData = append([]byte(nil), op.ExecuteData...)
	return out
}

func (b *BridgeRegistry) IsTokenSupported(token common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.supportedTokens[token]
}

func (b *BridgeRegistry) IsChainSupported(chainID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.supportedChains[chainID]
}

func (b *BridgeRegistry) FeeBps() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.feeBps
}

func (b *BridgeRegistry) MaxBridgeAmount() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.maxBridgeAmount)
}
