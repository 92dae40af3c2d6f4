package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is anything the ledgers emit for downstream consumers (NATS,
// websocket push, history persistence). EventType doubles as the NATS
// subject suffix.
type Event interface {
	EventType() string
}

// EventSink receives ledger events. Publish must not block the ledger;
// slow consumers buffer on their side.
type EventSink interface {
	Publish(event Event)
}

// publish nil-checks the sink so components can run without one (tests,
// one-off tooling).
func publish(sink EventSink, evt Event) {
	if sink != nil {
		sink.Publish(evt)
	}
}

type DepositEvent struct {
	User      common.Address `json:"user"`
	Shares    *big.Int       `json:"shares"`
	Assets    *big.Int       `json:"assets"`
	Timestamp time.Time      `json:"timestamp"`
}

func (DepositEvent) EventType() string { return "vault.deposit" }

type WithdrawEvent struct {
	User      common.Address `json:"user"`
	Shares    *big.Int       `json:"shares"`
	Assets    *big.Int       `json:"assets"`
	Timestamp time.Time      `json:"timestamp"`
}

func (WithdrawEvent) EventType() string { return "vault.withdraw" }

type VaultRebalanceEvent struct {
	User        common.Address `json:"user"`
	YieldGained *big.Int       `json:"yield_gained"`
	NewAPYBps   uint32         `json:"new_apy_bps"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (VaultRebalanceEvent) EventType() string { return "vault.rebalance_executed" }

type BridgeApprovalEvent struct {
	Spender   common.Address `json:"spender"`
	Amount    *big.Int       `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
}

func (BridgeApprovalEvent) EventType() string { return "vault.bridge_approval" }

type VaultPausedEvent struct {
	Paused    bool      `json:"paused"`
	Timestamp time.Time `json:"timestamp"`
}

func (VaultPausedEvent) EventType() string { return "vault.paused" }

type IntentSubmittedEvent struct {
	User      common.Address `json:"user"`
	Index     uint32         `json:"index"`
	Intent    Intent         `json:"intent"`
	Timestamp time.Time      `json:"timestamp"`
}

func (IntentSubmittedEvent) EventType() string { return "intents.submitted" }

type IntentDeactivatedEvent struct {
	User      common.Address `json:"user"`
	Index     uint32         `json:"index"`
	Timestamp time.Time      `json:"timestamp"`
}

func (IntentDeactivatedEvent) EventType() string { return "intents.deactivated" }

type RebalanceExecutedEvent struct {
	User        common.Address `json:"user"`
	IntentIndex uint32         `json:"intent_index"`
	YieldBefore *big.Int       `json:"yield_before"`
	YieldAfter  *big.Int       `json:"yield_after"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (RebalanceExecutedEvent) EventType() string { return "intents.rebalance_executed" }

type BridgeInitiatedEvent struct {
	User         common.Address `json:"user"`
	Token        common.Address `json:"token"`
	Amount       *big.Int       `json:"amount"`
	ToChainID    uint64         `json:"to_chain_id"`
	ExecuteData  []byte         `json:"execute_data"`
	OperationKey common.Hash    `json:"operation_key"`
	Timestamp    time.Time      `json:"timestamp"`
}

func (BridgeInitiatedEvent) EventType() string { return "bridge.initiated" }

type BridgeExecutedEvent struct {
	User         common.Address `json:"user"`
	Token        common.Address `json:"token"`
	Amount       *big.Int       `json:"amount"`
	Fee          *big.Int       `json:"fee"`
	ToChainID    uint64         `json:"to_chain_id"`
	OperationKey common.Hash    `json:"operation_key"`
	Timestamp    time.Time      `json:"timestamp"`
}

func (BridgeExecutedEvent) EventType() string { return "bridge.executed" }

type TokenSupportedEvent struct {
	Token     common.Address `json:"token"`
	Supported bool           `json:"supported"`
}

func (TokenSupportedEvent) EventType() string { return "bridge.token_supported" }

type ChainSupportedEvent struct {
	ChainID   uint64 `json:"chain_id"`
	Supported bool   `json:"supported"`
}

func (ChainSupportedEvent) EventType() string { return "bridge.chain_supported" }

type BridgeFeeUpdatedEvent struct {
	FeeBps uint32 `json:"fee_bps"`
}

func (BridgeFeeUpdatedEvent) EventType() string { return "bridge.fee_updated" }

type PriceFeedRegisteredEvent struct {
	FeedID common.Hash `json:"feed_id"`
	Symbol string      `json:"symbol"`
}

func (PriceFeedRegisteredEvent) EventType() string { return "oracle.feed_registered" }

type PriceUpdatedEvent struct {
	FeedID      common.Hash `json:"feed_id"`
	Price       int64       `json:"price"`
	Confidence  uint64      `json:"confidence"`
	PublishTime time.Time   `json:"publish_time"`
}

func (PriceUpdatedEvent) EventType() string { return "oracle.price_updated" }

type APYUpdatedEvent struct {
	FeedID common.Hash `json:"feed_id"`
	APYBps uint32      `json:"apy_bps"`
}

func (APYUpdatedEvent) EventType() string { return "oracle.apy_updated" }
