package models

import (
	"time"
)

// LedgerEventRecord is the persisted form of every event the ledger core
// emits. EventKey deduplicates replays: subject + payload hash.
type LedgerEventRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"` // UUID
	EventKey  string    `json:"event_key" gorm:"uniqueIndex;not null;size:130"`
	Subject   string    `json:"subject" gorm:"not null;index;size:64"` // e.g. vault.deposit
	User      string    `json:"user" gorm:"index;size:42"`
	Payload   string    `json:"payload" gorm:"type:jsonb;not null"`
	EmittedAt time.Time `json:"emitted_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

// IntentRecord mirrors one ledger intent for querying without touching the
// core. (owner, intent_index) is the ledger identity.
type IntentRecord struct {
	ID             string     `json:"id" gorm:"primaryKey"` // UUID
	Owner          string     `json:"owner" gorm:"uniqueIndex:idx_owner_intent;not null;size:42"`
	IntentIndex    uint32     `json:"intent_index" gorm:"uniqueIndex:idx_owner_intent;not null"`
	MinAPYBps      uint32     `json:"min_apy_bps" gorm:"not null"`
	SlippageBps    uint32     `json:"slippage_bps" gorm:"not null"`
	TargetProtocol string     `json:"target_protocol" gorm:"not null;size:42"`
	TargetChainID  uint64     `json:"target_chain_id" gorm:"not null"`
	MaxGasPrice    uint64     `json:"max_gas_price"`
	IsActive       bool       `json:"is_active" gorm:"index"`
	LastExecuted   *time.Time `json:"last_executed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BridgeOperationRecord mirrors one ledger bridge operation, keyed by the
// content hash the ledger derives.
type BridgeOperationRecord struct {
	ID           string     `json:"id" gorm:"primaryKey"` // UUID
	OperationKey string     `json:"operation_key" gorm:"uniqueIndex;not null;size:66"`
	User         string     `json:"user" gorm:"index;not null;size:42"`
	Token        string     `json:"token" gorm:"not null;size:42"`
	Amount       string     `json:"amount" gorm:"not null;size:78"` // base units, decimal string
	ToChainID    uint64     `json:"to_chain_id" gorm:"not null"`
	Executed     bool       `json:"executed" gorm:"index"`
	InitiatedAt  time.Time  `json:"initiated_at"`
	ExecutedAt   *time.Time `json:"executed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PriceSnapshot is one cached oracle reading, kept for history queries and
// staleness dashboards.
type PriceSnapshot struct {
	ID          string    `json:"id" gorm:"primaryKey"` // UUID
	FeedID      string    `json:"feed_id" gorm:"index;not null;size:66"`
	Symbol      string    `json:"symbol" gorm:"index;size:32"`
	Price       int64     `json:"price" gorm:"not null"`
	Confidence  uint64    `json:"confidence"`
	Expo        int32     `json:"expo"`
	PublishTime time.Time `json:"publish_time" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
}

// RebalanceExecution records each agent-triggered execution with its outcome,
// including the best-effort cross-chain leg.
type RebalanceExecution struct {
	ID          string    `json:"id" gorm:"primaryKey"` // UUID
	User        string    `json:"user" gorm:"index;not null;size:42"`
	IntentIndex uint32    `json:"intent_index" gorm:"not null"`
	YieldBefore string    `json:"yield_before" gorm:"size:78"`
	YieldAfter  string    `json:"yield_after" gorm:"size:78"`
	BridgeKey   string    `json:"bridge_key" gorm:"size:66"` // empty when no cross-chain leg ran
	LegError    string    `json:"leg_error" gorm:"type:text"`
	ExecutedAt  time.Time `json:"executed_at" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthNonce holds the one-time challenge a wallet signs to log in.
type AuthNonce struct {
	ID        string    `json:"id" gorm:"primaryKey"` // UUID
	Address   string    `json:"address" gorm:"index;not null;size:42"`
	Nonce     string    `json:"nonce" gorm:"uniqueIndex;not null;size:64"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
