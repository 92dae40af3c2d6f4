package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Internal accounts the core owns in the token ledger. Components never
// hold pointers to each other beyond what Core injects here.
var (
	VaultAccount        = systemAccount("yieldforge/vault")
	BridgeAccount       = systemAccount("yieldforge/bridge")
	ExecutorAccount     = systemAccount("yieldforge/intent-executor")
	FeeCollectorAccount = systemAccount("yieldforge/fee-collector")
)

func systemAccount(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// Config assembles every component's policy in one place.
type Config struct {
	Deployer      common.Address
	Asset         common.Address // vault underlying token
	NativeChainID uint64

	Vault  VaultConfig
	Bridge BridgeConfig
	Intent ExecutorConfig

	OracleMinUpdateFee *big.Int
}

// DefaultConfig mirrors the production deployment parameters: a 6-decimal
// stablecoin vault bounded to [1, 1M] units, 5% starting APY, the usual
// L2 chain set, a 10 bps bridge fee, and a 0.001 ETH oracle update fee.
func DefaultConfig(deployer, asset common.Address, nativeChainID uint64) Config {
	chains := []uint64{1, 10, 137, 8453, 42161}
	return Config{
		Deployer:      deployer,
		Asset:         asset,
		NativeChainID: nativeChainID,
		Vault: VaultConfig{
			MinDeposit: big.NewInt(1_000_000),
			MaxDeposit: new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000)),
			APYBps:     500,
		},
		Bridge: BridgeConfig{
			SupportedTokens: []common.Address{asset},
			SupportedChains: chains,
			FeeBps:          10,
			MaxBridgeAmount: new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000)),
		},
		Intent: ExecutorConfig{
			NativeChainID:   nativeChainID,
			SupportedChains: chains,
		},
		OracleMinUpdateFee: big.NewInt(1_000_000_000_000_000),
	}
}

// Core is the owning context for the four ledgers, the role relation and
// the token ledger. It breaks the vault <-> bridge <-> executor reference
// cycle: components receive their collaborators here and only here.
type Core struct {
	Access *AccessRegistry
	Tokens *TokenLedger
	Vault  *Vault
	Bridge *BridgeRegistry
	Intent *IntentExecutor
	Oracle *OracleIntegrator
}

// New wires the core. The deployer holds ADMIN; the intent executor's own
// principal is granted AGENT so its vault calls pass the same role checks
// an external agent would.
func New(cfg Config, source OracleSource, sink EventSink) *Core {
	acl := NewAccessRegistry(cfg.Deployer)
	tokens := NewTokenLedger()

	vault := NewVault(acl, tokens, cfg.Asset, VaultAccount, cfg.Vault, sink)
	bridge := NewBridgeRegistry(acl, tokens, BridgeAccount, FeeCollectorAccount, cfg.Bridge, sink)
	oracle := NewOracleIntegrator(acl, source, cfg.OracleMinUpdateFee, sink)
	executor := NewIntentExecutor(acl, vault, oracle, ExecutorAccount, cfg.Intent, sink)

	// Deployment wiring: the executor acts as an agent toward the vault,
	// and both hooks point at the bridge registry until an admin rebinds
	// them.
	if err := acl.GrantRole(cfg.Deployer, RoleAgent, ExecutorAccount); err == nil {
		_ = vault.SetBridgeHook(cfg.Deployer, BridgeAccount)
		_ = executor.SetBridgeHook(cfg.Deployer, bridge)
	}

	return &Core{
		Access: acl,
		Tokens: tokens,
		Vault:  vault,
		Bridge: bridge,
		Intent: executor,
		Oracle: oracle,
	}
}

// SetNowFunc overrides the clock on every time-dependent component.
// Test hook.
func (c *Core) SetNowFunc(now func() time.Time) {
	c.Vault.SetNowFunc(now)
	c.Bridge.SetNowFunc(now)
	c.Intent.SetNowFunc(now)
	c.Oracle.SetNowFunc(now)
}
