package ledger

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const secondsPerYear = 365 * 24 * 3600

// VaultConfig bounds deposits and seeds the informational APY. Mutated only
// through ADMIN-gated setters after construction.
type VaultConfig struct {
	MinDeposit *big.Int
	MaxDeposit *big.Int
	APYBps     uint32
}

// Vault owns share accounting for one underlying asset. Shares are minted
// 1:1 with assets at the current share price and redeemed with
// integer-exact proportional math, so a full withdrawal always leaves a
// zero balance. Yield accrual is informational: it never moves underlying
// assets by itself.
type Vault struct {
	mu sync.Mutex

	acl    *AccessRegistry
	tokens *TokenLedger
	asset  common.Address
	addr   common.Address // custody account in the token ledger
	sink   EventSink
	now    func() time.Time

	paused     bool
	minDeposit *big.Int
	maxDeposit *big.Int
	apyBps     uint32
	bridgeHook common.Address

	totalShares *big.Int
	totalAssets *big.Int
	shares      map[common.Address]*big.Int
	yieldEarned map[common.Address]*big.Int
	totalYield  *big.Int
	lastAccrual map[common.Address]time.Time
}

// NewVault creates the vault ledger. addr is the vault's own account in the
// token ledger; deposits settle into it.
func NewVault(acl *AccessRegistry, tokens *TokenLedger, asset, addr common.Address, cfg VaultConfig, sink EventSink) *Vault {
	return &Vault{
		acl:         acl,
		tokens:      tokens,
		asset:       asset,
		addr:        addr,
		sink:        sink,
		now:         time.Now,
		minDeposit:  clone(cfg.MinDeposit),
		maxDeposit:  clone(cfg.MaxDeposit),
		apyBps:      cfg.APYBps,
		totalShares: new(big.Int),
		totalAssets: new(big.Int),
		shares:      make(map[common.Address]*big.Int),
		yieldEarned: make(map[common.Address]*big.Int),
		totalYield:  new(big.Int),
		lastAccrual: make(map[common.Address]time.Time),
	}
}

// SetNowFunc overrides the clock. Test hook.
func (v *Vault) SetNowFunc(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// Address returns the vault's custody account.
func (v *Vault) Address() common.Address { return v.addr }

// Asset returns the underlying token.
func (v *Vault) Asset() common.Address { return v.asset }

func (v *Vault) sharesRef(owner common.Address) *big.Int {
	s := v.shares[owner]
	if s == nil {
		s = new(big.Int)
		v.shares[owner] = s
	}
	return s
}

func (v *Vault) yieldRef(owner common.Address) *big.Int {
	y := v.yieldEarned[owner]
	if y == nil {
		y = new(big.Int)
		v.yieldEarned[owner] = y
	}
	return y
}

// convertToShares prices assets at the current share price.
func (v *Vault) convertToShares(assets *big.Int) *big.Int {
	if v.totalShares.Sign() == 0 || v.totalAssets.Sign() == 0 {
		return clone(assets)
	}
	return mulDiv(assets, v.totalShares, v.totalAssets)
}

func (v *Vault) convertToAssets(shares *big.Int) *big.Int {
	if v.totalShares.Sign() == 0 {
		return clone(shares)
	}
	return mulDiv(shares, v.totalAssets, v.totalShares)
}

// accrueYield records time-based yield for owner at the current APY.
// Informational only: totalAssets is untouched.
func (v *Vault) accrueYield(owner common.Address, now time.Time) {
	last, seen := v.lastAccrual[owner]
	v.lastAccrual[owner] = now
	if !seen || !now.After(last) {
		return
	}
	bal := v.sharesRef(owner)
	if bal.Sign() == 0 || v.apyBps == 0 {
		return
	}
	elapsed := big.NewInt(int64(now.Sub(last) / time.Second))
	accrued := new(big.Int).Mul(bal, big.NewInt(int64(v.apyBps)))
	accrued.Mul(accrued, elapsed)
	accrued.Div(accrued, big.NewInt(int64(bpsDenominator)*secondsPerYear))
	if accrued.Sign() > 0 {
		v.yieldRef(owner).Add(v.yieldRef(owner), accrued)
		v.totalYield.Add(v.totalYield, accrued)
	}
}

// Deposit pulls amount of the underlying asset from caller and mints shares
// to receiver. All validation happens before any state moves.
func (v *Vault) Deposit(caller common.Address, amount *big.Int, receiver common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil, ErrVaultPaused
	}
	if !isPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if v.minDeposit != nil && amount.Cmp(v.minDeposit) < 0 {
		return nil, ErrInvalidAmount
	}
	if v.maxDeposit != nil && v.maxDeposit.Sign() > 0 && amount.Cmp(v.maxDeposit) > 0 {
		return nil, ErrInvalidAmount
	}

	if v.tokens.BalanceOf(v.asset, caller).Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}

	now := v.now()
	v.accrueYield(receiver, now)
	minted := v.convertToShares(amount)

	if err := v.tokens.Transfer(v.asset, caller, v.addr, amount); err != nil {
		return nil, err
	}

	v.sharesRef(receiver).Add(v.sharesRef(receiver), minted)
	v.totalShares.Add(v.totalShares, minted)
	v.totalAssets.Add(v.totalAssets, amount)

	publish(v.sink, DepositEvent{User: receiver, Shares: clone(minted), Assets: clone(amount), Timestamp: now})
	return clone(minted), nil
}

// Withdraw burns just enough of owner's shares to pay out exactly amount of
// the underlying asset to receiver.
func (v *Vault) Withdraw(caller common.Address, amount *big.Int, receiver, owner common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil, ErrVaultPaused
	}
	if caller != owner {
		return nil, ErrUnauthorizedAccount
	}
	if !isPositive(amount) {
		return nil, ErrInvalidAmount
	}

	held := v.sharesRef(owner)
	redeemable := v.convertToAssets(held)
	if amount.Cmp(redeemable) > 0 {
		return nil, ErrInvalidAmount
	}

	now := v.now()
	v.accrueYield(owner, now)

	var burned *big.Int
	if amount.Cmp(redeemable) == 0 {
		// Full exit burns every share so no dust survives rounding.
		burned = clone(held)
	} else {
		burned = mulDivUp(amount, v.totalShares, v.totalAssets)
	}

	if err := v.tokens.Transfer(v.asset, v.addr, receiver, amount); err != nil {
		return nil, err
	}

	held.Sub(held, burned)
	v.totalShares.Sub(v.totalShares, burned)
	v.totalAssets.Sub(v.totalAssets, amount)

	publish(v.sink, WithdrawEvent{User: owner, Shares: clone(burned), Assets: clone(amount), Timestamp: now})
	return clone(burned), nil
}

// Redeem burns an exact share count and pays out the proportional assets.
func (v *Vault) Redeem(caller common.Address, shares *big.Int, receiver, owner common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil, ErrVaultPaused
	}
	if caller != owner {
		return nil, ErrUnauthorizedAccount
	}
	if !isPositive(shares) {
		return nil, ErrInvalidAmount
	}

	held := v.sharesRef(owner)
	if shares.Cmp(held) > 0 {
		return nil, ErrInvalidAmount
	}

	now := v.now()
	v.accrueYield(owner, now)
	assets := v.convertToAssets(shares)

	if assets.Sign() > 0 {
		if err := v.tokens.Transfer(v.asset, v.addr, receiver, assets); err != nil {
			return nil, err
		}
	}

	held.Sub(held, shares)
	v.totalShares.Sub(v.totalShares, shares)
	v.totalAssets.Sub(v.totalAssets, assets)

	publish(v.sink, WithdrawEvent{User: owner, Shares: clone(shares), Assets: clone(assets), Timestamp: now})
	return assets, nil
}

// ExecuteRebalance records yield gained for user and the APY the agent
// observed. AGENT-only, informational accounting: actual fund movement goes
// through ApproveForBridge or external execution. Unaffected by pause.
func (v *Vault) ExecuteRebalance(caller, user common.Address, yieldGained *big.Int, newAPYBps uint32) error {
	if err := v.acl.requireAgent(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	v.accrueYield(user, now)
	if yieldGained != nil && yieldGained.Sign() > 0 {
		v.yieldRef(user).Add(v.yieldRef(user), yieldGained)
		v.totalYield.Add(v.totalYield, yieldGained)
	}
	if newAPYBps > 0 {
		v.apyBps = newAPYBps
	}

	publish(v.sink, VaultRebalanceEvent{User: user, YieldGained: clone(yieldGained), NewAPYBps: newAPYBps, Timestamp: now})
	return nil
}

// ApproveForBridge delegates an allowance over the vault's underlying asset
// to spender. A zero spender targets the configured bridge hook; with no
// hook bound the approval has no valid target. AGENT-only.
func (v *Vault) ApproveForBridge(caller, spender common.Address, amount *big.Int) error {
	if err := v.acl.requireAgent(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if spender == (common.Address{}) {
		spender = v.bridgeHook
	}
	if spender == (common.Address{}) {
		return ErrInvalidAmount
	}

	v.tokens.Approve(v.asset, v.addr, spender, amount)
	publish(v.sink, BridgeApprovalEvent{Spender: spender, Amount: clone(amount), Timestamp: v.now()})
	return nil
}

// Pause stops deposits and withdrawals. Agent operations keep running.
func (v *Vault) Pause(caller common.Address) error {
	if err := v.acl.requireAdmin(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
	publish(v.sink, VaultPausedEvent{Paused: true, Timestamp: v.now()})
	return nil
}

func (v *Vault) Unpause(caller common.Address) error {
	if err := v.acl.requireAdmin(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
	publish(v.sink, VaultPausedEvent{Paused: false, Timestamp: v.now()})
	return nil
}

// SetBridgeHook rebinds which bridge custody account ApproveForBridge
// targets by default. Zero disables cross-chain delegation.
func (v *Vault) SetBridgeHook(caller, hook common.Address) error {
	if err := v.acl.requireAdmin(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bridgeHook = hook
	return nil
}

// SetDepositLimits adjusts the min/max deposit bounds.
func (v *Vault) SetDepositLimits(caller common.Address, min, max *big.Int) error {
	if err := v.acl.requireAdmin(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.minDeposit = clone(min)
	v.maxDeposit = clone(max)
	return nil
}

// BalanceOf returns owner's share balance.
func (v *Vault) BalanceOf(owner common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.shares[owner])
}

// MaxWithdraw returns the assets owner can currently redeem.
func (v *Vault) MaxWithdraw(owner common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToAssets(v.sharesRef(owner))
}

// YieldOf returns the yield recorded for owner so far.
func (v *Vault) YieldOf(owner common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.yieldEarned[owner])
}

func (v *Vault) TotalShares() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.totalShares)
}

func (v *Vault) TotalAssets() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.totalAssets)
}

func (v *Vault) TotalYield() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.totalYield)
}

func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *Vault) APYBps() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.apyBps
}

func (v *Vault) BridgeHook() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bridgeHook
}
