package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger tracks balances and allowances for every token the system
// touches (the vault underlying plus any bridgeable token). It is the
// economic floor under the other ledgers: deposit, withdraw and bridge
// initiation all settle against it.
type TokenLedger struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*big.Int            // token -> holder -> balance
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int // token -> owner -> spender
}

func NewTokenLedger() *TokenLedger {
	return &TokenLedger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *TokenLedger) balanceRef(token, holder common.Address) *big.Int {
	m := t.balances[token]
	if m == nil {
		m = make(map[common.Address]*big.Int)
		t.balances[token] = m
	}
	b := m[holder]
	if b == nil {
		b = new(big.Int)
		m[holder] = b
	}
	return b
}

func (t *TokenLedger) allowanceRef(token, owner, spender common.Address) *big.Int {
	byOwner := t.allowances[token]
	if byOwner == nil {
		byOwner = make(map[common.Address]map[common.Address]*big.Int)
		t.allowances[token] = byOwner
	}
	bySpender := byOwner[owner]
	if bySpender == nil {
		bySpender = make(map[common.Address]*big.Int)
		byOwner[owner] = bySpender
	}
	a := bySpender[spender]
	if a == nil {
		a = new(big.Int)
		bySpender[spender] = a
	}
	return a
}

// Mint credits freshly issued tokens to an account.
func (t *TokenLedger) Mint(token, to common.Address, amount *big.Int) error {
	if !isPositive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balanceRef(token, to).Add(t.balanceRef(token, to), amount)
	return nil
}

// Burn destroys tokens held by an account (a bridged-out amount leaves the
// ledger this way).
func (t *TokenLedger) Burn(token, from common.Address, amount *big.Int) error {
	if !isPositive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceRef(token, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

func (t *TokenLedger) BalanceOf(token, holder common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clone(t.balances[token][holder])
}

func (t *TokenLedger) Allowance(token, owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner := t.allowances[token]
	if byOwner == nil {
		return new(big.Int)
	}
	return clone(byOwner[owner][spender])
}

// Approve sets spender's allowance over owner's tokens.
func (t *TokenLedger) Approve(token, owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowanceRef(token, owner, spender).Set(clone(amount))
}

// Transfer moves tokens between accounts.
func (t *TokenLedger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if !isPositive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceRef(token, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.balanceRef(token, to).Add(t.balanceRef(token, to), amount)
	return nil
}

// TransferFrom moves owner's tokens on the strength of spender's allowance.
func (t *TokenLedger) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error {
	if !isPositive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowance := t.allowanceRef(token, owner, spender)
	bal := t.balanceRef(token, owner)
	if bal.Cmp(amount) < 0 || allowance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	t.balanceRef(token, to).Add(t.balanceRef(token, to), amount)
	return nil
}
