package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// ELC is the stable-value token, "Everlasting Cash". It is a plain
// balance/allowance ledger; new supply enters only through owner-gated
// mints, which is how the issuance reward stream pays out.
type ELC struct {
	mu sync.Mutex

	name        string
	symbol      string
	decimals    uint8
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
	owner       common.Address
}

// NewELC creates the stable token with zero supply.
func NewELC(owner common.Address) *ELC {
	return &ELC{
		name:        "Everlasting Cash",
		symbol:      "ELC",
		decimals:    8,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]*big.Int),
		owner:       owner,
	}
}

// TokenName returns the token name.
func (t *ELC) TokenName() string { return t.name }

// TokenSymbol returns the token symbol.
func (t *ELC) TokenSymbol() string { return t.symbol }

// TokenDecimals returns the token decimal places.
func (t *ELC) TokenDecimals() uint8 { return t.decimals }

// TotalSupply returns the total token supply.
func (t *ELC) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the balance of owner, zero for unknown accounts.
func (t *ELC) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(owner)
}

// Allowance returns what spender may still withdraw from owner.
func (t *ELC) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowance(owner, spender)
}

// Owner returns the token owner.
func (t *ELC) Owner() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}

// Transfer moves value from the caller's account to account to.
func (t *ELC) Transfer(caller, to common.Address, value *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferFromTo(caller, to, value)
}

// TransferFrom moves value from from to to on the caller's allowance.
func (t *ELC) TransferFrom(caller, from, to common.Address, value *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	allowance := t.allowance(from, caller)
	if allowance.Cmp(value) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.transferFromTo(from, to, value); err != nil {
		return err
	}
	t.allowances[allowanceKey{from, caller}] = allowance.Sub(allowance, value)
	return nil
}

// Approve lets spender withdraw repeatedly from the caller's account, up to
// value in total. A repeated call overwrites the current allowance.
func (t *ELC) Approve(caller, spender common.Address, value *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{caller, spender}] = new(big.Int).Set(value)
	return nil
}

// Mint issues amount new tokens to user.
func (t *ELC) Mint(caller, user common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.onlyOwner(caller); err != nil {
		return err
	}
	if user == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance := t.balance(user)
	t.balances[user] = balance.Add(balance, amount)
	t.totalSupply.Add(t.totalSupply, amount)
	return nil
}

// Burn withdraws amount tokens from user.
func (t *ELC) Burn(caller, user common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.onlyOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if t.totalSupply.Cmp(amount) < 0 {
		return ErrInsufficientSupply
	}
	balance := t.balance(user)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.balances[user] = balance.Sub(balance, amount)
	t.totalSupply.Sub(t.totalSupply, amount)
	return nil
}

// TransferOwnership hands the mint/burn right to a new owner.
func (t *ELC) TransferOwnership(caller, newOwner common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.onlyOwner(caller); err != nil {
		return err
	}
	t.owner = newOwner
	return nil
}

func (t *ELC) transferFromTo(from, to common.Address, value *big.Int) error {
	fromBalance := t.balance(from)
	if fromBalance.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	t.balances[from] = fromBalance.Sub(fromBalance, value)
	// 转入方余额必须在扣减之后读取，自转账才能保持余额不变。
	toBalance := t.balance(to)
	t.balances[to] = toBalance.Add(toBalance, value)
	return nil
}

func (t *ELC) balance(owner common.Address) *big.Int {
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *ELC) allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (t *ELC) onlyOwner(caller common.Address) error {
	if caller != t.owner {
		return ErrOnlyOwner
	}
	return nil
}
