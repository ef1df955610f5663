package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yangluo1024/store-contracts/internal/coinday"
)

// LockInfo records a governance lock on part of a balance: the height at
// which it was placed and the locked amount.
type LockInfo struct {
	Height uint64
	Amount *big.Int
}

type supplyFunc func() *big.Int

func (f supplyFunc) TotalSupply() *big.Int { return f() }

// RELP is the risk-reserve token, "Risk Reserve of ELP". Holding it accrues
// two independent reward streams in proportion to coin-days held: the block
// stream (scheduled, geometrically decaying ELP emissions) and the issuance
// stream (ELC minted whenever the stable token expands). Every balance
// mutation settles both streams and rebases the holder's coin-days before
// the balance itself changes.
type RELP struct {
	mu sync.Mutex

	name        string
	symbol      string
	decimals    uint8
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	lockInfos   map[common.Address]LockInfo
	allowances  map[allowanceKey]*big.Int

	blockEngine *coinday.Engine
	issueEngine *coinday.Engine

	owner common.Address
	clock coinday.Clock
}

// NewRELP wires the risk-reserve token to its two stream ledgers and the
// paired stable token. Both ledgers must be owned by owner; epochInterval is
// the block-stream emission grid spacing in milliseconds.
func NewRELP(owner common.Address, blockLedger, issueLedger *coinday.Ledger, elc *ELC, epochInterval uint64, clock coinday.Clock) *RELP {
	if clock == nil {
		clock = coinday.SystemClock
	}
	r := &RELP{
		name:        "Risk Reserve of ELP",
		symbol:      "rELP",
		decimals:    8,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		lockInfos:   make(map[common.Address]LockInfo),
		allowances:  make(map[allowanceKey]*big.Int),
		owner:       owner,
		clock:       clock,
	}
	// Engines read the supply without taking the token lock: they only run
	// inside operations that already hold it.
	supply := supplyFunc(func() *big.Int { return new(big.Int).Set(r.totalSupply) })
	r.blockEngine = coinday.NewEngine(blockLedger, supply, nil, owner, epochInterval)
	r.issueEngine = coinday.NewEngine(issueLedger, supply, elc, owner, epochInterval)
	return r
}

// TokenName returns the token name.
func (r *RELP) TokenName() string { return r.name }

// TokenSymbol returns the token symbol.
func (r *RELP) TokenSymbol() string { return r.symbol }

// TokenDecimals returns the token decimal places.
func (r *RELP) TokenDecimals() uint8 { return r.decimals }

// Owner returns the token owner.
func (r *RELP) Owner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// TotalSupply returns the total token supply.
func (r *RELP) TotalSupply() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.totalSupply)
}

// BalanceOf returns the balance of owner, zero for unknown accounts.
func (r *RELP) BalanceOf(owner common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance(owner)
}

// LockInfoOf returns the governance lock placed on user's balance.
func (r *RELP) LockInfoOf(user common.Address) (uint64, *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lockInfo(user)
}

// UpdateLockInfos overwrites user's governance lock.
func (r *RELP) UpdateLockInfos(caller, user common.Address, height uint64, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return err
	}
	r.lockInfos[user] = LockInfo{Height: height, Amount: new(big.Int).Set(amount)}
	return nil
}

// Allowance returns what spender may still withdraw from owner.
func (r *RELP) Allowance(owner, spender common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Approve lets spender withdraw repeatedly from the caller's account, up to
// value in total.
func (r *RELP) Approve(caller, spender common.Address, value *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowances[allowanceKey{caller, spender}] = new(big.Int).Set(value)
	return nil
}

// Transfer moves value from the caller's account to account to, settling
// both reward streams for both accounts first.
func (r *RELP) Transfer(caller, to common.Address, value *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transferFromTo(caller, to, value)
}

// TransferFrom moves value from from to to on the caller's allowance.
func (r *RELP) TransferFrom(caller, from, to common.Address, value *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowance := new(big.Int)
	if a, ok := r.allowances[allowanceKey{from, caller}]; ok {
		allowance.Set(a)
	}
	if allowance.Cmp(value) < 0 {
		return ErrInsufficientAllowance
	}
	if err := r.transferFromTo(from, to, value); err != nil {
		return err
	}
	r.allowances[allowanceKey{from, caller}] = allowance.Sub(allowance, value)
	return nil
}

// Mint issues amount new tokens to user. The very first mint realigns the
// block-stream emission grid, since no coin-days can accrue before supply
// exists.
func (r *RELP) Mint(caller, user common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	now := r.clock()
	balance := r.balance(user)
	if r.totalSupply.Sign() == 0 {
		if err := r.blockEngine.RealignDailyAward(now); err != nil {
			return err
		}
	}
	if err := r.checkBacklogs(user, balance); err != nil {
		return err
	}

	t, idxIssue, err := r.issueEngine.Settle(user, balance, now)
	if err != nil {
		return fmt.Errorf("settle issuance stream: %w", err)
	}
	if err := r.issueEngine.IncreaseCoinday(user, balance, t, idxIssue); err != nil {
		return err
	}
	_, idxBlock, err := r.blockEngine.Settle(user, balance, now)
	if err != nil {
		return fmt.Errorf("settle block stream: %w", err)
	}
	if err := r.blockEngine.IncreaseCoinday(user, balance, t, idxBlock); err != nil {
		return err
	}
	r.balances[user] = balance.Add(balance, amount)

	if err := r.issueEngine.UpdateTotal(t, nil); err != nil {
		return err
	}
	if err := r.blockEngine.UpdateTotal(t, nil); err != nil {
		return err
	}
	r.totalSupply.Add(r.totalSupply, amount)
	return nil
}

// Burn withdraws amount tokens from user's free (unlocked) balance.
func (r *RELP) Burn(caller, user common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if r.totalSupply.Cmp(amount) < 0 {
		return ErrInsufficientSupply
	}

	balance := r.balance(user)
	if r.freeBalance(user, balance).Cmp(amount) < 0 {
		return ErrInsufficientFreeBalance
	}
	if err := r.checkBacklogs(user, balance); err != nil {
		return err
	}

	now := r.clock()
	t, idxIssue, err := r.issueEngine.Settle(user, balance, now)
	if err != nil {
		return fmt.Errorf("settle issuance stream: %w", err)
	}
	decIssue, err := r.issueEngine.DecreaseCoinday(user, balance, amount, t, idxIssue)
	if err != nil {
		return err
	}
	_, idxBlock, err := r.blockEngine.Settle(user, balance, now)
	if err != nil {
		return fmt.Errorf("settle block stream: %w", err)
	}
	decBlock, err := r.blockEngine.DecreaseCoinday(user, balance, amount, t, idxBlock)
	if err != nil {
		return err
	}
	r.balances[user] = balance.Sub(balance, amount)

	if err := r.issueEngine.UpdateTotal(t, decIssue); err != nil {
		return err
	}
	if err := r.blockEngine.UpdateTotal(t, decBlock); err != nil {
		return err
	}
	r.totalSupply.Sub(r.totalSupply, amount)
	return nil
}

// TransferOwnership hands the gated entry points to a new owner. The stream
// ledgers stay owned by the original identity; rewiring them is a separate
// deployment concern.
func (r *RELP) TransferOwnership(caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return err
	}
	r.owner = newOwner
	return nil
}

// LiquidateBlockReward works off up to the manual bound of block-stream
// backlog for user. Callable by anyone on any account.
func (r *RELP) LiquidateBlockReward(user common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockEngine.Liquidate(user, r.balance(user))
}

// LiquidateIssuanceReward works off up to the manual bound of issuance
// backlog for user.
func (r *RELP) LiquidateIssuanceReward(user common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issueEngine.Liquidate(user, r.balance(user))
}

// SealBlockAwards closes every elapsed emission epoch on the block stream
// and appends one award for the period. Requires positive supply: with no
// holders there is nobody to emit to.
func (r *RELP) SealBlockAwards(caller common.Address) (coinday.Award, uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return coinday.Award{}, 0, err
	}
	if r.totalSupply.Sign() == 0 {
		return coinday.Award{}, 0, ErrInsufficientSupply
	}
	return r.blockEngine.SealEpochs(r.clock())
}

// RecordIssuanceAward seals one issuance-stream award of amount ELC,
// reported by the stable token when it expands supply.
func (r *RELP) RecordIssuanceAward(caller common.Address, amount *big.Int) (coinday.Award, uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onlyOwner(caller); err != nil {
		return coinday.Award{}, 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return coinday.Award{}, 0, ErrInvalidAmount
	}
	return r.issueEngine.Emit(r.clock(), amount)
}

// BlockEngine exposes the block-stream engine for status readers.
func (r *RELP) BlockEngine() *coinday.Engine { return r.blockEngine }

// IssueEngine exposes the issuance-stream engine for status readers.
func (r *RELP) IssueEngine() *coinday.Engine { return r.issueEngine }

func (r *RELP) transferFromTo(from, to common.Address, value *big.Int) error {
	fromBalance := r.balance(from)
	if r.freeBalance(from, fromBalance).Cmp(value) < 0 {
		return ErrInsufficientFreeBalance
	}

	// Pre-validate every (account, stream) pair so the operation cannot
	// fail after the first ledger write.
	if err := r.checkBacklogs(from, fromBalance); err != nil {
		return err
	}
	if err := r.checkBacklogs(to, r.balance(to)); err != nil {
		return err
	}

	now := r.clock()
	t, idxIssue, err := r.issueEngine.Settle(from, fromBalance, now)
	if err != nil {
		return fmt.Errorf("settle issuance stream: %w", err)
	}
	decIssue, err := r.issueEngine.DecreaseCoinday(from, fromBalance, value, t, idxIssue)
	if err != nil {
		return err
	}
	_, idxBlock, err := r.blockEngine.Settle(from, fromBalance, now)
	if err != nil {
		return fmt.Errorf("settle block stream: %w", err)
	}
	decBlock, err := r.blockEngine.DecreaseCoinday(from, fromBalance, value, t, idxBlock)
	if err != nil {
		return err
	}
	r.balances[from] = fromBalance.Sub(fromBalance, value)

	// 转入方余额必须在扣减之后读取，自转账才能保持余额不变。
	toBalance := r.balance(to)
	_, idxIssueTo, err := r.issueEngine.Settle(to, toBalance, now)
	if err != nil {
		return fmt.Errorf("settle issuance stream: %w", err)
	}
	if err := r.issueEngine.IncreaseCoinday(to, toBalance, t, idxIssueTo); err != nil {
		return err
	}
	_, idxBlockTo, err := r.blockEngine.Settle(to, toBalance, now)
	if err != nil {
		return fmt.Errorf("settle block stream: %w", err)
	}
	if err := r.blockEngine.IncreaseCoinday(to, toBalance, t, idxBlockTo); err != nil {
		return err
	}
	r.balances[to] = toBalance.Add(toBalance, value)

	if err := r.issueEngine.UpdateTotal(t, decIssue); err != nil {
		return err
	}
	return r.blockEngine.UpdateTotal(t, decBlock)
}

func (r *RELP) checkBacklogs(user common.Address, balance *big.Int) error {
	if err := r.issueEngine.CheckBacklog(user, balance); err != nil {
		return fmt.Errorf("issuance stream: %w", err)
	}
	if err := r.blockEngine.CheckBacklog(user, balance); err != nil {
		return fmt.Errorf("block stream: %w", err)
	}
	return nil
}

func (r *RELP) balance(owner common.Address) *big.Int {
	if b, ok := r.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (r *RELP) lockInfo(user common.Address) (uint64, *big.Int) {
	if info, ok := r.lockInfos[user]; ok {
		return info.Height, new(big.Int).Set(info.Amount)
	}
	return 0, new(big.Int)
}

// freeBalance is the spendable part: held balance minus the governance lock.
func (r *RELP) freeBalance(user common.Address, balance *big.Int) *big.Int {
	_, locked := r.lockInfo(user)
	return new(big.Int).Sub(balance, locked)
}

func (r *RELP) onlyOwner(caller common.Address) error {
	if caller != r.owner {
		return ErrOnlyOwner
	}
	return nil
}
