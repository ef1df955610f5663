package coinday

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// InlineEpochLimit bounds how many awards a settle folded into an
	// ordinary balance operation may cover. A longer backlog must go through
	// Liquidate so no transfer can be made arbitrarily expensive.
	InlineEpochLimit = 5

	// LiquidateEpochLimit bounds one manual liquidation call.
	LiquidateEpochLimit = 50
)

// RatioScale is the fixed-point factor for the proportional coin-day
// decrease. Integer constant on purpose: the arithmetic must stay exact.
var RatioScale = big.NewInt(100000000)

var (
	decayNumerator   = big.NewInt(99)
	decayDenominator = big.NewInt(100)
)

// Engine runs the coin-day accrual algorithm against one stream ledger.
// The same engine serves both reward streams; the only difference is whether
// a Minter is attached, in which case settling also issues the payout token.
type Engine struct {
	ledger *Ledger
	supply SupplyReader
	minter Minter

	// Identity presented on owner-gated ledger calls.
	caller common.Address

	// Emission grid spacing in milliseconds.
	epochInterval uint64
}

// NewEngine binds an engine to its stream ledger. minter may be nil for
// streams that settle by crediting the reward ledger only.
func NewEngine(ledger *Ledger, supply SupplyReader, minter Minter, caller common.Address, epochInterval uint64) *Engine {
	return &Engine{
		ledger:        ledger,
		supply:        supply,
		minter:        minter,
		caller:        caller,
		epochInterval: epochInterval,
	}
}

// Ledger returns the stream ledger the engine operates on.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// CheckBacklog reports whether an inline settle for user would be refused.
// Callers touching several (account, stream) pairs in one atomic operation
// run this for every pair before the first mutation.
func (e *Engine) CheckBacklog(user common.Address, balance *big.Int) error {
	rec := e.ledger.CoindayInfoOf(user)
	length := e.ledger.AwardsLength()
	if length-rec.LastIndex > InlineEpochLimit && balance.Sign() != 0 {
		return ErrNeedLiquidate
	}
	return nil
}

// Settle folds every award since user's checkpoint into its claimable
// reward and returns the new checkpoint (now, awards length). The caller
// must follow up with IncreaseCoinday or DecreaseCoinday before applying
// the balance change itself.
func (e *Engine) Settle(user common.Address, balance *big.Int, now uint64) (uint64, uint32, error) {
	rec := e.ledger.CoindayInfoOf(user)
	length := e.ledger.AwardsLength()
	if length-rec.LastIndex > InlineEpochLimit && balance.Sign() != 0 {
		return 0, 0, ErrNeedLiquidate
	}

	reward, err := e.accrue(rec, balance, rec.LastIndex, length)
	if err != nil {
		return 0, 0, err
	}
	if reward.Sign() > 0 {
		if err := e.payout(user, reward); err != nil {
			return 0, 0, err
		}
	}
	return now, length, nil
}

// Liquidate works off up to LiquidateEpochLimit backlog awards for user and
// advances the checkpoint to the stop index. An account with a deep backlog
// calls repeatedly until ErrNoBacklog.
func (e *Engine) Liquidate(user common.Address, balance *big.Int) error {
	rec := e.ledger.CoindayInfoOf(user)
	length := e.ledger.AwardsLength()
	if rec.LastIndex >= length {
		return ErrNoBacklog
	}

	stop := rec.LastIndex + LiquidateEpochLimit
	if stop > length {
		stop = length
	}
	reward, err := e.accrue(rec, balance, rec.LastIndex, stop)
	if err != nil {
		return err
	}
	if reward.Sign() > 0 {
		if err := e.payout(user, reward); err != nil {
			return err
		}
	}

	// Roll the accumulator to the last processed award so the next batch
	// starts from a consistent (amount, timestamp) pair.
	last, err := e.ledger.AwardAt(stop - 1)
	if err != nil {
		return err
	}
	rolled := rollForward(rec, balance, last.Timestamp)
	return e.ledger.UpdateCoindays(e.caller, user, rolled, last.Timestamp, stop)
}

// IncreaseCoinday rolls user's accumulator to now using the balance held
// before an inbound change and stores the new checkpoint.
func (e *Engine) IncreaseCoinday(user common.Address, balance *big.Int, now uint64, index uint32) error {
	rec := e.ledger.CoindayInfoOf(user)
	rolled := rollForward(rec, balance, now)
	return e.ledger.UpdateCoindays(e.caller, user, rolled, now, index)
}

// DecreaseCoinday rolls user's accumulator to now and removes the share of
// coin-days proportional to value/balance, where balance is the holding
// before the outbound change. Returns the removed amount so the aggregate
// tracker can be reconciled.
func (e *Engine) DecreaseCoinday(user common.Address, balance, value *big.Int, now uint64, index uint32) (*big.Int, error) {
	if balance.Sign() == 0 {
		return nil, ErrZeroBalance
	}
	rec := e.ledger.CoindayInfoOf(user)
	cur := rollForward(rec, balance, now)

	// 先放大1e8再做整除，避免 value/balance 先截断成0。
	ratio := new(big.Int).Mul(value, RatioScale)
	ratio.Quo(ratio, balance)
	removed := new(big.Int).Mul(cur, ratio)
	removed.Quo(removed, RatioScale)

	cur.Sub(cur, removed)
	if err := e.ledger.UpdateCoindays(e.caller, user, cur, now, index); err != nil {
		return nil, err
	}
	return removed, nil
}

// UpdateTotal rolls the aggregate coin-day tracker to now using the current
// total supply, minus any decrease reported by DecreaseCoinday. A nil
// decrease means none occurred.
func (e *Engine) UpdateTotal(now uint64, decrease *big.Int) error {
	newTotal := e.rolledTotal(now)
	if decrease != nil {
		newTotal.Sub(newTotal, decrease)
	}
	return e.ledger.UpdateTotalCoinday(e.caller, newTotal, now)
}

// accrue sums user's share of awards [from, to) using the held balance as
// constant since the record's checkpoint.
func (e *Engine) accrue(rec Record, balance *big.Int, from, to uint32) (*big.Int, error) {
	reward := new(big.Int)
	for i := from; i < to; i++ {
		award, err := e.ledger.AwardAt(i)
		if err != nil {
			return nil, err
		}
		if award.TotalCoinday.Sign() <= 0 {
			return nil, fmt.Errorf("%w: award %d", ErrZeroTotalCoinday, i)
		}
		// 币天推进到该期封存时刻，再按占比分配该期奖励。
		coinday := rollForward(rec, balance, award.Timestamp)
		share := coinday.Mul(coinday, award.Amount)
		share.Quo(share, award.TotalCoinday)
		reward.Add(reward, share)
	}
	return reward, nil
}

// payout mints first when a minter is attached, then credits the reward
// ledger, so a failed cross-contract mint aborts before any ledger write.
func (e *Engine) payout(user common.Address, reward *big.Int) error {
	if e.minter != nil {
		if err := e.minter.Mint(e.caller, user, reward); err != nil {
			return fmt.Errorf("mint reward: %w", err)
		}
	}
	old := e.ledger.RewardOf(user)
	return e.ledger.UpdateRewards(e.caller, user, old.Add(old, reward))
}

func (e *Engine) rolledTotal(now uint64) *big.Int {
	tot := e.ledger.TotalCoinday()
	inc := new(big.Int).SetUint64(elapsed(tot.Timestamp, now))
	inc.Mul(inc, e.supply.TotalSupply())
	return inc.Add(inc, tot.Amount)
}

// rollForward extends a record's coin-days to instant t assuming the balance
// held constant since the checkpoint.
func rollForward(rec Record, balance *big.Int, t uint64) *big.Int {
	grown := new(big.Int).SetUint64(elapsed(rec.Timestamp, t))
	grown.Mul(grown, balance)
	return grown.Add(grown, rec.Amount)
}
