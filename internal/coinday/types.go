package coinday

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Clock supplies the logical time of an operation in unix milliseconds.
type Clock func() uint64

// SystemClock reads the wall clock.
func SystemClock() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Record is one account's coin-day accumulator: the coin-days collected so
// far, the instant the amount was last brought current, and the index of the
// next award the account has not yet folded into its reward.
type Record struct {
	Amount    *big.Int
	Timestamp uint64
	LastIndex uint32
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		Amount:    new(big.Int).Set(r.Amount),
		Timestamp: r.Timestamp,
		LastIndex: r.LastIndex,
	}
}

// Award is one sealed emission epoch. Awards are immutable once appended.
type Award struct {
	Amount       *big.Int
	TotalCoinday *big.Int
	Timestamp    uint64
}

// Clone returns a deep copy of the award.
func (a Award) Clone() Award {
	return Award{
		Amount:       new(big.Int).Set(a.Amount),
		TotalCoinday: new(big.Int).Set(a.TotalCoinday),
		Timestamp:    a.Timestamp,
	}
}

// Total mirrors Record for the aggregate supply. It is maintained
// incrementally, never recomputed by summation over holders.
type Total struct {
	Amount    *big.Int
	Timestamp uint64
}

// Clone returns a deep copy of the total tracker value.
func (t Total) Clone() Total {
	return Total{Amount: new(big.Int).Set(t.Amount), Timestamp: t.Timestamp}
}

// SupplyReader exposes the paired token's aggregate supply.
type SupplyReader interface {
	TotalSupply() *big.Int
}

// Minter mints the payout token for reward streams that settle by issuing
// new supply rather than only crediting the reward ledger.
type Minter interface {
	Mint(caller, user common.Address, amount *big.Int) error
}

// elapsed returns to-from, clamped at zero so a stale reading can never
// underflow the unsigned difference.
func elapsed(from, to uint64) uint64 {
	if to <= from {
		return 0
	}
	return to - from
}
