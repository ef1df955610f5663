package coinday

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is one reward stream's bookkeeping contract: the append-only award
// sequence, the per-account coin-day records, the aggregate coin-day mirror,
// and the claimable reward balances. Mutating entry points are gated on the
// owning contract's identity; each call runs under the ledger lock so no
// caller observes a partially updated stream.
type Ledger struct {
	mu sync.Mutex

	totalReward *big.Int
	rewards     map[common.Address]*big.Int
	total       Total
	coindays    map[common.Address]Record
	awards      []Award
	dailyAmount *big.Int
	dailyTime   uint64
	deployTime  uint64
	owner       common.Address
	clock       Clock
}

// NewLedger creates an empty stream ledger. initialDaily seeds the
// geometrically decaying per-epoch emission amount; streams that only record
// externally computed awards may pass zero.
func NewLedger(owner common.Address, initialDaily *big.Int, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	if initialDaily == nil {
		initialDaily = new(big.Int)
	}
	now := clock()
	return &Ledger{
		totalReward: new(big.Int),
		rewards:     make(map[common.Address]*big.Int),
		total:       Total{Amount: new(big.Int), Timestamp: now},
		coindays:    make(map[common.Address]Record),
		dailyAmount: new(big.Int).Set(initialDaily),
		dailyTime:   now,
		deployTime:  now,
		owner:       owner,
		clock:       clock,
	}
}

// CoindayInfoOf returns the stored record for user, or a zero record stamped
// with the current time when the account has never been touched.
func (l *Ledger) CoindayInfoOf(user common.Address) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.coindays[user]; ok {
		return rec.Clone()
	}
	return Record{Amount: new(big.Int), Timestamp: l.clock(), LastIndex: 0}
}

// AwardAt returns the sealed award at index.
func (l *Ledger) AwardAt(index uint32) (Award, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if int(index) >= len(l.awards) {
		return Award{}, fmt.Errorf("%w: index %d length %d", ErrOutOfRange, index, len(l.awards))
	}
	return l.awards[index].Clone(), nil
}

// AwardsLength returns the number of sealed awards.
func (l *Ledger) AwardsLength() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint32(len(l.awards))
}

// TotalCoinday returns the aggregate coin-day tracker value.
func (l *Ledger) TotalCoinday() Total {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.Clone()
}

// TotalReward returns the cumulative reward emitted on this stream.
func (l *Ledger) TotalReward() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalReward)
}

// RewardOf returns the claimable reward credited to user.
func (l *Ledger) RewardOf(user common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rewards[user]; ok {
		return new(big.Int).Set(r)
	}
	return new(big.Int)
}

// DailyAward returns the current per-epoch emission amount and the grid
// timestamp it was last advanced to.
func (l *Ledger) DailyAward() (*big.Int, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.dailyAmount), l.dailyTime
}

// DeployTime returns the ledger creation instant.
func (l *Ledger) DeployTime() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deployTime
}

// Owner returns the identity allowed to mutate the ledger.
func (l *Ledger) Owner() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// UpdateCoindays overwrites user's coin-day record.
func (l *Ledger) UpdateCoindays(caller, user common.Address, amount *big.Int, timestamp uint64, index uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.coindays[user] = Record{
		Amount:    new(big.Int).Set(amount),
		Timestamp: timestamp,
		LastIndex: index,
	}
	return nil
}

// UpdateTotalCoinday overwrites the aggregate coin-day tracker.
func (l *Ledger) UpdateTotalCoinday(caller common.Address, amount *big.Int, timestamp uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.total = Total{Amount: new(big.Int).Set(amount), Timestamp: timestamp}
	return nil
}

// UpdateTotalReward overwrites the cumulative emitted reward.
func (l *Ledger) UpdateTotalReward(caller common.Address, value *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.totalReward = new(big.Int).Set(value)
	return nil
}

// UpdateRewards overwrites user's claimable reward balance.
func (l *Ledger) UpdateRewards(caller, user common.Address, value *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.rewards[user] = new(big.Int).Set(value)
	return nil
}

// AppendAward seals one immutable award at the next index. A zero aggregate
// coin-day total would make the award undistributable, so it is rejected.
func (l *Ledger) AppendAward(caller common.Address, amount, totalCoinday *big.Int, timestamp uint64) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return 0, err
	}
	if totalCoinday == nil || totalCoinday.Sign() <= 0 {
		return 0, ErrZeroTotalCoinday
	}
	l.awards = append(l.awards, Award{
		Amount:       new(big.Int).Set(amount),
		TotalCoinday: new(big.Int).Set(totalCoinday),
		Timestamp:    timestamp,
	})
	return uint32(len(l.awards) - 1), nil
}

// UpdateDailyAward overwrites the decaying per-epoch amount and its grid
// timestamp.
func (l *Ledger) UpdateDailyAward(caller common.Address, amount *big.Int, timestamp uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.dailyAmount = new(big.Int).Set(amount)
	l.dailyTime = timestamp
	return nil
}

// TransferOwnership hands the mutation right to a new owning identity.
func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	l.owner = newOwner
	return nil
}

func (l *Ledger) onlyOwner(caller common.Address) error {
	if caller != l.owner {
		return ErrOnlyOwner
	}
	return nil
}
