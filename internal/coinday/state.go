package coinday

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RecordState is the serializable form of a coin-day record.
type RecordState struct {
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	LastIndex uint32 `json:"last_index"`
}

// AwardState is the serializable form of a sealed award.
type AwardState struct {
	Amount       string `json:"amount"`
	TotalCoinday string `json:"total_coinday"`
	Timestamp    uint64 `json:"timestamp"`
}

// LedgerState is the full serializable state of one stream ledger. Amounts
// are decimal strings so the snapshot survives JSON round-trips exactly.
type LedgerState struct {
	Owner          string                 `json:"owner"`
	TotalReward    string                 `json:"total_reward"`
	Rewards        map[string]string      `json:"rewards"`
	TotalCoinday   string                 `json:"total_coinday"`
	TotalTimestamp uint64                 `json:"total_timestamp"`
	Coindays       map[string]RecordState `json:"coindays"`
	Awards         []AwardState           `json:"awards"`
	DailyAmount    string                 `json:"daily_amount"`
	DailyTimestamp uint64                 `json:"daily_timestamp"`
	DeployTime     uint64                 `json:"deploy_time"`
}

// State captures the ledger for persistence.
func (l *Ledger) State() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	rewards := make(map[string]string, len(l.rewards))
	for addr, amt := range l.rewards {
		rewards[addr.Hex()] = amt.String()
	}
	coindays := make(map[string]RecordState, len(l.coindays))
	for addr, rec := range l.coindays {
		coindays[addr.Hex()] = RecordState{
			Amount:    rec.Amount.String(),
			Timestamp: rec.Timestamp,
			LastIndex: rec.LastIndex,
		}
	}
	awards := make([]AwardState, len(l.awards))
	for i, a := range l.awards {
		awards[i] = AwardState{
			Amount:       a.Amount.String(),
			TotalCoinday: a.TotalCoinday.String(),
			Timestamp:    a.Timestamp,
		}
	}
	return LedgerState{
		Owner:          l.owner.Hex(),
		TotalReward:    l.totalReward.String(),
		Rewards:        rewards,
		TotalCoinday:   l.total.Amount.String(),
		TotalTimestamp: l.total.Timestamp,
		Coindays:       coindays,
		Awards:         awards,
		DailyAmount:    l.dailyAmount.String(),
		DailyTimestamp: l.dailyTime,
		DeployTime:     l.deployTime,
	}
}

// LoadState replaces the ledger contents with a previously captured state.
func (l *Ledger) LoadState(s LedgerState) error {
	totalReward, err := ParseAmount(s.TotalReward)
	if err != nil {
		return fmt.Errorf("total reward: %w", err)
	}
	totalCoinday, err := ParseAmount(s.TotalCoinday)
	if err != nil {
		return fmt.Errorf("total coinday: %w", err)
	}
	dailyAmount, err := ParseAmount(s.DailyAmount)
	if err != nil {
		return fmt.Errorf("daily amount: %w", err)
	}

	rewards := make(map[common.Address]*big.Int, len(s.Rewards))
	for addr, raw := range s.Rewards {
		amt, err := ParseAmount(raw)
		if err != nil {
			return fmt.Errorf("reward of %s: %w", addr, err)
		}
		rewards[common.HexToAddress(addr)] = amt
	}
	coindays := make(map[common.Address]Record, len(s.Coindays))
	for addr, rec := range s.Coindays {
		amt, err := ParseAmount(rec.Amount)
		if err != nil {
			return fmt.Errorf("coinday of %s: %w", addr, err)
		}
		coindays[common.HexToAddress(addr)] = Record{
			Amount:    amt,
			Timestamp: rec.Timestamp,
			LastIndex: rec.LastIndex,
		}
	}
	awards := make([]Award, len(s.Awards))
	for i, a := range s.Awards {
		amt, err := ParseAmount(a.Amount)
		if err != nil {
			return fmt.Errorf("award %d amount: %w", i, err)
		}
		total, err := ParseAmount(a.TotalCoinday)
		if err != nil {
			return fmt.Errorf("award %d total: %w", i, err)
		}
		awards[i] = Award{Amount: amt, TotalCoinday: total, Timestamp: a.Timestamp}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.owner = common.HexToAddress(s.Owner)
	l.totalReward = totalReward
	l.rewards = rewards
	l.total = Total{Amount: totalCoinday, Timestamp: s.TotalTimestamp}
	l.coindays = coindays
	l.awards = awards
	l.dailyAmount = dailyAmount
	l.dailyTime = s.DailyTimestamp
	l.deployTime = s.DeployTime
	return nil
}

// ParseAmount parses a non-negative base-10 amount string.
func ParseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	amt, ok := new(big.Int).SetString(raw, 10)
	if !ok || amt.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amt, nil
}
