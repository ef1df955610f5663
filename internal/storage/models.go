package storage

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Reward stream identifiers persisted with every epoch row.
const (
	StreamBlock = "block"
	StreamIssue = "issue"
)

// EpochRecord represents a sealed reward epoch. Amount and TotalCoinday
// are base-unit integers stored as NUMERIC so history stays exact.
type EpochRecord struct {
	Stream       string
	Index        uint32
	Amount       decimal.Decimal
	TotalCoinday decimal.Decimal
	SealedAtMs   int64
	CreatedAt    time.Time
}

// AmountInt returns the epoch amount as a base-unit integer.
func (r EpochRecord) AmountInt() *big.Int {
	return r.Amount.BigInt()
}

// TotalCoindayInt returns the sealed total coinday as an integer.
func (r EpochRecord) TotalCoindayInt() *big.Int {
	return r.TotalCoinday.BigInt()
}

// SnapshotRecord captures a full serialized economy state.
type SnapshotRecord struct {
	ID      int64
	TakenAt time.Time
	State   json.RawMessage
}
