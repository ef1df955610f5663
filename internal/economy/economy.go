package economy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yangluo1024/store-contracts/internal/coinday"
	"github.com/yangluo1024/store-contracts/internal/govern"
	"github.com/yangluo1024/store-contracts/internal/token"
)

// Params fixes the economic constants of one deployment.
type Params struct {
	// Owner is the identity holding every gated entry point.
	Owner common.Address
	// EpochInterval is the block-stream emission grid spacing in ms.
	EpochInterval uint64
	// InitialDailyAward seeds the decaying per-epoch ELP emission, in base
	// units.
	InitialDailyAward *big.Int
	// BlockTime is the nominal block spacing in ms; governance windows are
	// measured in blocks derived from it.
	BlockTime uint64
	// ProposalNeeds, AccountsNeeds, ElcaimWindow, VotingDelay tune the
	// governance module; zero values take the module defaults.
	ProposalNeeds *big.Int
	AccountsNeeds uint32
	ElcaimWindow  uint64
	VotingDelay   uint64
}

// Economy wires the whole token economy under one owner and one clock: the
// stable token, the risk-reserve token with its two reward stream ledgers,
// and the governance module.
type Economy struct {
	ELC         *token.ELC
	RELP        *token.RELP
	BlockLedger *coinday.Ledger
	IssueLedger *coinday.Ledger
	Govern      *govern.Govern

	owner     common.Address
	clock     coinday.Clock
	genesis   uint64
	blockTime uint64
}

// New deploys a fresh economy.
func New(params Params, clock coinday.Clock) *Economy {
	if clock == nil {
		clock = coinday.SystemClock
	}
	if params.BlockTime == 0 {
		params.BlockTime = 6000
	}

	e := &Economy{
		owner:     params.Owner,
		clock:     clock,
		genesis:   clock(),
		blockTime: params.BlockTime,
	}
	e.ELC = token.NewELC(params.Owner)
	e.BlockLedger = coinday.NewLedger(params.Owner, params.InitialDailyAward, clock)
	e.IssueLedger = coinday.NewLedger(params.Owner, nil, clock)
	e.RELP = token.NewRELP(params.Owner, e.BlockLedger, e.IssueLedger, e.ELC, params.EpochInterval, clock)
	e.Govern = govern.New(params.Owner, e.RELP, e.Height, clock, govern.Options{
		ProposalNeeds: params.ProposalNeeds,
		AccountsNeeds: params.AccountsNeeds,
		ElcaimWindow:  params.ElcaimWindow,
		VotingDelay:   params.VotingDelay,
	})
	return e
}

// Owner returns the deployment owner.
func (e *Economy) Owner() common.Address { return e.owner }

// Height derives the nominal chain height from elapsed wall time.
func (e *Economy) Height() uint64 {
	now := e.clock()
	if now <= e.genesis {
		return 0
	}
	return (now - e.genesis) / e.blockTime
}

// Snapshot is the full serializable state of a deployment.
type Snapshot struct {
	TakenAt     uint64              `json:"taken_at"`
	Genesis     uint64              `json:"genesis"`
	ELC         token.ELCState      `json:"elc"`
	RELP        token.RELPState     `json:"relp"`
	BlockLedger coinday.LedgerState `json:"block_ledger"`
	IssueLedger coinday.LedgerState `json:"issue_ledger"`
	Govern      govern.State        `json:"govern"`
}

// Snapshot captures the whole economy.
func (e *Economy) Snapshot() Snapshot {
	return Snapshot{
		TakenAt:     e.clock(),
		Genesis:     e.genesis,
		ELC:         e.ELC.State(),
		RELP:        e.RELP.State(),
		BlockLedger: e.BlockLedger.State(),
		IssueLedger: e.IssueLedger.State(),
		Govern:      e.Govern.State(),
	}
}

// Restore replaces the economy state with a captured snapshot.
func (e *Economy) Restore(s Snapshot) error {
	if err := e.ELC.LoadState(s.ELC); err != nil {
		return fmt.Errorf("restore elc: %w", err)
	}
	if err := e.RELP.LoadState(s.RELP); err != nil {
		return fmt.Errorf("restore relp: %w", err)
	}
	if err := e.BlockLedger.LoadState(s.BlockLedger); err != nil {
		return fmt.Errorf("restore block ledger: %w", err)
	}
	if err := e.IssueLedger.LoadState(s.IssueLedger); err != nil {
		return fmt.Errorf("restore issue ledger: %w", err)
	}
	if err := e.Govern.LoadState(s.Govern); err != nil {
		return fmt.Errorf("restore govern: %w", err)
	}
	e.genesis = s.Genesis
	return nil
}

// Status is a point-in-time summary for operators.
type Status struct {
	RELPSupply        *big.Int
	ELCSupply         *big.Int
	BlockAwards       uint32
	IssueAwards       uint32
	BlockTotalCoinday coinday.Total
	IssueTotalCoinday coinday.Total
	BlockTotalReward  *big.Int
	IssueTotalReward  *big.Int
	DailyAward        *big.Int
	Elcaim            *big.Int
	K                 *big.Int
	Height            uint64
}

// Status summarises the live economy.
func (e *Economy) Status() Status {
	daily, _ := e.BlockLedger.DailyAward()
	return Status{
		RELPSupply:        e.RELP.TotalSupply(),
		ELCSupply:         e.ELC.TotalSupply(),
		BlockAwards:       e.BlockLedger.AwardsLength(),
		IssueAwards:       e.IssueLedger.AwardsLength(),
		BlockTotalCoinday: e.BlockLedger.TotalCoinday(),
		IssueTotalCoinday: e.IssueLedger.TotalCoinday(),
		BlockTotalReward:  e.BlockLedger.TotalReward(),
		IssueTotalReward:  e.IssueLedger.TotalReward(),
		DailyAward:        daily,
		Elcaim:            e.Govern.Elcaim(),
		K:                 e.Govern.K(),
		Height:            e.Height(),
	}
}
