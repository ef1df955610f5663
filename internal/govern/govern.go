package govern

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/yangluo1024/store-contracts/internal/coinday"
)

var (
	// ErrOnlyOwner signals a gated call from anyone but the module owner.
	ErrOnlyOwner = errors.New("govern: only owner access")

	// ErrProposalAlreadyExist signals an upgrade proposal blocking new ones.
	ErrProposalAlreadyExist = errors.New("govern: proposal already exists")

	// ErrProposalOnVoting signals a proposal submitted during a vote.
	ErrProposalOnVoting = errors.New("govern: proposal is on voting")

	// ErrInsufficientBalance signals a lock or vote beyond the held balance.
	ErrInsufficientBalance = errors.New("govern: insufficient balance")

	// ErrInsufficientAmount signals a lock below the proposal minimum.
	ErrInsufficientAmount = errors.New("govern: lock below proposal minimum")

	// ErrExistHigherLockAmount signals a competing proposal holding a lock
	// at least as high.
	ErrExistHigherLockAmount = errors.New("govern: higher lock amount exists")

	// ErrNonVotingPeriod signals a vote outside the voting window.
	ErrNonVotingPeriod = errors.New("govern: not in voting period")

	// ErrAlreadyVoted signals a second vote from the same account.
	ErrAlreadyVoted = errors.New("govern: already voted")
)

// ElcaimBase is the fixed-point base of the inflation target price.
const ElcaimBase = 100000

// RiskToken is the view of the risk-reserve token the governance module
// needs: voting weight comes from balances and votes are enforced through
// balance locks.
type RiskToken interface {
	BalanceOf(user common.Address) *big.Int
	TotalSupply() *big.Int
	LockInfoOf(user common.Address) (uint64, *big.Int)
	UpdateLockInfos(caller, user common.Address, height uint64, amount *big.Int) error
}

// HeightSource supplies the current chain height; proposal and voting
// windows are measured in blocks.
type HeightSource func() uint64

// ProposalStatus is the lifecycle state of the active proposal.
type ProposalStatus uint8

const (
	StatusNone ProposalStatus = iota
	StatusProposing
	StatusVoting
	StatusPassed
	StatusVetoed
)

// ProposalKind distinguishes what the active proposal would change.
type ProposalKind uint8

const (
	KindNone ProposalKind = iota
	KindUpdateK
	KindUpgrade
)

// Proposal is the single active governance proposal.
type Proposal struct {
	ID         uuid.UUID
	Kind       ProposalKind
	LockAmount *big.Int
	Begin      uint64
	VoteBegin  uint64
	End        uint64
	Proposer   common.Address
	Status     ProposalStatus
	NewK       *big.Int
}

// Options tune the governance module.
type Options struct {
	// ProposalNeeds is the minimum RELP lock to open a proposal.
	ProposalNeeds *big.Int
	// AccountsNeeds is the quorum of distinct voters.
	AccountsNeeds uint32
	// ElcaimWindow is the inflation-target compounding window in ms.
	ElcaimWindow uint64
	// VotingDelay is the length of the proposal and voting windows in
	// blocks.
	VotingDelay uint64
}

// Govern holds the inflation-target price and runs the single-proposal
// voting state machine over RELP balance locks.
type Govern struct {
	mu sync.Mutex

	elcaim        *big.Int
	k             *big.Int
	proposalNeeds *big.Int
	accountsNeeds uint32
	proposal      Proposal
	totalAccounts uint64
	totalApprove  *big.Int
	totalAgainst  *big.Int

	relp             RiskToken
	lastElcaimUpdate uint64
	elcaimWindow     uint64
	votingDelay      uint64

	owner  common.Address
	clock  coinday.Clock
	height HeightSource
}

// New creates the governance module bound to the risk-reserve token. owner
// is both the admin identity and the caller presented on RELP lock updates.
func New(owner common.Address, relp RiskToken, height HeightSource, clock coinday.Clock, opts Options) *Govern {
	if clock == nil {
		clock = coinday.SystemClock
	}
	if opts.ProposalNeeds == nil {
		opts.ProposalNeeds = big.NewInt(100)
	}
	if opts.AccountsNeeds == 0 {
		opts.AccountsNeeds = 100
	}
	if opts.ElcaimWindow == 0 {
		opts.ElcaimWindow = 600 * 1000
	}
	if opts.VotingDelay == 0 {
		opts.VotingDelay = 201600
	}
	return &Govern{
		elcaim:           big.NewInt(ElcaimBase),
		k:                big.NewInt(5),
		proposalNeeds:    new(big.Int).Set(opts.ProposalNeeds),
		accountsNeeds:    opts.AccountsNeeds,
		proposal:         Proposal{LockAmount: new(big.Int), NewK: big.NewInt(5)},
		totalApprove:     new(big.Int),
		totalAgainst:     new(big.Int),
		relp:             relp,
		lastElcaimUpdate: clock(),
		elcaimWindow:     opts.ElcaimWindow,
		votingDelay:      opts.VotingDelay,
		owner:            owner,
		clock:            clock,
		height:           height,
	}
}

// Elcaim returns the inflation-target price, compounding every elapsed
// window by (base+k)/base first.
func (g *Govern) Elcaim() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if now <= g.lastElcaimUpdate {
		return new(big.Int).Set(g.elcaim)
	}
	epochs := (now - g.lastElcaimUpdate) / g.elcaimWindow
	base := big.NewInt(ElcaimBase)
	factor := new(big.Int).Add(base, g.k)
	for i := uint64(0); i < epochs; i++ {
		g.elcaim.Mul(g.elcaim, factor)
		g.elcaim.Quo(g.elcaim, base)
	}
	g.lastElcaimUpdate += epochs * g.elcaimWindow
	return new(big.Int).Set(g.elcaim)
}

// K returns the current anti-inflation factor.
func (g *Govern) K() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.k)
}

// ProposalNeeds returns the minimum lock to open a proposal.
func (g *Govern) ProposalNeeds() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.proposalNeeds)
}

// SetProposalNeeds updates the minimum lock to open a proposal.
func (g *Govern) SetProposalNeeds(caller common.Address, value *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.onlyOwner(caller); err != nil {
		return err
	}
	g.proposalNeeds = new(big.Int).Set(value)
	return nil
}

// AccountsNeeds returns the distinct-voter quorum.
func (g *Govern) AccountsNeeds() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accountsNeeds
}

// SetAccountsNeeds updates the distinct-voter quorum.
func (g *Govern) SetAccountsNeeds(caller common.Address, value uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.onlyOwner(caller); err != nil {
		return err
	}
	g.accountsNeeds = value
	return nil
}

// TotalApproveVote returns the weight voted in favour.
func (g *Govern) TotalApproveVote() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.totalApprove)
}

// TotalAgainstVote returns the weight voted against.
func (g *Govern) TotalAgainstVote() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.totalAgainst)
}

// ActiveProposal returns a copy of the active proposal.
func (g *Govern) ActiveProposal() Proposal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cloneProposal()
}

// ProposeUpdateK opens a proposal to change the anti-inflation factor,
// locking lockAmount of the caller's RELP. A running k-proposal still in its
// proposal period can be displaced only by a strictly higher lock.
func (g *Govern) ProposeUpdateK(caller common.Address, lockAmount, newK *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lockAmount.Cmp(g.proposalNeeds) < 0 {
		return ErrInsufficientAmount
	}
	state := g.refreshStatus()
	if state == StatusVoting {
		return ErrProposalOnVoting
	}
	if g.proposal.Kind == KindUpgrade {
		return ErrProposalAlreadyExist
	}
	if g.proposal.Kind == KindUpdateK && state == StatusProposing && lockAmount.Cmp(g.proposal.LockAmount) <= 0 {
		return ErrExistHigherLockAmount
	}
	if g.relp.BalanceOf(caller).Cmp(lockAmount) < 0 {
		return ErrInsufficientBalance
	}

	h := g.height()
	g.proposal = Proposal{
		ID:         uuid.New(),
		Kind:       KindUpdateK,
		LockAmount: new(big.Int).Set(lockAmount),
		Begin:      h,
		VoteBegin:  h + g.votingDelay,
		End:        h + 2*g.votingDelay,
		Proposer:   caller,
		Status:     StatusProposing,
		NewK:       new(big.Int).Set(newK),
	}
	if err := g.relp.UpdateLockInfos(g.owner, caller, h, lockAmount); err != nil {
		return fmt.Errorf("lock proposer balance: %w", err)
	}
	return nil
}

// Vote casts voteAmount RELP for or against the active proposal; one token
// is one vote and each account votes once per proposal.
func (g *Govern) Vote(caller common.Address, voteAmount *big.Int, approve bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refreshStatus() != StatusVoting {
		return ErrNonVotingPeriod
	}
	if g.relp.BalanceOf(caller).Cmp(voteAmount) < 0 {
		return ErrInsufficientBalance
	}
	lockHeight, lockAmount := g.relp.LockInfoOf(caller)
	if lockHeight > g.proposal.VoteBegin {
		return ErrAlreadyVoted
	}

	h := g.height()
	// 提案者投票时，票数锁定额叠加在提案锁定额之上。
	newLock := new(big.Int).Set(voteAmount)
	if caller == g.proposal.Proposer {
		newLock.Add(newLock, lockAmount)
	}
	if err := g.relp.UpdateLockInfos(g.owner, caller, h, newLock); err != nil {
		return fmt.Errorf("lock voter balance: %w", err)
	}
	if approve {
		g.totalApprove.Add(g.totalApprove, voteAmount)
	} else {
		g.totalAgainst.Add(g.totalAgainst, voteAmount)
	}
	g.totalAccounts++
	return nil
}

// UpdateStatus advances the proposal lifecycle against the current height
// and returns the resulting status; votes are counted when the voting
// window has closed.
func (g *Govern) UpdateStatus() ProposalStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshStatus()
}

// WithdrawLockAmount releases a lock left behind by an earlier proposal.
// Locks placed for the active proposal stay until it ends.
func (g *Govern) WithdrawLockAmount(caller common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	lockHeight, lockAmount := g.relp.LockInfoOf(caller)
	if lockHeight < g.proposal.Begin && lockAmount.Sign() != 0 {
		if err := g.relp.UpdateLockInfos(g.owner, caller, 0, new(big.Int)); err != nil {
			return fmt.Errorf("release stale lock: %w", err)
		}
	}
	return nil
}

// Owner returns the module owner.
func (g *Govern) Owner() common.Address {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}

// TransferOwnership hands the gated entry points to a new owner.
func (g *Govern) TransferOwnership(caller, newOwner common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.onlyOwner(caller); err != nil {
		return err
	}
	g.owner = newOwner
	return nil
}

func (g *Govern) refreshStatus() ProposalStatus {
	if g.proposal.Kind == KindNone {
		return StatusNone
	}
	if g.proposal.Status != StatusProposing && g.proposal.Status != StatusVoting {
		return g.proposal.Status
	}
	h := g.height()
	switch {
	case h < g.proposal.VoteBegin:
		g.proposal.Status = StatusProposing
	case h < g.proposal.End:
		g.proposal.Status = StatusVoting
	default:
		g.proposal.Status = g.countVotes()
	}
	return g.proposal.Status
}

// countVotes settles the finished vote. The proposal passes when
// against²/(approve+against) < approve²/total_supply; a missed quorum or an
// empty vote vetoes it.
func (g *Govern) countVotes() ProposalStatus {
	defer g.cleanVoteInfo()

	if g.totalAccounts < uint64(g.accountsNeeds) {
		return StatusVetoed
	}
	turnout := new(big.Int).Add(g.totalApprove, g.totalAgainst)
	supply := g.relp.TotalSupply()
	if turnout.Sign() == 0 || supply.Sign() == 0 {
		return StatusVetoed
	}
	a := new(big.Int).Mul(g.totalAgainst, g.totalAgainst)
	a.Quo(a, turnout)
	b := new(big.Int).Mul(g.totalApprove, g.totalApprove)
	b.Quo(b, supply)
	if a.Cmp(b) < 0 {
		g.k = new(big.Int).Set(g.proposal.NewK)
		return StatusPassed
	}
	return StatusVetoed
}

func (g *Govern) cleanVoteInfo() {
	g.proposal.Kind = KindNone
	g.totalAccounts = 0
	g.totalApprove = new(big.Int)
	g.totalAgainst = new(big.Int)
}

func (g *Govern) cloneProposal() Proposal {
	p := g.proposal
	p.LockAmount = new(big.Int).Set(g.proposal.LockAmount)
	p.NewK = new(big.Int).Set(g.proposal.NewK)
	return p
}

func (g *Govern) onlyOwner(caller common.Address) error {
	if caller != g.owner {
		return ErrOnlyOwner
	}
	return nil
}
