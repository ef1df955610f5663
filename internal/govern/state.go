package govern

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/yangluo1024/store-contracts/internal/coinday"
)

// ProposalState is the serializable form of the active proposal.
type ProposalState struct {
	ID         string `json:"id"`
	Kind       uint8  `json:"kind"`
	LockAmount string `json:"lock_amount"`
	Begin      uint64 `json:"begin"`
	VoteBegin  uint64 `json:"vote_begin"`
	End        uint64 `json:"end"`
	Proposer   string `json:"proposer"`
	Status     uint8  `json:"status"`
	NewK       string `json:"new_k"`
}

// State is the full serializable state of the governance module.
type State struct {
	Owner            string        `json:"owner"`
	Elcaim           string        `json:"elcaim"`
	K                string        `json:"k"`
	ProposalNeeds    string        `json:"proposal_needs"`
	AccountsNeeds    uint32        `json:"accounts_needs"`
	Proposal         ProposalState `json:"proposal"`
	TotalAccounts    uint64        `json:"total_accounts"`
	TotalApprove     string        `json:"total_approve"`
	TotalAgainst     string        `json:"total_against"`
	LastElcaimUpdate uint64        `json:"last_elcaim_update"`
}

// State captures the module for persistence.
func (g *Govern) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Owner:         g.owner.Hex(),
		Elcaim:        g.elcaim.String(),
		K:             g.k.String(),
		ProposalNeeds: g.proposalNeeds.String(),
		AccountsNeeds: g.accountsNeeds,
		Proposal: ProposalState{
			ID:         g.proposal.ID.String(),
			Kind:       uint8(g.proposal.Kind),
			LockAmount: g.proposal.LockAmount.String(),
			Begin:      g.proposal.Begin,
			VoteBegin:  g.proposal.VoteBegin,
			End:        g.proposal.End,
			Proposer:   g.proposal.Proposer.Hex(),
			Status:     uint8(g.proposal.Status),
			NewK:       g.proposal.NewK.String(),
		},
		TotalAccounts:    g.totalAccounts,
		TotalApprove:     g.totalApprove.String(),
		TotalAgainst:     g.totalAgainst.String(),
		LastElcaimUpdate: g.lastElcaimUpdate,
	}
}

// LoadState replaces the module contents with a captured state.
func (g *Govern) LoadState(s State) error {
	elcaim, err := coinday.ParseAmount(s.Elcaim)
	if err != nil {
		return fmt.Errorf("elcaim: %w", err)
	}
	k, err := coinday.ParseAmount(s.K)
	if err != nil {
		return fmt.Errorf("k: %w", err)
	}
	needs, err := coinday.ParseAmount(s.ProposalNeeds)
	if err != nil {
		return fmt.Errorf("proposal needs: %w", err)
	}
	lockAmount, err := coinday.ParseAmount(s.Proposal.LockAmount)
	if err != nil {
		return fmt.Errorf("proposal lock: %w", err)
	}
	newK, err := coinday.ParseAmount(s.Proposal.NewK)
	if err != nil {
		return fmt.Errorf("proposal new k: %w", err)
	}
	approve, err := coinday.ParseAmount(s.TotalApprove)
	if err != nil {
		return fmt.Errorf("approve votes: %w", err)
	}
	against, err := coinday.ParseAmount(s.TotalAgainst)
	if err != nil {
		return fmt.Errorf("against votes: %w", err)
	}
	var id uuid.UUID
	if s.Proposal.ID != "" {
		if id, err = uuid.Parse(s.Proposal.ID); err != nil {
			return fmt.Errorf("proposal id: %w", err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.owner = common.HexToAddress(s.Owner)
	g.elcaim = elcaim
	g.k = k
	g.proposalNeeds = needs
	g.accountsNeeds = s.AccountsNeeds
	g.proposal = Proposal{
		ID:         id,
		Kind:       ProposalKind(s.Proposal.Kind),
		LockAmount: lockAmount,
		Begin:      s.Proposal.Begin,
		VoteBegin:  s.Proposal.VoteBegin,
		End:        s.Proposal.End,
		Proposer:   common.HexToAddress(s.Proposal.Proposer),
		Status:     ProposalStatus(s.Proposal.Status),
		NewK:       newK,
	}
	g.totalAccounts = s.TotalAccounts
	g.totalApprove = approve
	g.totalAgainst = against
	g.lastElcaimUpdate = s.LastElcaimUpdate
	return nil
}
