package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yangluo1024/store-contracts/internal/coinday"
)

// LockState is the serializable form of a governance lock.
type LockState struct {
	Height uint64 `json:"height"`
	Amount string `json:"amount"`
}

// ELCState is the serializable state of the stable token.
type ELCState struct {
	Owner       string            `json:"owner"`
	TotalSupply string            `json:"total_supply"`
	Balances    map[string]string `json:"balances"`
	Allowances  map[string]string `json:"allowances"`
}

// RELPState is the serializable state of the risk-reserve token. Stream
// ledger state is captured separately by the ledgers themselves.
type RELPState struct {
	Owner       string               `json:"owner"`
	TotalSupply string               `json:"total_supply"`
	Balances    map[string]string    `json:"balances"`
	Allowances  map[string]string    `json:"allowances"`
	Locks       map[string]LockState `json:"locks"`
}

// State captures the stable token for persistence.
func (t *ELC) State() ELCState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ELCState{
		Owner:       t.owner.Hex(),
		TotalSupply: t.totalSupply.String(),
		Balances:    balancesToState(t.balances),
		Allowances:  allowancesToState(t.allowances),
	}
}

// LoadState replaces the stable token contents with a captured state.
func (t *ELC) LoadState(s ELCState) error {
	supply, err := coinday.ParseAmount(s.TotalSupply)
	if err != nil {
		return fmt.Errorf("elc supply: %w", err)
	}
	balances, err := balancesFromState(s.Balances)
	if err != nil {
		return fmt.Errorf("elc balances: %w", err)
	}
	allowances, err := allowancesFromState(s.Allowances)
	if err != nil {
		return fmt.Errorf("elc allowances: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = common.HexToAddress(s.Owner)
	t.totalSupply = supply
	t.balances = balances
	t.allowances = allowances
	return nil
}

// State captures the risk-reserve token for persistence.
func (r *RELP) State() RELPState {
	r.mu.Lock()
	defer r.mu.Unlock()
	locks := make(map[string]LockState, len(r.lockInfos))
	for addr, info := range r.lockInfos {
		locks[addr.Hex()] = LockState{Height: info.Height, Amount: info.Amount.String()}
	}
	return RELPState{
		Owner:       r.owner.Hex(),
		TotalSupply: r.totalSupply.String(),
		Balances:    balancesToState(r.balances),
		Allowances:  allowancesToState(r.allowances),
		Locks:       locks,
	}
}

// LoadState replaces the risk-reserve token contents with a captured state.
func (r *RELP) LoadState(s RELPState) error {
	supply, err := coinday.ParseAmount(s.TotalSupply)
	if err != nil {
		return fmt.Errorf("relp supply: %w", err)
	}
	balances, err := balancesFromState(s.Balances)
	if err != nil {
		return fmt.Errorf("relp balances: %w", err)
	}
	allowances, err := allowancesFromState(s.Allowances)
	if err != nil {
		return fmt.Errorf("relp allowances: %w", err)
	}
	locks := make(map[common.Address]LockInfo, len(s.Locks))
	for addr, lock := range s.Locks {
		amt, err := coinday.ParseAmount(lock.Amount)
		if err != nil {
			return fmt.Errorf("relp lock of %s: %w", addr, err)
		}
		locks[common.HexToAddress(addr)] = LockInfo{Height: lock.Height, Amount: amt}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = common.HexToAddress(s.Owner)
	r.totalSupply = supply
	r.balances = balances
	r.allowances = allowances
	r.lockInfos = locks
	return nil
}

func balancesToState(balances map[common.Address]*big.Int) map[string]string {
	out := make(map[string]string, len(balances))
	for addr, amt := range balances {
		out[addr.Hex()] = amt.String()
	}
	return out
}

func balancesFromState(state map[string]string) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(state))
	for addr, raw := range state {
		amt, err := coinday.ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", addr, err)
		}
		out[common.HexToAddress(addr)] = amt
	}
	return out, nil
}

func allowancesToState(allowances map[allowanceKey]*big.Int) map[string]string {
	out := make(map[string]string, len(allowances))
	for key, amt := range allowances {
		out[key.owner.Hex()+":"+key.spender.Hex()] = amt.String()
	}
	return out
}

func allowancesFromState(state map[string]string) (map[allowanceKey]*big.Int, error) {
	out := make(map[allowanceKey]*big.Int, len(state))
	for key, raw := range state {
		parts := strings.SplitN(key, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid allowance key %q", key)
		}
		amt, err := coinday.ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("allowance %s: %w", key, err)
		}
		out[allowanceKey{common.HexToAddress(parts[0]), common.HexToAddress(parts[1])}] = amt
	}
	return out, nil
}
