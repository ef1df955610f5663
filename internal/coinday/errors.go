package coinday

import "errors"

var (
	// ErrOnlyOwner signals a mutating ledger call from anyone but the
	// registered owner.
	ErrOnlyOwner = errors.New("coinday: only owner access")

	// ErrOutOfRange signals an award index at or beyond the ledger length.
	ErrOutOfRange = errors.New("coinday: award index out of range")

	// ErrNeedLiquidate signals that an account's backlog exceeds the inline
	// settling bound and must be worked off through Liquidate first.
	ErrNeedLiquidate = errors.New("coinday: backlog exceeds inline bound, liquidate first")

	// ErrNoBacklog signals a manual liquidation with nothing to collect.
	ErrNoBacklog = errors.New("coinday: no uncollected awards")

	// ErrIntervalTooShort signals an emission attempt before one full epoch
	// interval has elapsed.
	ErrIntervalTooShort = errors.New("coinday: emission interval not yet elapsed")

	// ErrZeroTotalCoinday signals an attempt to seal or consume an award
	// whose aggregate coin-day total is zero. A sealed award can never carry
	// a zero total, so hitting this on read means a prior invariant breach.
	ErrZeroTotalCoinday = errors.New("coinday: zero total coinday")

	// ErrZeroBalance signals a coin-day decrease computed against a zero
	// balance. The caller's own balance check must rule this out, so it is
	// an invariant breach, not an input error.
	ErrZeroBalance = errors.New("coinday: decrease against zero balance")
)
