package token

import "errors"

var (
	// ErrOnlyOwner signals a gated call from anyone but the token owner.
	ErrOnlyOwner = errors.New("token: only owner access")

	// ErrInvalidAmount signals a nil, zero, or negative amount where a
	// positive one is required.
	ErrInvalidAmount = errors.New("token: invalid amount")

	// ErrInsufficientBalance signals a spend beyond the held balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientFreeBalance signals a spend that would dip into the
	// governance-locked portion of a balance.
	ErrInsufficientFreeBalance = errors.New("token: insufficient free balance")

	// ErrInsufficientSupply signals a burn beyond the total supply.
	ErrInsufficientSupply = errors.New("token: insufficient supply")

	// ErrInsufficientAllowance signals a delegated spend beyond approval.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrZeroAddress signals a mint to the zero account.
	ErrZeroAddress = errors.New("token: zero address")
)
