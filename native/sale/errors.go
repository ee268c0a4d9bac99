package sale

import "errors"

var (
	// ErrNotOwner indicates a non-owner caller invoked an admin operation.
	ErrNotOwner = errors.New("sale: caller is not the owner")

	// ErrSaleNotRunning indicates a purchase while the sale is stopped.
	ErrSaleNotRunning = errors.New("sale: sale is not running")
	// ErrSalePaused indicates the emergency stop is engaged.
	ErrSalePaused = errors.New("sale: sale is paused")
	// ErrAlreadyPaused indicates pause was requested while already paused.
	ErrAlreadyPaused = errors.New("sale: already paused")
	// ErrNotPaused indicates unpause was requested while not paused.
	ErrNotPaused = errors.New("sale: not paused")
	// ErrClaimNotStarted indicates a claim before the claim phase opened.
	ErrClaimNotStarted = errors.New("sale: claim phase has not started")
	// ErrClaimAlreadyStarted indicates a second attempt to open the claim phase.
	ErrClaimAlreadyStarted = errors.New("sale: claim phase already started")
	// ErrCliffNotReached indicates a claim before the token's cliff elapsed.
	ErrCliffNotReached = errors.New("sale: cliff not reached")

	// ErrBelowMinimum indicates the purchase value is under the USD band.
	ErrBelowMinimum = errors.New("sale: purchase value below minimum")
	// ErrAboveMaximum indicates the purchase value is over the USD band.
	ErrAboveMaximum = errors.New("sale: purchase value above maximum")
	// ErrCapExceeded indicates the purchase would exceed the token A cap.
	ErrCapExceeded = errors.New("sale: token A cap exceeded")
	// ErrZeroAddress indicates the zero sentinel was supplied as a token
	// reference.
	ErrZeroAddress = errors.New("sale: zero address supplied")
	// ErrInsufficientPayment indicates the native value sent does not cover
	// the purchase amount.
	ErrInsufficientPayment = errors.New("sale: insufficient native value sent")
	// ErrUnsupportedAsset indicates an unknown stable asset symbol.
	ErrUnsupportedAsset = errors.New("sale: unsupported payment asset")
	// ErrNothingDeposited indicates the participant holds no entitlement.
	ErrNothingDeposited = errors.New("sale: nothing deposited")
	// ErrNothingClaimable indicates no new vesting interval has elapsed.
	ErrNothingClaimable = errors.New("sale: nothing claimable")
	// ErrInsufficientEscrow indicates the claim phase cannot open because the
	// sale account does not hold the full sold amount of a reward token.
	ErrInsufficientEscrow = errors.New("sale: insufficient reward token escrow")

	// ErrInsufficientAllowance indicates the payer has not pre-authorized the
	// required stable asset amount.
	ErrInsufficientAllowance = errors.New("sale: insufficient allowance")
	// ErrTransferFailed indicates the external asset transfer was rejected.
	ErrTransferFailed = errors.New("sale: asset transfer failed")

	// ErrNonPositivePrice indicates the price feed reported a non-positive
	// answer.
	ErrNonPositivePrice = errors.New("sale: non-positive oracle price")
	// ErrStalePrice indicates the feed's latest round exceeded the configured
	// freshness window.
	ErrStalePrice = errors.New("sale: stale oracle price")

	// ErrReentrantCall indicates an external asset callback re-entered the
	// engine during a transfer hook.
	ErrReentrantCall = errors.New("sale: reentrant call")
)
