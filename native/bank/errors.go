package bank

import "errors"

var (
	ErrAmountInvalid         = errors.New("bank: amount must be a non-negative integer")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrUnknownToken          = errors.New("bank: token not registered")
	ErrTokenExists           = errors.New("bank: token already registered")
	ErrBalanceOverflow       = errors.New("bank: balance overflow")
)
