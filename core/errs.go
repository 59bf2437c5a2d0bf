package core

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid trade amount")
	ErrInvalidPrice         = errors.New("invalid reference price")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrPriceUnavailable     = errors.New("price unavailable")
)
