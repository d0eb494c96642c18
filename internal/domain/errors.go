package domain

import "errors"

var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrConcurrentUpdate         = errors.New("wallet was modified concurrently, retries exhausted")
	ErrInvalidTransfer          = errors.New("invalid transfer")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrDuplicateReference       = errors.New("transaction reference already used")
	ErrOrderNotFound            = errors.New("order not found")
	ErrNotOrderOwner            = errors.New("order belongs to another user")
	ErrAlreadyCharged           = errors.New("order already charged")
	ErrAlreadyRefunded          = errors.New("order already refunded")
	ErrInvalidRefundAmount      = errors.New("refund amount must be positive")
	ErrReversalPartialFailure   = errors.New("some revenue reversals failed")
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")
	ErrConfigNotFound           = errors.New("interest config not found")
	ErrInvalidConfig            = errors.New("invalid interest config")
	ErrAlreadyAccrued           = errors.New("interest already accrued today")
	ErrNotProductDesigner       = errors.New("no product in this order belongs to the designer")
	ErrNotificationNotFound     = errors.New("notification not found")
	ErrOrderNotRefunded         = errors.New("order has not been refunded")
)
