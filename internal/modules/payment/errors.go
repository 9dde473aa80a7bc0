package payment

import "errors"

var (
	ErrSessionNotFound    = errors.New("payment session not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrForbidden          = errors.New("order belongs to another user")
	ErrInvalidCancelToken = errors.New("cancel token does not match a pending session")
	ErrInvalidSnapshot    = errors.New("invalid subscription data")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidCurrency    = errors.New("currency must be a 3 letter code")
	ErrPaymentNotPaid     = errors.New("payment is not confirmed")
	ErrSettlementFailed   = errors.New("payment processing failed, please contact support")
)
