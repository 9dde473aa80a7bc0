// Package gateway holds the payment provider adapters and the registry that
// selects which of them are usable.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mealsub/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNoActiveGateway    = errors.New("no payment gateway is configured")
	ErrGatewayNotLoaded   = errors.New("payment gateway is not loaded")
	ErrUnknownGateway     = errors.New("unknown payment gateway")
	ErrMissingCredentials = errors.New("missing gateway credentials")
)

// Gateway is implemented by every payment provider adapter.
type Gateway interface {
	Name() string
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error)
	// ValidatePayment never fails; upstream problems come back as a failed
	// Validation carrying an ErrorMessage. Retryable is set when the provider
	// gave no answer of its own.
	ValidatePayment(ctx context.Context, sessionID string) Validation
}

// Metadata identifies the order a link pays for. Adapters forward it as
// provider metadata or custom fields.
type Metadata struct {
	OrderType string
	OrderID   int64
	UserID    int64
}

func (m Metadata) asStrings() map[string]string {
	return map[string]string{
		"order_type": m.OrderType,
		"order_id":   fmt.Sprintf("%d", m.OrderID),
		"user_id":    fmt.Sprintf("%d", m.UserID),
	}
}

type LinkRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    Metadata
}

type Link struct {
	URL         string
	SessionID   string
	GatewayData map[string]any
	Gateway     string
}

type Validation struct {
	Valid        bool
	Status       domain.PaymentSessionStatus
	GatewayData  map[string]any
	ErrorMessage string
	Retryable    bool
}

func failedValidation(err error) Validation {
	v := declinedValidation(err.Error())
	v.Retryable = isRetryable(err)
	return v
}

func declinedValidation(msg string) Validation {
	return Validation{Valid: false, Status: domain.SessionFailed, GatewayData: map[string]any{}, ErrorMessage: msg}
}

// isRetryable reports whether err leaves the payment outcome undecided:
// transport failures, 5xx, rate limiting and our own auth problems. Other
// 4xx answers are the provider's decision.
func isRetryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return true
	}
	switch code := pe.StatusCode; {
	case code == 0, code >= 500:
		return true
	case code == http.StatusUnauthorized, code == http.StatusForbidden,
		code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400:
		return false
	default:
		return true
	}
}

func validationFor(status domain.PaymentSessionStatus, data map[string]any) Validation {
	return Validation{Valid: status == domain.SessionPaid, Status: status, GatewayData: data}
}

// ProviderError wraps a failed call to a provider API.
type ProviderError struct {
	Gateway    string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Gateway, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MissingCredentialsError names the credential fields a gateway config lacks.
type MissingCredentialsError struct {
	Gateway string
	Fields  []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("%s: missing credentials %v", e.Gateway, e.Fields)
}

func (e *MissingCredentialsError) Unwrap() error { return ErrMissingCredentials }
