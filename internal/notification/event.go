package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Event type constants, also used as routing keys.
const (
	TypePaymentSettled = "payment.settled"
)

// PaymentSettled is published once per successful settlement.
type PaymentSettled struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id"`
	OrderType     string          `json:"order_type"`
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       string          `json:"gateway"`
	TransactionID int64           `json:"transaction_id"`
	ItemsCreated  int             `json:"items_created"`
	SettledAt     time.Time       `json:"settled_at"`
}

func (e PaymentSettled) Encode() ([]byte, error) {
	if e.Type == "" {
		e.Type = TypePaymentSettled
	}
	return json.Marshal(e)
}

// Notifier receives settlement side effects.
type Notifier interface {
	PaymentSettled(ctx context.Context, ev PaymentSettled) error
}

type Nop struct{}

func (Nop) PaymentSettled(context.Context, PaymentSettled) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) PaymentSettled(ctx context.Context, ev PaymentSettled) error {
	var errs []error
	for _, n := range m {
		if err := n.PaymentSettled(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
