package domain

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentSessionStatus string

const (
	SessionPending PaymentSessionStatus = "pending"
	SessionPaid    PaymentSessionStatus = "paid"
	SessionFailed  PaymentSessionStatus = "failed"
	SessionExpired PaymentSessionStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentSessionStatus) IsTerminal() bool {
	return s != SessionPending
}

const (
	// SnapshotKey is the gateway_data entry holding the subscription snapshot.
	SnapshotKey = "subscription_data"
	// CancelTokenKey holds the nonce the cancel redirect must present.
	CancelTokenKey = "cancel_token"
)

// PaymentSession is one attempt to collect money for one order, keyed by the
// gateway's own session id.
type PaymentSession struct {
	ID          string               `gorm:"primaryKey;type:varchar(191)" json:"id"`
	UserID      int64                `gorm:"index;not null" json:"user_id"`
	ModelType   string               `gorm:"type:varchar(32);not null;index:idx_payment_sessions_model,priority:1" json:"model_type"`
	ModelID     int64                `gorm:"not null;index:idx_payment_sessions_model,priority:2" json:"model_id"`
	Gateway     string               `gorm:"type:varchar(32);not null" json:"gateway"`
	Amount      decimal.Decimal      `gorm:"type:decimal(12,3);not null" json:"amount"`
	Currency    string               `gorm:"type:varchar(3);not null" json:"currency"`
	Status      PaymentSessionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentLink string               `gorm:"type:text" json:"payment_link"`
	GatewayData datatypes.JSONMap    `json:"gateway_data"`
	ExpiresAt   time.Time            `gorm:"not null;index" json:"expires_at"`
	PaidAt      *time.Time           `json:"paid_at"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

func (s *PaymentSession) Order() (OrderRef, error) {
	return ParseOrderRef(s.ModelType, s.ModelID)
}

func (s *PaymentSession) IsExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Snapshot decodes the stored subscription_data entry. It returns nil when the
// session carries no snapshot.
func (s *PaymentSession) Snapshot() (*SubscriptionSnapshot, error) {
	raw, ok := s.GatewayData[SnapshotKey]
	if !ok || raw == nil {
		return nil, nil
	}
	var snap SubscriptionSnapshot
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &snap,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return &snap, nil
}

// MergeGatewayData returns a copy of the stored data with extra layered on top.
// The snapshot and cancel token entries are never replaced once set.
func MergeGatewayData(stored, extra map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range extra {
		if k == SnapshotKey || k == CancelTokenKey {
			if _, exists := out[k]; exists {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// CancelToken returns the stored cancel nonce, or "" when the session has none.
func (s *PaymentSession) CancelToken() string {
	tok, _ := s.GatewayData[CancelTokenKey].(string)
	return tok
}
