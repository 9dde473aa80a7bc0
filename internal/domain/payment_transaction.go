package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// PaymentTransaction is the append-only ledger row written by settlement.
type PaymentTransaction struct {
	ID                   int64             `gorm:"primaryKey" json:"id"`
	PaymentSessionID     string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"payment_session_id"`
	ModelType            string            `gorm:"type:varchar(32);not null;index:idx_payment_transactions_model,priority:1" json:"model_type"`
	ModelID              int64             `gorm:"not null;index:idx_payment_transactions_model,priority:2" json:"model_id"`
	Amount               decimal.Decimal   `gorm:"type:decimal(12,3);not null" json:"amount"`
	Currency             string            `gorm:"type:varchar(3);not null" json:"currency"`
	Gateway              string            `gorm:"type:varchar(32);not null" json:"gateway"`
	GatewayTransactionID *string           `gorm:"type:varchar(191)" json:"gateway_transaction_id"`
	Status               TransactionStatus `gorm:"type:varchar(16);not null" json:"status"`
	GatewayResponse      datatypes.JSONMap `json:"gateway_response"`
	CreatedAt            time.Time         `json:"created_at"`

	Session *PaymentSession `json:"-" gorm:"foreignKey:PaymentSessionID;references:ID"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }
