package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOrder is a one-off order. Its lines are created at checkout, so
// settlement only flips its status.
type CartOrder struct {
	ID                 int64              `gorm:"primaryKey" json:"id"`
	UserID             int64              `gorm:"index;not null" json:"user_id"`
	RestaurantID       int64              `gorm:"index" json:"restaurant_id"`
	Status             OrderStatus        `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentStatus      OrderPaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"payment_status"`
	PaymentConfirmedAt *time.Time         `json:"payment_confirmed_at"`
	TotalAmount        decimal.Decimal    `gorm:"type:decimal(12,3)" json:"total_amount"`
	Currency           string             `gorm:"type:varchar(3)" json:"currency"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (CartOrder) TableName() string { return "cart_orders" }
