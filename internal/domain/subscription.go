package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderActive    OrderStatus = "active"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "pending"
	OrderPaymentPaid    OrderPaymentStatus = "paid"
	OrderPaymentFailed  OrderPaymentStatus = "failed"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemDelivered ItemStatus = "delivered"
	ItemCancelled ItemStatus = "cancelled"
)

// Subscription is a meal plan; its delivery items are created at settlement.
type Subscription struct {
	ID                 int64              `gorm:"primaryKey" json:"id"`
	UserID             int64              `gorm:"index;not null" json:"user_id"`
	RestaurantID       int64              `gorm:"index" json:"restaurant_id"`
	Status             OrderStatus        `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentStatus      OrderPaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"payment_status"`
	PaymentConfirmedAt *time.Time         `json:"payment_confirmed_at"`
	TotalAmount        decimal.Decimal    `gorm:"type:decimal(12,3)" json:"total_amount"`
	Currency           string             `gorm:"type:varchar(3)" json:"currency"`
	StartDate          *time.Time         `json:"start_date,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	Items []SubscriptionItem `json:"items,omitempty" gorm:"foreignKey:SubscriptionID"`
}

func (Subscription) TableName() string { return "subscriptions" }

// SubscriptionItem is one scheduled delivery.
type SubscriptionItem struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	SubscriptionID int64           `gorm:"index;not null" json:"subscription_id"`
	MealID         int64           `gorm:"index;not null" json:"meal_id"`
	DeliveryDate   time.Time       `gorm:"not null;index" json:"delivery_date"`
	DayOfWeek      string          `gorm:"type:varchar(10);not null" json:"day_of_week"`
	Price          decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"price"`
	Status         ItemStatus      `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (SubscriptionItem) TableName() string { return "subscription_items" }

// SubscriptionSnapshot is captured when the payment link is created and
// replayed at settlement to build the delivery items.
type SubscriptionSnapshot struct {
	MealIDs      []int64  `json:"meal_ids" mapstructure:"meal_ids"`
	DeliveryDays []string `json:"delivery_days" mapstructure:"delivery_days"`
	StartDate    string   `json:"start_date" mapstructure:"start_date"`
}

func (s SubscriptionSnapshot) ToMap() map[string]any {
	meals := make([]any, 0, len(s.MealIDs))
	for _, id := range s.MealIDs {
		meals = append(meals, id)
	}
	days := make([]any, 0, len(s.DeliveryDays))
	for _, d := range s.DeliveryDays {
		days = append(days, d)
	}
	return map[string]any{
		"meal_ids":      meals,
		"delivery_days": days,
		"start_date":    s.StartDate,
	}
}
