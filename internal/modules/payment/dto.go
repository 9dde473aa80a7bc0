package payment

import (
	"time"

	"mealsub/internal/domain"

	"github.com/shopspring/decimal"
)

type SubscriptionDataRequest struct {
	MealIDs      []int64  `json:"meal_ids" binding:"required,min=1"`
	DeliveryDays []string `json:"delivery_days" binding:"required,min=1"`
	StartDate    string   `json:"start_date" binding:"required"`
}

type CreateLinkRequest struct {
	OrderType        string                   `json:"order_type" binding:"required,oneof=subscription cart"`
	OrderID          int64                    `json:"order_id" binding:"required,gt=0"`
	Amount           decimal.Decimal          `json:"amount"`
	Currency         string                   `json:"currency" binding:"required,len=3"`
	Description      string                   `json:"description"`
	Gateway          string                   `json:"gateway"`
	SubscriptionData *SubscriptionDataRequest `json:"subscription_data"`
}

func (r *CreateLinkRequest) snapshot() *domain.SubscriptionSnapshot {
	if r.SubscriptionData == nil {
		return nil
	}
	return &domain.SubscriptionSnapshot{
		MealIDs:      r.SubscriptionData.MealIDs,
		DeliveryDays: r.SubscriptionData.DeliveryDays,
		StartDate:    r.SubscriptionData.StartDate,
	}
}

type CreateLinkResponse struct {
	SessionID   string          `json:"session_id"`
	PaymentLink string          `json:"payment_link"`
	Gateway     string          `json:"gateway"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type SessionStatusResponse struct {
	SessionID      string                      `json:"session_id"`
	OrderType      string                      `json:"order_type"`
	OrderID        int64                       `json:"order_id"`
	Gateway        string                      `json:"gateway"`
	Status         domain.PaymentSessionStatus `json:"status"`
	PaidAt         *time.Time                  `json:"paid_at,omitempty"`
	AlreadySettled bool                        `json:"already_settled,omitempty"`
	TransactionID  int64                       `json:"transaction_id,omitempty"`
	ItemsCreated   int                         `json:"items_created,omitempty"`
	Message        string                      `json:"message,omitempty"`
}

type GatewaysResponse struct {
	Active    string   `json:"active"`
	Available []string `json:"available"`
	Source    string   `json:"source"`
}

// redirectQuery is bound from the provider's return redirect. PayPal sends
// its order id as token.
type redirectQuery struct {
	OrderType   string `form:"order_type" binding:"required"`
	OrderID     int64  `form:"order_id" binding:"required,gt=0"`
	SessionID   string `form:"session_id"`
	Token       string `form:"token"`
	CancelToken string `form:"cancel_token"`
}

func (q redirectQuery) sessionID() string {
	if q.SessionID != "" {
		return q.SessionID
	}
	return q.Token
}
