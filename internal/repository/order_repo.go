package repository

import (
	"context"
	"fmt"
	"time"

	"mealsub/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderState is the part of an order the payment flow reads, independent of
// the order kind.
type OrderState struct {
	Ref           domain.OrderRef
	UserID        int64
	Status        domain.OrderStatus
	PaymentStatus domain.OrderPaymentStatus
	TotalAmount   decimal.Decimal
	Currency      string
}

// Settleable reports whether a confirmed payment may still activate the order.
func (o *OrderState) Settleable() bool {
	return o.Status == domain.OrderPending && o.PaymentStatus != domain.OrderPaymentPaid
}

// OrderRepository reads and updates subscriptions and cart orders through an
// OrderRef.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Get(ctx context.Context, ref domain.OrderRef) (*OrderState, error) {
	return r.load(r.db.WithContext(ctx), ref)
}

// GetForUpdate loads the order with a row lock. Dialects without FOR UPDATE
// (sqlite) ignore the clause.
func (r *OrderRepository) GetForUpdate(ctx context.Context, ref domain.OrderRef) (*OrderState, error) {
	return r.load(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ref)
}

func (r *OrderRepository) load(q *gorm.DB, ref domain.OrderRef) (*OrderState, error) {
	switch ref.(type) {
	case domain.SubscriptionRef:
		var s domain.Subscription
		if err := q.Where("id = ?", ref.OrderID()).First(&s).Error; err != nil {
			return nil, err
		}
		return &OrderState{Ref: ref, UserID: s.UserID, Status: s.Status, PaymentStatus: s.PaymentStatus, TotalAmount: s.TotalAmount, Currency: s.Currency}, nil
	case domain.CartRef:
		var o domain.CartOrder
		if err := q.Where("id = ?", ref.OrderID()).First(&o).Error; err != nil {
			return nil, err
		}
		return &OrderState{Ref: ref, UserID: o.UserID, Status: o.Status, PaymentStatus: o.PaymentStatus, TotalAmount: o.TotalAmount, Currency: o.Currency}, nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrInvalidOrderRef, ref)
	}
}

func modelFor(ref domain.OrderRef) (interface{}, error) {
	switch ref.(type) {
	case domain.SubscriptionRef:
		return &domain.Subscription{}, nil
	case domain.CartRef:
		return &domain.CartOrder{}, nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrInvalidOrderRef, ref)
	}
}

// Activate marks a pending, unpaid order as active and paid. It returns false
// when the order was not in a settleable state.
func (r *OrderRepository) Activate(ctx context.Context, ref domain.OrderRef, confirmedAt time.Time) (bool, error) {
	model, err := modelFor(ref)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND status = ? AND payment_status <> ?", ref.OrderID(), domain.OrderPending, domain.OrderPaymentPaid).
		Updates(map[string]interface{}{
			"status":               domain.OrderActive,
			"payment_status":       domain.OrderPaymentPaid,
			"payment_confirmed_at": confirmedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPaymentFailed records a cancelled or failed payment. The order stays
// pending so a new link can be created for it.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, ref domain.OrderRef) error {
	model, err := modelFor(ref)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(model).
		Where("id = ? AND payment_status <> ?", ref.OrderID(), domain.OrderPaymentPaid).
		Update("payment_status", domain.OrderPaymentFailed).Error
}

func (r *OrderRepository) CreateItems(ctx context.Context, items []domain.SubscriptionItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *OrderRepository) ListItems(ctx context.Context, subscriptionID int64) ([]domain.SubscriptionItem, error) {
	var out []domain.SubscriptionItem
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("delivery_date ASC, id ASC").
		Find(&out).Error
	return out, err
}
