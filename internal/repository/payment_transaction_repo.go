package repository

import (
	"context"

	"mealsub/internal/domain"

	"gorm.io/gorm"
)

// PaymentTransactionRepository is append-only; rows are never updated.
type PaymentTransactionRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionRepository(db *gorm.DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

func (r *PaymentTransactionRepository) Create(ctx context.Context, t *domain.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *PaymentTransactionRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.PaymentTransaction, error) {
	var out []domain.PaymentTransaction
	err := r.db.WithContext(ctx).Where("payment_session_id = ?", sessionID).Order("id DESC").Find(&out).Error
	return out, err
}

func (r *PaymentTransactionRepository) ListForOrder(ctx context.Context, ref domain.OrderRef) ([]domain.PaymentTransaction, error) {
	var out []domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("model_type = ? AND model_id = ?", string(ref.Kind()), ref.OrderID()).
		Order("id DESC").
		Find(&out).Error
	return out, err
}
