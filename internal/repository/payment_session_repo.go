package repository

import (
	"context"
	"time"

	"mealsub/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentSessionRepository struct {
	db *gorm.DB
}

func NewPaymentSessionRepository(db *gorm.DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

// SessionUpdate is applied to a session that is still pending.
type SessionUpdate struct {
	Status      domain.PaymentSessionStatus
	GatewayData datatypes.JSONMap
	PaidAt      *time.Time
}

func (r *PaymentSessionRepository) Create(ctx context.Context, s *domain.PaymentSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *PaymentSessionRepository) GetByID(ctx context.Context, id string) (*domain.PaymentSession, error) {
	var s domain.PaymentSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestForOrder returns the newest session for the order. When statuses are
// given only sessions in one of them are considered.
func (r *PaymentSessionRepository) LatestForOrder(ctx context.Context, ref domain.OrderRef, statuses ...domain.PaymentSessionStatus) (*domain.PaymentSession, error) {
	q := r.db.WithContext(ctx).
		Where("model_type = ? AND model_id = ?", string(ref.Kind()), ref.OrderID())
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var s domain.PaymentSession
	if err := q.Order("created_at DESC").First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PaymentSessionRepository) ListForOrder(ctx context.Context, ref domain.OrderRef) ([]domain.PaymentSession, error) {
	var out []domain.PaymentSession
	err := r.db.WithContext(ctx).
		Where("model_type = ? AND model_id = ?", string(ref.Kind()), ref.OrderID()).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// UpdatePending writes upd only if the row is still pending. The returned flag
// is false when another writer already moved the session on.
func (r *PaymentSessionRepository) UpdatePending(ctx context.Context, id string, upd SessionUpdate) (bool, error) {
	updates := map[string]interface{}{
		"status": upd.Status,
	}
	if upd.GatewayData != nil {
		updates["gateway_data"] = upd.GatewayData
	}
	if upd.PaidAt != nil {
		updates["paid_at"] = *upd.PaidAt
	}
	res := r.db.WithContext(ctx).
		Model(&domain.PaymentSession{}).
		Where("id = ? AND status = ?", id, domain.SessionPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireStale moves every pending session past its deadline to expired.
func (r *PaymentSessionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.PaymentSession{}).
		Where("status = ? AND expires_at < ?", domain.SessionPending, now).
		Update("status", domain.SessionExpired)
	return res.RowsAffected, res.Error
}

// CountByStatus returns the number of sessions per status.
func (r *PaymentSessionRepository) CountByStatus(ctx context.Context) (map[domain.PaymentSessionStatus]int64, error) {
	var rows []struct {
		Status domain.PaymentSessionStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.PaymentSession{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.PaymentSessionStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
