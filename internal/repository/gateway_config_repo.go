package repository

import (
	"context"

	"mealsub/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GatewayConfigRepository struct {
	db *gorm.DB
}

func NewGatewayConfigRepository(db *gorm.DB) *GatewayConfigRepository {
	return &GatewayConfigRepository{db: db}
}

// ListActive returns active gateways in display order.
func (r *GatewayConfigRepository) ListActive(ctx context.Context) ([]domain.PaymentGatewayConfig, error) {
	var out []domain.PaymentGatewayConfig
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *GatewayConfigRepository) List(ctx context.Context) ([]domain.PaymentGatewayConfig, error) {
	var out []domain.PaymentGatewayConfig
	err := r.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&out).Error
	return out, err
}

// Upsert inserts the config or replaces the row with the same name.
func (r *GatewayConfigRepository) Upsert(ctx context.Context, cfg *domain.PaymentGatewayConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "is_active", "mode", "credentials", "sort_order", "updated_at"}),
	}).Create(cfg).Error
}
