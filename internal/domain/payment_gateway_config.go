package domain

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentGatewayConfig is the persisted gateway definition read by the
// gateway registry. Credentials hold provider specific keys.
type PaymentGatewayConfig struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:varchar(32);not null;uniqueIndex" json:"name"`
	DisplayName string            `gorm:"type:varchar(100)" json:"display_name"`
	IsActive    bool              `gorm:"not null;default:false;index" json:"is_active"`
	Mode        string            `gorm:"type:varchar(16);not null;default:'sandbox'" json:"mode"`
	Credentials datatypes.JSONMap `json:"-"`
	SortOrder   int               `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (PaymentGatewayConfig) TableName() string { return "payment_gateway_configs" }

const (
	GatewayStripe  = "stripe"
	GatewayPayPal  = "paypal"
	GatewayThawani = "thawani"
	GatewayMock    = "mock"
)

// KnownGateways lists every gateway name an adapter exists for.
var KnownGateways = []string{GatewayStripe, GatewayPayPal, GatewayThawani, GatewayMock}
