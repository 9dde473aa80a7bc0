package admin

import "time"

type UpsertGatewayRequest struct {
	DisplayName string         `json:"display_name" binding:"max=100"`
	IsActive    bool           `json:"is_active"`
	Mode        string         `json:"mode" binding:"omitempty,oneof=sandbox live"`
	SortOrder   int            `json:"sort_order"`
	Credentials map[string]any `json:"credentials" binding:"required"`
}

// GatewayConfigView is a stored gateway definition with secrets masked.
type GatewayConfigView struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	IsActive    bool              `json:"is_active"`
	Mode        string            `json:"mode"`
	SortOrder   int               `json:"sort_order"`
	Credentials map[string]string `json:"credentials"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type PaymentStats struct {
	Sessions map[string]int64 `json:"sessions"`
	Total    int64            `json:"total"`
}
