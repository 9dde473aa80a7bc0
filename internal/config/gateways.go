package config

import (
	"mealsub/internal/domain"

	"gorm.io/datatypes"
)

func isKnownGateway(name string) bool {
	for _, g := range domain.KnownGateways {
		if g == name {
			return true
		}
	}
	return false
}

// StaticGateways returns the environment defined gateways in fallback order.
// Incomplete credentials are kept as-is; the registry decides what is usable.
func (p Payment) StaticGateways() []domain.PaymentGatewayConfig {
	out := []domain.PaymentGatewayConfig{
		{
			Name:        domain.GatewayStripe,
			DisplayName: "Stripe",
			IsActive:    true,
			Mode:        ModeLive,
			SortOrder:   1,
			Credentials: credentials(map[string]string{
				"public_key": p.Stripe.PublicKey,
				"secret_key": p.Stripe.SecretKey,
				"base_url":   p.Stripe.BaseURL,
			}),
		},
		{
			Name:        domain.GatewayPayPal,
			DisplayName: "PayPal",
			IsActive:    true,
			Mode:        p.PayPal.Mode,
			SortOrder:   2,
			Credentials: credentials(map[string]string{
				"client_id":     p.PayPal.ClientID,
				"client_secret": p.PayPal.ClientSecret,
				"base_url":      p.PayPal.BaseURL,
			}),
		},
		{
			Name:        domain.GatewayThawani,
			DisplayName: "Thawani",
			IsActive:    true,
			Mode:        p.Thawani.Mode,
			SortOrder:   3,
			Credentials: credentials(map[string]string{
				"secret_key":      p.Thawani.SecretKey,
				"publishable_key": p.Thawani.PublishableKey,
				"base_url":        p.Thawani.BaseURL,
			}),
		},
	}
	if p.Mock.Enabled {
		out = append(out, domain.PaymentGatewayConfig{
			Name:        domain.GatewayMock,
			DisplayName: "Test payments",
			IsActive:    true,
			Mode:        ModeSandbox,
			SortOrder:   99,
			Credentials: datatypes.JSONMap{},
		})
	}
	return out
}

func credentials(in map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
