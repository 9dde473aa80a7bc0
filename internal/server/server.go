// Package server wires repositories, services and handlers into the HTTP
// application.
package server

import (
	"net/http"
	"time"

	"mealsub/internal/config"
	"mealsub/internal/gateway"
	"mealsub/internal/middleware"
	"mealsub/internal/modules/admin"
	"mealsub/internal/modules/payment"
	"mealsub/internal/notification"
	"mealsub/internal/pkg/jwt"
	"mealsub/internal/pkg/lock"
	"mealsub/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Gateways *gateway.Registry
	Notifier notification.Notifier
	Locker   lock.Locker
	Log      *logrus.Entry
}

// App holds the built services so binaries can reuse them outside HTTP.
type App struct {
	Payments *payment.Service
	Handler  http.Handler
}

func New(d Deps) *App {
	cfg := d.Config
	sessions := repository.NewPaymentSessionRepository(d.DB)
	transactions := repository.NewPaymentTransactionRepository(d.DB)
	orders := repository.NewOrderRepository(d.DB)
	gatewayConfigs := repository.NewGatewayConfigRepository(d.DB)

	paymentService := payment.NewService(sessions, transactions, orders, d.Gateways, payment.Options{
		AppURL:     cfg.AppURL,
		SessionTTL: cfg.Payment.SessionTTL,
	}, d.Log)
	settlement := payment.NewSettlement(d.DB, d.Notifier, d.Log)
	paymentHandler := payment.NewHandler(paymentService, settlement, payment.HandlerOptions{
		Locker:         d.Locker,
		LockTTL:        cfg.Payment.LockTTL,
		DedupCacheSize: cfg.Payment.DedupCacheSize,
	}, d.Log)

	adminService := admin.NewService(gatewayConfigs, sessions, paymentService, d.Log)
	adminHandler := admin.NewHandler(adminService)

	j := jwt.New(cfg.JWTSecret, cfg.JWTTTL)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.ErrorLogger(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	v1 := r.Group("/api/v1")
	{
		// public
		paymentHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			paymentHandler.RegisterRoutes(protected)
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.JWTAuth(j), middleware.AdminOnly())
		{
			adminHandler.RegisterRoutes(adminGroup)
		}
	}

	return &App{
		Payments: paymentService,
		Handler:  middleware.CORS(cfg.CORS.AllowedOrigins)(r),
	}
}
