package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mealsub/internal/config"
	"mealsub/internal/database"
	"mealsub/internal/gateway"
	"mealsub/internal/notification"
	"mealsub/internal/pkg/lock"
	"mealsub/internal/pkg/logging"
	"mealsub/internal/repository"
	"mealsub/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// @title mealsub payments API
// @version 1.0
// @BasePath /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "mealsub-api"
	app.Usage = "payment sessions and settlement for meal subscriptions"
	app.Version = "1.0.0"
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "Start the HTTP API",
			Action: func(c *cli.Context) error {
				return serve()
			},
		},
		{
			Name:  "migrate",
			Usage: "Create or update the database schema",
			Action: func(c *cli.Context) error {
				cfg, log, err := bootstrap()
				if err != nil {
					return err
				}
				db, err := database.Connect(cfg.DatabaseURL, dbOptions(cfg), log)
				if err != nil {
					return err
				}
				if err := database.Migrate(db); err != nil {
					return err
				}
				log.Info("migrations applied")
				return nil
			},
		},
	}
	app.Action = func(c *cli.Context) error {
		return serve()
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func bootstrap() (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.IsProdLike())
	return cfg, logrus.NewEntry(logger).WithField("env", cfg.AppEnv), nil
}

func dbOptions(cfg *config.Config) database.Options {
	return database.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		Debug:           cfg.DB.Debug,
	}
}

func serve() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL, dbOptions(cfg), log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := gateway.NewLoader(
		repository.NewGatewayConfigRepository(db),
		cfg.Payment.StaticGateways(),
		cfg.Payment.DefaultGateway,
		gateway.NewHTTPClient(cfg.Payment.HTTPTimeout),
		log,
	)
	registry, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	notifier, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	locker := lock.Locker(lock.Nop{})
	if cfg.RedisURL != "" {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedis(client)
		log.Info("redis session lock enabled")
	}

	app := server.New(server.Deps{
		Config:   cfg,
		DB:       db,
		Gateways: registry,
		Notifier: notifier,
		Locker:   locker,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("http server stopped")
	return nil
}

// buildNotifier enables the broker and the ops mailbox when configured.
func buildNotifier(cfg *config.Config, log *logrus.Entry) (notification.Notifier, func()) {
	var (
		out     notification.Multi
		closers []func()
	)
	if cfg.Broker.URL != "" {
		broker, err := notification.NewBroker(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			log.WithError(err).Warn("event broker unavailable, settlement events disabled")
		} else {
			out = append(out, broker)
			closers = append(closers, broker.Close)
		}
	}
	if cfg.Mail.Host != "" && cfg.Mail.OpsTo != "" {
		dialer := notification.NewSMTPDialer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password)
		out = append(out, notification.NewMailer(dialer, cfg.Mail.From, cfg.Mail.OpsTo))
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(out) == 0 {
		return notification.Nop{}, closeAll
	}
	return out, closeAll
}
