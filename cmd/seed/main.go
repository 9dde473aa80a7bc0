package main

import (
	"context"

	"mealsub/internal/config"
	"mealsub/internal/database"
	"mealsub/internal/gateway"
	"mealsub/internal/pkg/logging"
	"mealsub/internal/repository"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// seed writes the environment gateway definitions into the config store.
// Definitions with incomplete credentials are stored inactive.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logrus.NewEntry(logging.New(cfg.LogLevel, cfg.IsProdLike())).WithField("cmd", "seed")

	db, err := database.Connect(cfg.DatabaseURL, database.Options{}, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate failed")
	}

	ctx := context.Background()
	repo := repository.NewGatewayConfigRepository(db)
	client := gateway.NewHTTPClient(cfg.Payment.HTTPTimeout)
	for _, def := range cfg.Payment.StaticGateways() {
		entry := log.WithField("gateway", def.Name)
		if _, err := gateway.Build(def, client); err != nil {
			entry.WithError(err).Warn("credentials incomplete, storing inactive")
			def.IsActive = false
		}
		if err := repo.Upsert(ctx, &def); err != nil {
			entry.WithError(err).Fatal("upsert failed")
		}
		entry.WithField("active", def.IsActive).Info("gateway config seeded")
	}
}
