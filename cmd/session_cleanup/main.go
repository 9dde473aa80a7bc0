package main

import (
	"context"
	"time"

	"mealsub/internal/config"
	"mealsub/internal/database"
	"mealsub/internal/pkg/logging"
	"mealsub/internal/repository"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logrus.NewEntry(logging.New(cfg.LogLevel, cfg.IsProdLike())).WithField("cmd", "session_cleanup")

	db, err := database.Connect(cfg.DatabaseURL, database.Options{}, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := repository.NewPaymentSessionRepository(db).ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).Fatal("expire stale sessions failed")
	}
	log.WithField("expired", n).Info("session cleanup completed")
}
