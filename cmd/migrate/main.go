package main

import (
	"context"
	"flag"
	"os"

	"cartsync/internal/config"
	"cartsync/internal/db"
	"cartsync/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	flag.Parse()

	cfg, err := config.Load()
	logger := config.NewLogger(cfg, os.Stdout, "migrate")
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database(), logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	if *down {
		if err := migrate.Down(ctx, pool); err != nil {
			logger.WithError(err).Fatal("roll back migrations")
		}
		logger.Info("migrations rolled back")
		return
	}

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}
	logger.Info("migrations applied")
}
