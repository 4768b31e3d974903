package main

import (
	"context"
	"flag"
	"os"

	"cartsync/internal/config"
	"cartsync/internal/db"
	productrepo "cartsync/internal/repository/product"
	projectrepo "cartsync/internal/repository/project"
	"cartsync/internal/seed"
)

func main() {
	currency := flag.String("currency", "USD", "currency for a newly created demo project")
	flag.Parse()

	cfg, err := config.Load()
	logger := config.NewLogger(cfg, os.Stdout, "seed")
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database(), logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	project, err := seed.Apply(ctx, projectrepo.NewPostgres(pool), productrepo.NewPostgres(pool, logger), *currency, logger)
	if err != nil {
		logger.WithError(err).Fatal("seed apply")
	}

	logger.WithField("project", project.Key).Info("seed applied")
}
