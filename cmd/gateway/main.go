package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cartsync/internal/config"
	"cartsync/internal/db"
	"cartsync/internal/httpserver"
	"cartsync/internal/migrate"
	cartrepo "cartsync/internal/repository/cart"
	productrepo "cartsync/internal/repository/product"
	projectrepo "cartsync/internal/repository/project"
	cartsvc "cartsync/internal/service/cart"
	"cartsync/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg, os.Stdout, "gateway")
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, "cartsync-gateway", cfg.OTLPEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("init telemetry")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("flush traces")
		}
	}()

	dbpool, err := db.Connect(ctx, cfg.Database(), logger)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	projectRepo := projectrepo.NewPostgres(dbpool)
	productRepo := productrepo.NewPostgres(dbpool, logger.WithField("component", "product_repo"))
	cartRepo := cartrepo.NewPostgres(dbpool)
	cartService := cartsvc.New(cartRepo, productRepo)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		ProjectRepo: projectRepo,
		CartSvc:     cartService,
		Token:       cfg.APIToken,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	} else {
		logger.Info("server stopped")
	}
}
