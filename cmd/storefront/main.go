package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cartsync/internal/config"
	"cartsync/internal/crosstab"
	"cartsync/internal/gateway"
	"cartsync/internal/seed"
	"cartsync/internal/store"
	"cartsync/internal/telemetry"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	currency := flag.String("currency", "USD", "currency of the in-memory demo catalog")
	openOnAdd := flag.Bool("open-on-add", true, "open the overview after a successful add")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	logger := config.NewLogger(cfg, os.Stderr, "storefront")
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "cartsync-storefront", cfg.OTLPEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("init telemetry")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	gateways, err := newGatewayFactory(cfg, *currency, logger)
	if err != nil {
		logger.WithError(err).Fatal("init gateway")
	}
	channels, closeChannels := newChannelFactory(cfg, logger)
	defer closeChannels()

	markerKey := cfg.MarkerKey
	if markerKey == "" {
		markerKey = crosstab.MarkerKey(cfg.SessionID)
	}

	r := &repl{
		in:        os.Stdin,
		out:       os.Stdout,
		logger:    logger,
		gateways:  gateways,
		channels:  channels,
		markerKey: markerKey,
		queueSize: cfg.EventQueueSize,
		openOnAdd: *openOnAdd,
	}
	logger.WithFields(logrus.Fields{"session": cfg.SessionID, "gateway": cfg.GatewayURL}).Info("storefront ready")
	if err := r.run(ctx); err != nil {
		logger.WithError(err).Fatal("storefront stopped")
	}
}

// newGatewayFactory returns a constructor for per-context gateways. All
// contexts of one process share the session.
func newGatewayFactory(cfg config.Config, currency string, logger logrus.FieldLogger) (func() store.Gateway, error) {
	if cfg.GatewayURL == config.MemoryGatewayURL {
		backend := gateway.NewMemoryBackend(currency, seed.Catalog(currency)...)
		return func() store.Gateway { return backend.Session(cfg.SessionID) }, nil
	}
	client, err := gateway.NewHTTPClient(gateway.HTTPConfig{
		BaseURL:    cfg.GatewayURL,
		ProjectKey: cfg.ProjectKey,
		SessionID:  cfg.SessionID,
		Token:      cfg.APIToken,
		Timeout:    cfg.GatewayTimeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "http gateway")
	}
	return func() store.Gateway { return client }, nil
}

// newChannelFactory picks Redis pub/sub when REDIS_ADDR is set so separate
// processes see each other, and an in-process hub otherwise.
func newChannelFactory(cfg config.Config, logger logrus.FieldLogger) (func() crosstab.Channel, func()) {
	if cfg.RedisAddr == "" {
		hub := crosstab.NewHub()
		return func() crosstab.Channel { return hub.Open() }, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	client.AddHook(redisotel.NewTracingHook())
	return func() crosstab.Channel { return crosstab.NewRedis(client, logger) }, func() { _ = client.Close() }
}
