package app

import (
	"context"
	"fmt"
	"net/http"

	"cadak-tickets/internal/archive"
	"cadak-tickets/internal/cache"
	"cadak-tickets/internal/config"
	"cadak-tickets/internal/database"
	"cadak-tickets/internal/events"
	"cadak-tickets/internal/handler"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"
	"cadak-tickets/internal/router"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// storeSet groups the persistence ports used by the services.
type storeSet struct {
	Orders  repository.OrderStore
	Tickets repository.TicketStore
	Catalog repository.CatalogRepository
	Access  repository.AccessRepository
	Payouts repository.PayoutRepository
}

// App holds the wired services and the resources they own.
type App struct {
	Catalog   service.CatalogService
	Checkout  service.CheckoutService
	Reconcile service.ReconcileService
	Tickets   service.TicketService
	Access    service.AccessService
	Sellers   service.SellerService
	Payouts   service.PayoutService

	cfg     *config.Config
	closers []func()
	logger  zerolog.Logger
}

// New connects the configured backends and builds the services on top of them.
// Optional backends that fail to start are logged and replaced by their no-op
// or local fallback, except the store, which is required.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	stores, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher := a.newPublisher()
	receipts := a.newReceiptCache(ctx)
	archiver := a.newArchiver(ctx)
	gateway := payment.NewPaystackClient(cfg.Payment, logger)

	a.Catalog = service.NewCatalogService(stores.Catalog, logger)
	a.Checkout = service.NewCheckoutService(stores.Orders, stores.Catalog, gateway, cfg.Payment, logger)
	a.Reconcile = service.NewReconcileService(stores.Orders, stores.Tickets, gateway, receipts, publisher, archiver, logger)
	a.Tickets = service.NewTicketService(stores.Tickets, publisher, logger)
	a.Access = service.NewAccessService(stores.Access, logger)
	a.Sellers = service.NewSellerService(stores.Catalog, stores.Orders, cfg.Payment, logger)
	a.Payouts = service.NewPayoutService(stores.Orders, stores.Payouts, cfg.Payment, cfg.Payout, logger)

	return a, nil
}

// Handler builds the HTTP API over the wired services.
func (a *App) Handler() http.Handler {
	h := router.Handlers{
		Events:   handler.NewEventHandler(a.Catalog, a.logger),
		Checkout: handler.NewCheckoutHandler(a.Checkout, a.cfg.Server.PublicBaseURL, a.cfg.Payment, a.logger),
		Payments: handler.NewPaymentHandler(a.Reconcile, a.logger),
		Tickets:  handler.NewTicketHandler(a.Tickets, a.logger),
		Scanners: handler.NewScannerHandler(a.Access, a.logger),
		Sellers:  handler.NewSellerHandler(a.Sellers, a.logger),
		Payouts:  handler.NewPayoutHandler(a.Payouts, a.logger),
	}

	return router.New(h, router.Options{
		APIKey:         a.cfg.Auth.APIKey,
		RateLimit:      a.cfg.RateLimit,
		MetricsEnabled: a.cfg.Telemetry.MetricsEnabled,
	}, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStores(ctx context.Context) (*storeSet, error) {
	retries := a.cfg.Database.TxMaxRetries

	if a.cfg.Store.Driver == "memory" {
		a.logger.Warn().Msg("using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore(retries, a.logger)
		return &storeSet{
			Orders:  mem.Orders(),
			Tickets: mem.Tickets(),
			Catalog: mem.Catalog(),
			Access:  mem.Access(),
			Payouts: mem.Payouts(),
		}, nil
	}

	pool, err := database.NewPool(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	return &storeSet{
		Orders:  repository.NewOrderRepository(pool, retries, a.logger),
		Tickets: repository.NewTicketRepository(pool, retries, a.logger),
		Catalog: repository.NewCatalogRepository(pool, a.logger),
		Access:  repository.NewAccessRepository(pool, a.logger),
		Payouts: repository.NewPayoutRepository(pool, a.logger),
	}, nil
}

func (a *App) newPublisher() events.Publisher {
	if !a.cfg.Kafka.Enabled {
		a.logger.Info().Msg("kafka disabled, domain events are logged only")
		return events.NewLogPublisher(a.logger)
	}

	publisher := events.NewKafkaPublisher(a.cfg.Kafka, a.logger)
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close kafka publisher")
		}
	})
	return publisher
}

func (a *App) newReceiptCache(ctx context.Context) cache.ReceiptCache {
	if !a.cfg.Redis.Enabled {
		return cache.NopReceiptCache{}
	}

	client, err := cache.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to connect to redis, receipt cache disabled")
		return cache.NopReceiptCache{}
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close redis client")
		}
	})
	return cache.NewRedisReceiptCache(client, a.cfg.Redis.ReceiptTTL, a.logger)
}

func (a *App) newArchiver(ctx context.Context) archive.Archiver {
	var fileArchiver archive.Archiver
	if a.cfg.Archive.Enabled {
		fileArchiver = archive.NewFileArchiver(a.cfg.Archive.Dir, a.logger)
	}

	var s3Archiver archive.Archiver
	if a.cfg.S3.Enabled {
		var err error
		s3Archiver, err = archive.NewS3Archiver(ctx, a.cfg.S3.Bucket, a.cfg.S3.Region, a.logger)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Msg("failed to initialise S3 archiver, falling back to local file system only")
			s3Archiver = nil
		}
	}

	if fileArchiver == nil && s3Archiver == nil {
		return archive.NopArchiver{}
	}
	return archive.NewFallbackArchiver(s3Archiver, fileArchiver, a.cfg.S3.Prefix, s3Archiver != nil, a.logger)
}
