package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kart-ledger/internal/config"
	"kart-ledger/internal/coupon"
	"kart-ledger/internal/database"
	"kart-ledger/internal/handler"
	"kart-ledger/internal/notify"
	"kart-ledger/internal/points"
	"kart-ledger/internal/repository"
	"kart-ledger/internal/repository/memory"
	"kart-ledger/internal/router"
	"kart-ledger/internal/service"
	"kart-ledger/internal/stock"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// repositories is the storage the services are built on.
type repositories struct {
	products  repository.ProductRepository
	orders    repository.OrderRepository
	discounts repository.DiscountRepository
	users     repository.UserRepository
	grants    repository.GrantRepository
	returns   repository.ReturnRepository
	sequencer repository.Sequencer
	close     func()
}

func run() error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("store", cfg.Database.Driver).Msg("starting kart-ledger API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	if cfg.Redis.URL != "" {
		redisSeq, err := repository.NewRedisSequencer(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize order sequence: %w", err)
		}
		defer redisSeq.Close()
		repos.sequencer = redisSeq
		logger.Info().Msg("using redis for order numbers")
	}

	// Initialize discount code loader with S3 and local fallback
	fileLoader := coupon.NewFileLoader(logger)
	var s3Loader coupon.Loader
	if cfg.S3.Enabled {
		s3Loader, err = coupon.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
			s3Loader = nil
		}
	} else {
		logger.Info().Msg("using local file system for discount batches (S3 disabled)")
	}
	discountLoader := coupon.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)

	sender, err := notify.NewSender(notify.Config{
		Provider: cfg.Notify.Provider,
		APIKey:   cfg.Notify.APIKey,
		From:     cfg.Notify.From,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	notifier := notify.NewNotifier(sender, logger)

	// Initialize ledgers
	stockLedger := stock.NewLedger(repos.products, logger)
	pointsLedger := points.NewLedger(repos.users, repos.grants, points.Config{
		GrantDelay:   cfg.Loyalty.GrantDelay(),
		ReviewPoints: int64(cfg.Loyalty.ReviewGrantPoints),
	}, logger)
	discountValidator := coupon.NewValidator(repos.discounts, repos.orders, logger)
	importer := coupon.NewImporter(discountLoader, repos.discounts, logger)
	numbers := service.NewOrderNumbers(repos.sequencer, repos.orders)

	// Initialize services
	productService := service.NewProductService(repos.products, logger)
	orderService := service.NewOrderService(
		repos.orders, repos.products, repos.users,
		stockLedger, discountValidator, pointsLedger, numbers, notifier, logger,
	)
	returnService := service.NewReturnService(repos.returns, repos.orders, repos.users, pointsLedger, notifier, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
		Return:   handler.NewReturnHandler(returnService, logger),
		Points:   handler.NewPointsHandler(pointsLedger, logger),
		Cron:     handler.NewCronHandler(pointsLedger, logger),
		Discount: handler.NewDiscountHandler(importer, logger),
	}, []byte(cfg.Auth.IdentityJWTSecret), cfg.Auth.CronSecret, logger)

	if cfg.Auth.CronSecret == "" {
		logger.Warn().Msg("CRON_SECRET is not set, scheduled points crediting is disabled")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// openRepositories builds the store selected by STORE_DRIVER. PostgreSQL
// schemas are migrated on start.
func openRepositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repositories, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		store := memory.New()
		return &repositories{
			products:  store.Products(),
			orders:    store.Orders(),
			discounts: store.Discounts(),
			users:     store.Users(),
			grants:    store.Grants(),
			returns:   store.Returns(),
			sequencer: store.Sequencer(),
			close:     func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &repositories{
		products:  repository.NewProductRepository(pool, logger),
		orders:    repository.NewOrderRepository(pool, logger),
		discounts: repository.NewDiscountRepository(pool, logger),
		users:     repository.NewUserRepository(pool, logger),
		grants:    repository.NewGrantRepository(pool, logger),
		returns:   repository.NewReturnRepository(pool, logger),
		sequencer: repository.NewSequencer(pool, logger),
		close:     pool.Close,
	}, nil
}
