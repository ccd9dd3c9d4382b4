package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridewallet/internal/config"
	handlers "ridewallet/internal/handlers/shared"
	"ridewallet/internal/middleware"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/repositories/memory"
	"ridewallet/internal/repositories/mongodb"
	"ridewallet/internal/repositories/postgres"
	"ridewallet/internal/services"
	"ridewallet/internal/workers/reconcile"
	"ridewallet/pkg/auth"
	"ridewallet/pkg/cache"
	"ridewallet/pkg/database"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"
	"ridewallet/pkg/websocket"
	"ridewallet/routes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type repositories struct {
	wallets      interfaces.WalletRepository
	transactions interfaces.TransactionRepository
	ledger       interfaces.LedgerRepository
	health       func(ctx context.Context) error
	close        func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.NewRegistry())

	repos, err := openRepositories(cfg.Database, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize ledger storage")
	}
	defer repos.close()

	// Audit trail (optional)
	var auditRepo interfaces.AuditLogRepository
	if cfg.Mongo.URI != "" {
		mongoDB, err := database.NewMongoDB(&database.MongoConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			MaxPoolSize:    cfg.Mongo.MaxPoolSize,
			MinPoolSize:    cfg.Mongo.MinPoolSize,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			SocketTimeout:  cfg.Mongo.SocketTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer mongoDB.Close()

		if err := mongodb.EnsureAuditLogIndexes(ctx, mongoDB.Database); err != nil {
			appLogger.WithError(err).Warn("Failed to ensure audit log indexes")
		}
		auditRepo = mongodb.NewAuditLogRepository(mongoDB.Database)
	} else {
		appLogger.Info("MongoDB not configured, audit entries are logged only")
	}

	// Cache and cross-instance fan-out (optional)
	cacheService := services.NewNoopCacheService()
	var subscriber services.Subscriber
	var redisCache *cache.RedisCache
	if cfg.Redis.Host != "" {
		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		cacheService = redisCache
		subscriber = redisCache
	} else {
		appLogger.Warn("Redis not configured, webhook replay protection falls back to ledger state only")
	}

	provider := payment.NewStripeProvider(payment.StripeOptions{
		SecretKey:     cfg.Payment.Stripe.SecretKey,
		WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		APIURL:        cfg.Payment.Stripe.APIURL,
	})
	verifier := auth.NewVerifier(auth.Config{
		BaseURL:        cfg.Security.BaaSURL,
		AnonKey:        cfg.Security.BaaSAnonKey,
		ServiceRoleKey: cfg.Security.BaaSServiceRoleKey,
		JWTSecret:      cfg.Security.JWTSecret,
		Timeout:        cfg.Security.AuthTimeout,
	})

	// Realtime
	hub := websocket.NewHub(appLogger)
	go hub.Run(ctx)

	auditService := services.NewAuditService(auditRepo, appLogger)
	realtimeService := services.NewRealtimeService(cacheService, subscriber, hub, appLogger)
	go func() {
		if err := realtimeService.Run(ctx); err != nil {
			appLogger.WithError(err).Error("Realtime relay stopped")
		}
	}()

	reconciler := services.NewTopUpReconciler(repos.transactions, repos.ledger, cacheService, realtimeService, auditService, m, appLogger)
	checkoutService := services.NewCheckoutService(cfg.Payment, cfg.App.PublicURL, provider, repos.wallets, repos.transactions, auditService, m, appLogger)
	webhookService := services.NewWebhookService(provider, reconciler, cacheService, auditService, m, appLogger, cfg.Payment.EventMarkerTTL)
	statusService := services.NewPaymentStatusService(provider, repos.wallets, repos.transactions, cacheService, appLogger, cfg.Payment.StatusCacheTTL)
	transferService := services.NewTransferService(repos.wallets, repos.ledger, realtimeService, auditService, m, appLogger)
	orderService := services.NewOrderService(repos.ledger, realtimeService, auditService, m, appLogger)
	walletService := services.NewWalletService(repos.wallets, repos.transactions, cfg.Payment.Currency)

	// Stale top-up sweeper
	sweeper := reconcile.NewWorker(provider, repos.transactions, reconciler, m, appLogger, cfg.Worker.SweepStaleAge, cfg.Worker.SweepBatchSize)
	if err := sweeper.Start(cfg.Worker.SweepSchedule); err != nil {
		appLogger.WithError(err).Fatal("Failed to start reconcile sweeper")
	}
	defer sweeper.Stop()

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Fatal("Invalid trusted proxy configuration")
	}

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger, m))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	// API routes
	v1 := router.Group("/api/v1")
	{
		routes.SetupWalletRoutes(v1, &routes.Handlers{
			Wallet:   handlers.NewWalletHandler(checkoutService, statusService, transferService, walletService, appLogger),
			Webhook:  handlers.NewWebhookHandler(webhookService, appLogger),
			Order:    handlers.NewOrderHandler(orderService, appLogger),
			Realtime: handlers.NewRealtimeHandler(websocket.NewHandler(hub, cfg.Security.CORSAllowedOrigins)),
		}, verifier, appLogger)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"database": "ok"}
		if err := repos.health(checkCtx); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = err.Error()
		}
		if redisCache != nil {
			checks["redis"] = "ok"
			if err := redisCache.Ping(checkCtx); err != nil {
				status = http.StatusServiceUnavailable
				checks["redis"] = err.Error()
			}
		}
		c.JSON(status, gin.H{
			"status":  http.StatusText(status),
			"version": cfg.App.Version,
			"checks":  checks,
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
}

func openRepositories(cfg *config.DatabaseConfig, appLogger *logger.Logger) (*repositories, error) {
	if cfg.Driver == config.DatabaseDriverMemory {
		appLogger.Warn("Using in-memory ledger storage, balances are lost on restart")
		store := memory.NewStore()
		return &repositories{
			wallets:      store.Wallets(),
			transactions: store.Transactions(),
			ledger:       store.Ledger(),
			health:       func(context.Context) error { return nil },
			close:        func() error { return nil },
		}, nil
	}

	db, err := database.NewPostgres(&database.PostgresConfig{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnectTimeout:  cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		migrator, err := database.NewMigrator(db, cfg.MigrationsPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &repositories{
		wallets:      postgres.NewWalletRepository(db),
		transactions: postgres.NewTransactionRepository(db),
		ledger:       postgres.NewLedgerRepository(db),
		health:       func(ctx context.Context) error { return database.HealthCheck(ctx, db) },
		close:        db.Close,
	}, nil
}
