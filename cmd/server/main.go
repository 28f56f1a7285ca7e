package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/api/rest"
	"github.com/offerflow/billing-service/internal/api/rest/handlers"
	"github.com/offerflow/billing-service/internal/assist"
	"github.com/offerflow/billing-service/internal/billing"
	"github.com/offerflow/billing-service/internal/catalog"
	"github.com/offerflow/billing-service/internal/events"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/middleware"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/internal/repository/postgres"
	"github.com/offerflow/billing-service/internal/service"
	"github.com/offerflow/billing-service/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()
	log.Infow("Billing service starting up...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Миграции выполняются на старте, до открытия пула
	if err := runMigrations(cfg.Database.GetDSN()); err != nil {
		log.Fatalw("Failed to run database migrations", "error", err)
	}
	log.Infow("Database migrations applied")

	pool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Infow("Database connection established")

	// Redis не критичен: без него сервис работает без кеша
	var store repository.SubscriptionStore = postgres.NewSubscriptionStore(pool, log)
	redisCache, err := repository.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
	} else {
		store = repository.NewCachedSubscriptionStore(store, redisCache, log)
		log.Infow("Redis cache initialized successfully")
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
	}

	ledger := postgres.NewEventLedger(pool, log)

	// Kafka не критичен: без брокера события подписок не публикуются
	var producer events.Producer
	producer, err = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Warnw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		producer = events.NopProducer{}
	} else {
		log.Infow("Kafka producer initialized")
		defer func() {
			if err := producer.Close(); err != nil {
				log.Errorw("Error closing Kafka producer", "error", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	billingMetrics := metrics.NewBillingMetrics(registry, log)

	stripeClient := billing.NewStripeClient(cfg.Stripe, log)
	planCatalog := catalog.New(cfg.Stripe)
	assistant := assist.NewOpenAIAssistant(cfg.Assist, log)

	reconciler := service.NewReconciler(store, ledger, stripeClient, planCatalog, producer, billingMetrics, cfg.Stripe.TrialPeriodDays, log)
	gate := service.NewGate(store, planCatalog, billingMetrics, log)

	validator := &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	}
	authMiddleware := middleware.NewJWTMiddleware(log, validator)

	router := rest.NewRouter(rest.Handlers{
		Billing: handlers.NewBillingHandler(reconciler, gate, log),
		Webhook: handlers.NewWebhookHandler(stripeClient, reconciler, log),
		Offer:   handlers.NewOfferHandler(gate, reconciler, log),
		Assist:  handlers.NewAssistHandler(assistant, log),
	}, authMiddleware, registry, log)

	server := rest.NewServer(":"+cfg.Server.Port, router, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

// runMigrations применяет goose-миграции из каталога migrations
func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return goose.Up(sqlDB, "migrations")
}

// initLogger инициализирует логгер по переменной окружения
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
