// Storefront — сервис оформления заказов и сверки платежей.
// HTTP API для checkout, вебхуков платёжного шлюза, фулфилмента
// и личного кабинета покупателя.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"example.com/storefront/internal/email"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/handler"
	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/repository"
	"example.com/storefront/internal/service"
	"example.com/storefront/internal/worker"
	"example.com/storefront/pkg/config"
	"example.com/storefront/pkg/db"
	"example.com/storefront/pkg/healthcheck"
	"example.com/storefront/pkg/kafka"
	"example.com/storefront/pkg/logger"
	"example.com/storefront/pkg/metrics"
	"example.com/storefront/pkg/outbox"
	"example.com/storefront/pkg/tracing"
)

const serviceName = "storefront"

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", serviceName).Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Storefront")

	// Tracing (no-op если выключен)
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации tracing")
	}

	// MySQL
	gormDB, err := db.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	// Redis — rate limiting
	redisClient := db.ConnectRedis(cfg.Redis)

	// Kafka Producer — публикация outbox-событий
	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
	}

	// Репозитории
	orderRepo := repository.NewOrderRepository(gormDB)
	productRepo := repository.NewProductRepository(gormDB)
	rewardsRepo := repository.NewRewardsRepository(gormDB)
	notificationRepo := repository.NewNotificationRepository(gormDB)
	outboxRepo := outbox.NewOutboxRepository(gormDB)

	// Платёжный шлюз
	gatewayClient := gateway.NewClient(cfg.Gateway)
	verifier := gateway.NewWebhookVerifier(cfg.Gateway.WebhookSecret)

	// Сервисы
	notificationService := service.NewNotificationService(notificationRepo, outboxRepo)
	rewardsService := service.NewRewardsService(rewardsRepo)
	cartService := service.NewCartService(productRepo)
	checkoutService := service.NewCheckoutService(cartService, orderRepo, gatewayClient, cfg.Pricing)
	reconcileService := service.NewReconcileService(orderRepo, productRepo, rewardsService, notificationService, gatewayClient)
	fulfillmentService := service.NewFulfillmentService(orderRepo, notificationService)

	// Middleware
	authMW := middleware.NewAuthMiddleware(cfg.JWT)
	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	// Readiness: сервис готов, когда доступны MySQL, Redis и Kafka
	readiness := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, gormDB) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
		func(ctx context.Context) error { return healthcheck.CheckKafka(ctx, cfg.Kafka.Brokers) },
	)

	// HTTP роутер
	router := handler.NewRouter(handler.RouterConfig{
		Checkout:       checkoutService,
		Reconcile:      reconcileService,
		Fulfillment:    fulfillmentService,
		Notifications:  notificationService,
		Rewards:        rewardsService,
		Verifier:       verifier,
		AuthMW:         authMW,
		RateLimitMW:    rateLimitMW,
		ReadinessCheck: handler.ReadinessChecker(readiness),
		Debug:          cfg.IsDevelopment(),
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Фоновые процессы живут до отмены контекста
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Outbox Worker — доставка писем из outbox в Kafka
	outboxWorker := outbox.NewOutboxWorker(outboxRepo, producer, outbox.DefaultWorkerConfig())
	go outboxWorker.Run(workersCtx)

	// Email Worker — чтение email-топика и отправка через SMTP
	emailConsumer, err := kafka.NewConsumer(
		kafka.Config{Brokers: cfg.Kafka.Brokers},
		kafka.TopicEmail,
		cfg.Kafka.ConsumerGroup,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer")
	}
	emailConsumer.SetDLQProducer(producer)

	emailWorker := worker.NewEmailWorker(emailConsumer, email.NewSender(cfg.SMTP))
	go func() {
		if err := emailWorker.Run(workersCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Email Worker завершился с ошибкой")
		}
	}()

	// Metrics сервер (отдельный порт, не попадает под rate limiting)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			serviceName,
			metrics.WithReadinessCheck(metrics.ReadinessChecker(readiness)),
		)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Ошибка Metrics сервера")
			}
		}()
	}

	// HTTP сервер
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер запущен")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Сначала перестаём принимать запросы, потом гасим воркеры
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	stopWorkers()

	if err := emailWorker.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки Email Worker")
	}

	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics сервера")
		}
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки tracing")
	}

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if sqlDB, err := gormDB.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Storefront остановлен")
}
