package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-api/cache"
	"marketplace-api/config"
	"marketplace-api/consumers"
	"marketplace-api/controllers"
	"marketplace-api/database"
	"marketplace-api/kafka"
	"marketplace-api/logger"
	"marketplace-api/middlewares"
	"marketplace-api/notifications"
	"marketplace-api/payments"
	"marketplace-api/rabbitmq"
	"marketplace-api/realtime"
	"marketplace-api/repository"
	"marketplace-api/routes"
	"marketplace-api/services"
	"marketplace-api/tasks"
	"marketplace-api/tracing"
	"marketplace-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger.New(cfg.Env, cfg.LogLevel)

	if err := run(ctx, cfg); err != nil {
		slog.Error("service stopped with error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				slog.Warn("tracer shutdown failed", logger.Err(err))
			}
		}()
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	var (
		orderCache services.OrderCache
		deduper    services.WebhookDeduper
		relay      realtime.Relay
	)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache, webhook dedupe and relay", logger.Err(err))
	} else {
		orderCache = cache.NewOrderCache(rdb, cfg.Redis.OrderTTL)
		deduper = cache.NewWebhookDeduper(rdb)
		relay = realtime.NewRedisRelay(rdb)
	}

	queue := tasks.NewQueue(cfg.Tasks.QueueSize, cfg.Tasks.Workers, 10*time.Second)
	queue.Start()

	hub := realtime.NewHub(relay)
	go hub.Run(ctx)

	sinks := notifications.Sinks{Hub: hub}

	rmq, err := rabbitmq.NewRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		slog.Warn("rabbitmq unavailable, broker events disabled", logger.Err(err))
	} else {
		defer rmq.Close()
		if err := rmq.SetupQueues(); err != nil {
			return err
		}
		sinks.Broker = rmq
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopicExists(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			slog.Warn("kafka topic check failed", logger.Err(err))
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("kafka unavailable, event stream disabled", logger.Err(err))
		} else {
			defer producer.Close()
			sinks.Stream = producer
		}
	}

	dispatcher := notifications.NewDispatcher(queue, sinks, cfg.RabbitMQ.PaymentCheckDelay)

	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	gateway := payments.NewGateway(payments.NewProvider(cfg.Payment), cfg.Payment.Currency)
	slog.Info("payment gateway selected", slog.String("provider", gateway.ProviderName()))

	orderService := services.NewOrderService(
		orderRepo, repository.NewCatalogRepository(db), userRepo,
		orderCache, gateway, dispatcher, cfg.Fees,
	)
	paymentService := services.NewPaymentService(orderRepo, userRepo, orderCache, gateway, dispatcher, deduper)
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	if rmq != nil {
		ch, err := rmq.Conn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		consumer := consumers.NewOrderConsumer(orderService, rmq, userRepo,
			notifications.NewEmailSender(cfg.Email.SendGridAPIKey, cfg.Email.Sender))
		if err := consumer.Start(ctx, ch, cfg.RabbitMQ); err != nil {
			return err
		}
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Janitor(time.Minute, ctx.Done())

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middlewares.PrometheusMiddleware(),
		limiter.Middleware(),
		middlewares.ErrorHandler(cfg.IsDevelopment()),
	)
	routes.Register(r, routes.Handlers{
		Orders:         controllers.NewOrderController(orderService),
		AdminOrders:    controllers.NewAdminOrderController(orderService),
		Payments:       controllers.NewPaymentController(paymentService, gateway.SignatureHeader()),
		PaymentMethods: controllers.NewPaymentMethodController(services.NewPaymentMethodService(repository.NewPaymentMethodRepository(db))),
		Auth:           controllers.NewAuthController(services.NewAuthService(userRepo, tokens)),
		Realtime:       controllers.NewRealtimeController(hub, tokens, orderService),
	}, tokens)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server.RegisterOnShutdown(hub.Stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", logger.Err(err))
	}
	// drain queued side effects before the brokers close
	if err := queue.Shutdown(shutdownCtx); err != nil {
		slog.Warn("task queue did not drain", logger.Err(err))
	}
	return nil
}
