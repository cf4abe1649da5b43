package app

import (
	"context"
	"time"

	"github.com/EsmailKhaleel/storefront-api/configs"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/cache"
	httpadapter "github.com/EsmailKhaleel/storefront-api/internal/adapter/http"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/http/middleware"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/kafka"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/payment"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/queue"
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/repo"
	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/EsmailKhaleel/storefront-api/internal/security"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

// InitWithConfig builds the whole object graph explicitly: every
// dependency is constructed here and injected, and the returned cleanup
// tears it all down. No component reads connection state from globals.
func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logger := logging.Init(cfg.App.Name, "./logs/app.log")

	// Closers accumulate as resources open; cleanup (and any failure
	// below) unwinds them in reverse so nothing opened so far leaks.
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init database + required indexes (the unique payment_intent_id
	// index is a correctness requirement, so startup fails without it)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = db.Client().Disconnect(shutdownCtx)
	})
	if err := repo.EnsureIndexes(ctx, db); err != nil {
		return fail(err)
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fail(err)
	}

	// init rabbitmq producer
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = conn.Close() })
	ch, err := conn.Channel()
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = ch.Close() })
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return fail(err)
	}

	// payment provider + webhook trust boundary
	provider := payment.NewStripeProvider(
		cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, cfg.Stripe.Currency)
	verifier := security.NewWebhookVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance)

	// infra
	orderRepo := repo.NewMongoOrderRepo(db)
	productRepo := repo.NewMongoProductRepo(db)
	cartStore := repo.NewMongoCartStore(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)

	// use cases
	checkoutUC := usecase.NewCreateCheckoutSession(productRepo, cartStore, provider)
	processUC := usecase.NewProcessPaymentEvent(orderRepo, productRepo, cartStore, idem, statusCache, producer)

	// shipment status listener
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	group, err := startShipmentListener(consumerCtx, cfg, orderRepo, statusCache)
	if err != nil {
		stopConsumer()
		return fail(err)
	}
	closers = append(closers, func() {
		stopConsumer()
		_ = group.Close()
	})

	// handlers + routers + middleware
	handlers := httpadapter.Handlers{
		Checkout: httpadapter.NewCheckoutHandler(checkoutUC),
		Webhook:  httpadapter.NewWebhookHandler(verifier, processUC),
		Orders:   httpadapter.NewOrderHandler(orderRepo, statusCache),
		Products: httpadapter.NewProductHandler(productRepo),
	}
	router := httpadapter.NewRouter(handlers, middleware.NewAuthz(cfg))

	logger.Info("storefront-api initialized", "addr", cfg.App.HTTPAddr)

	return &App{Router: router}, cleanup, nil
}

func startShipmentListener(ctx context.Context, cfg configs.Config, orders usecase.OrderRepo, statusCache usecase.OrderCache) (sarama.ConsumerGroup, error) {
	group, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}

	h := kafka.NewShipmentStatusChangedHandler(orders, statusCache)
	consumer := kafka.NewConsumer(group, []string{cfg.Kafka.Topic}, h.Handle, logging.New("kafka"))

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logging.New("kafka").Error("shipment consumer stopped", "error", err)
		}
	}()
	return group, nil
}
