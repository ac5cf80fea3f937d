package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/cartsync/internal/cache"
	"github.com/fjod/cartsync/internal/config"
	h "github.com/fjod/cartsync/internal/http"
	"github.com/fjod/cartsync/internal/notify"
	"github.com/fjod/cartsync/internal/realtime"
	"github.com/fjod/cartsync/internal/repository"
	"github.com/fjod/cartsync/internal/service"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up MongoDB connection
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	mongoDB, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := repository.RunMigrations(mongoDB); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var (
		redisClient  *redis.Client
		productCache cache.ProductCache
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
		}
		productCache = cache.NewRedisCache(redisClient, cfg.Cache.ProductTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis ping succeeded")
	}

	carts := service.NewCartService(repository.NewMongoCartRepository(mongoDB))
	products := service.NewProductService(repository.NewMongoProductRepository(mongoDB), productCache)

	hub := realtime.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()

	// With Redis every event takes a round trip through the channel so that
	// clients on all instances see it; the bridge feeds the local hub.
	var sinks notify.Fanout
	if redisClient != nil {
		bridge := notify.NewRedisBridge(redisClient, cfg.Redis.Channel, hub)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("redis event bridge stopped")
			}
		}()
		sinks = append(sinks, bridge)
	} else {
		sinks = append(sinks, hub)
	}

	var kafkaPub *notify.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPub = notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...))
		sinks = append(sinks, kafkaPub)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	}
	notifier := notify.NewNotifier(sinks)

	renderer, err := h.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse templates")
	}

	commands := realtime.NewCommands(hub, carts, products, notifier)
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, h.Handlers{
		Carts:    h.NewCartHandler(carts, notifier, cfg.HTTP.RequestTimeout),
		Products: h.NewProductHandler(products, notifier, cfg.HTTP.RequestTimeout),
		Views:    h.NewViewHandler(products, carts, renderer, cfg.HTTP.RequestTimeout),
		Realtime: realtime.NewServer(hub, commands, cfg.HTTP.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("cartsync listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	<-hubDone

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close kafka writer")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to disconnect from MongoDB")
	}

	logger.Info().Msg("server exited")
}
