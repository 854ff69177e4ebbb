package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/food_cart/internal/cache"
	"github.com/fjod/food_cart/internal/config"
	"github.com/fjod/food_cart/internal/engine"
	h "github.com/fjod/food_cart/internal/http"
	"github.com/fjod/food_cart/internal/logger"
	"github.com/fjod/food_cart/internal/pricing"
	"github.com/fjod/food_cart/internal/publisher"
	"github.com/fjod/food_cart/internal/repository"
	s "github.com/fjod/food_cart/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog
	catalog, err := repository.NewSQLiteCatalog(cfg.SQLite.Path)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(cfg.SQLite.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("catalog ready", zap.String("path", cfg.SQLite.Path))

	// Address book
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())
	addresses := repository.NewMongoAddressRepository(mongoDB)
	if err := addresses.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create address indexes", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Checkout hand-off
	checkouts := publisher.NewCheckoutPublisher(log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer checkouts.Close()

	deps := s.Dependencies{
		Catalog:   catalog,
		Addresses: addresses,
		Publisher: checkouts,
		Pricer:    newPricer(cfg, catalog, log),
	}

	// Cart snapshots
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		deps.Cache = c.NewRedisCache(redisClient, cfg.Redis.SnapshotTTL)
		log.Info("Redis ping succeeded", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis disabled, carts are kept in memory only")
	}

	cartService := s.NewCartService(deps, log, s.WithCurrency(cfg.Currency))
	go cartService.Run(ctx, cfg.Sessions.EvictInterval, cfg.Sessions.IdleTimeout)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
	}, log, h.Handlers{
		Cart:        h.NewCartHandler(cartService, cfg.HTTP.RequestTimeout, log),
		Restaurants: h.NewRestaurantHandler(catalog, cfg.HTTP.RequestTimeout, log),
		Addresses:   h.NewAddressHandler(addresses, cfg.HTTP.RequestTimeout, log),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health endpoint for orchestrators
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.HealthPort)
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPC.HealthPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		log.Info("health server listening", zap.String("port", cfg.GRPC.HealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("health server stopped", zap.Error(err))
		}
	}()

	go func() {
		log.Info("cart API starting", zap.String("port", cfg.HTTP.Port), zap.String("pricer", cfg.Pricer.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("server exited")
}

func newPricer(cfg *config.Config, offers pricing.OfferStore, log *zap.Logger) engine.Pricer {
	switch cfg.Pricer.Mode {
	case config.PricerCatalog:
		return pricing.NewCatalog(offers)
	case config.PricerRemote:
		return pricing.NewRemote(cfg.Pricer.URL, cfg.Pricer.Timeout, log)
	default:
		return pricing.Reference{}
	}
}
