package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-workshop-service/config"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/sale"
	"github.com/fekuna/omnipos-workshop-service/migrations"
	"github.com/fekuna/omnipos-workshop-service/pkg/broker"
	"github.com/fekuna/omnipos-workshop-service/pkg/cache"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/metrics"

	catRepoPkg "github.com/fekuna/omnipos-workshop-service/internal/catalog/repository"
	catUCPkg "github.com/fekuna/omnipos-workshop-service/internal/catalog/usecase"
	dirRepoPkg "github.com/fekuna/omnipos-workshop-service/internal/directory/repository"

	invH "github.com/fekuna/omnipos-workshop-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-workshop-service/internal/inventory/listener"
	invRepoPkg "github.com/fekuna/omnipos-workshop-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-workshop-service/internal/inventory/usecase"

	"github.com/fekuna/omnipos-workshop-service/internal/workorder"
	woH "github.com/fekuna/omnipos-workshop-service/internal/workorder/handler"
	woPubPkg "github.com/fekuna/omnipos-workshop-service/internal/workorder/publisher"
	woRepoPkg "github.com/fekuna/omnipos-workshop-service/internal/workorder/repository"
	woUCPkg "github.com/fekuna/omnipos-workshop-service/internal/workorder/usecase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		if err := migrations.Apply(context.Background(), db); err != nil {
			appLogger.Fatal("Could not apply migrations", zap.Error(err))
		}
		appLogger.Info("Database schema is up to date")
	}

	// 4. Initialize Repositories
	catRepo := catRepoPkg.NewPGRepository(db)
	dirRepo := dirRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	woRepo := woRepoPkg.NewPGRepository(db)
	txManager := postgres.NewTxManager(db)

	// 5. Initialize Redis (optional: catalog cache and command locks)
	var redisClient *cache.RedisClient
	var locker cache.Locker
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, running without cache and locks", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			locker = redisClient.NewLocker()
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 6. Initialize Kafka
	kafkaEnabled := len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != ""
	var publisher workorder.Publisher
	var receiptsConsumer *broker.KafkaConsumer
	if kafkaEnabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventsTopic,
		})
		defer producer.Close()
		publisher = woPubPkg.NewKafkaPublisher(producer)

		receiptsConsumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.ReceiptsTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer receiptsConsumer.Close()
		appLogger.Info("Connected to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("events_topic", cfg.Kafka.EventsTopic),
			zap.String("receipts_topic", cfg.Kafka.ReceiptsTopic),
		)
	}

	// 7. Initialize Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// 8. Initialize Sale linkage
	salesLinker := sale.Disabled()
	if cfg.Sale.BaseURL != "" {
		salesLinker = sale.NewHTTPLinker(cfg.Sale.BaseURL, cfg.Sale.Timeout)
		appLogger.Info("Sale linkage enabled", zap.String("base_url", cfg.Sale.BaseURL))
	}

	// 9. Initialize UseCases
	catUC := catUCPkg.NewCatalogUseCase(catRepo, redisClient, cfg.Redis.CacheTTL, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, catUC, txManager, locker, cfg.Redis.LockTTL, appMetrics, appLogger)
	woUC := woUCPkg.NewWorkOrderUseCase(woUCPkg.Deps{
		Repo:      woRepo,
		Stock:     invRepo,
		Catalog:   catUC,
		Directory: dirRepo,
		Sales:     salesLinker,
		Tx:        txManager,
		Locker:    locker,
		LockTTL:   cfg.Redis.LockTTL,
		Publisher: publisher,
		Metrics:   appMetrics,
		Logger:    appLogger,
	})

	// 10. Start Listener
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if receiptsConsumer != nil {
		receiptListener := invListenerPkg.NewReceiptListener(receiptsConsumer, invUC, appLogger)
		go receiptListener.Start(ctx)
	}

	// 11. Initialize Handlers
	woHandler := woH.NewWorkOrderHandler(woUC, appLogger)
	invHandler := invH.NewInventoryHandler(invUC, appLogger)

	// 12. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.ContextInterceptor()),
	)

	// Register Services
	woH.RegisterWorkOrderServiceServer(grpcServer, woHandler)
	invH.RegisterInventoryServiceServer(grpcServer, invHandler)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// 13. Start HTTP gateway
	if cfg.Server.AppEnv != "dev" && cfg.Server.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	api := router.Group("/api/v1", auth.GinMiddleware())
	woHandler.RegisterRoutes(api)
	invHandler.RegisterRoutes(api)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	appLogger.Info("Starting HTTP gateway", zap.String("addr", cfg.Server.HTTPPort))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP gateway shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}
