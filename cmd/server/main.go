package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/internal/infrastructure/datasources/postgres"
	"stripe-minter.backend/internal/infrastructure/metrics"
	"stripe-minter.backend/internal/infrastructure/payments"
	"stripe-minter.backend/internal/infrastructure/queue"
	"stripe-minter.backend/internal/infrastructure/repositories"
	"stripe-minter.backend/internal/infrastructure/syndicate"
	"stripe-minter.backend/internal/interfaces/http/handlers"
	"stripe-minter.backend/internal/interfaces/http/middleware"
	"stripe-minter.backend/internal/interfaces/http/response"
	"stripe-minter.backend/internal/usecases"
	"stripe-minter.backend/pkg/jwt"
	"stripe-minter.backend/pkg/logger"
	"stripe-minter.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv    = godotenv.Load
	loadCfg       = config.Load
	initLog       = logger.Init
	initRedis     = redis.Init
	openDB        = postgres.NewConnection
	openGorm      = postgres.NewGormDB
	runMigrations = postgres.RunMigrations
	newGateway    = func(cfg *config.Config) usecases.PaymentGateway {
		g := payments.NewStripeGateway(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)
		g.SetPriceCacheTTL(cfg.Stripe.PriceCacheTTL)
		return g
	}
	registerer = prometheus.DefaultRegisterer
	runServer  = func(ctx context.Context, srv *http.Server) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env)
	defer logger.Sync()
	response.SetEnvironment(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sqlDB, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := openGorm(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to open gorm: %w", err)
	}

	r := buildRouter(cfg, sqlDB, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Stripe minter API starting on port %s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func buildRouter(cfg *config.Config, sqlDB *sql.DB, db *gorm.DB) *gin.Engine {
	m := metrics.New(registerer)

	jobQueue := queue.NewRedisQueue(redis.GetClient(), cfg.Queue.Name, queue.OptionsFromConfig(cfg.Queue))
	gateway := newGateway(cfg)
	minting := syndicate.NewClientFromConfig(cfg.Syndicate)
	failedJobRepo := repositories.NewFailedJobRepository(db)
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.OperatorExpiry)

	webhookUsecase := usecases.NewWebhookUsecase(gateway, jobQueue, m)
	checkoutUsecase := usecases.NewCheckoutUsecase(gateway, minting, cfg.Server.Domain)
	failedJobUsecase := usecases.NewFailedJobUsecase(failedJobRepo, jobQueue)

	return newRouter(routeDeps{
		webhookHandler:  handlers.NewWebhookHandler(webhookUsecase),
		checkoutHandler: handlers.NewCheckoutHandler(checkoutUsecase),
		opsHandler:      handlers.NewOpsHandler(failedJobUsecase),
		operatorAuth: []gin.HandlerFunc{
			middleware.AuthMiddleware(jwtService),
			middleware.RequireRole(jwt.RoleOperator),
		},
		metricsHandler: promhttp.Handler(),
		allowedOrigins: cfg.Server.AllowedOrigins,
		pingers: map[string]func(ctx context.Context) error{
			"redis":    func(ctx context.Context) error { return redis.GetClient().Ping(ctx).Err() },
			"database": sqlDB.PingContext,
		},
	})
}
