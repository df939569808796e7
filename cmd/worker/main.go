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
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/internal/infrastructure/blockchain"
	"stripe-minter.backend/internal/infrastructure/datasources/postgres"
	"stripe-minter.backend/internal/infrastructure/jobs"
	"stripe-minter.backend/internal/infrastructure/metrics"
	"stripe-minter.backend/internal/infrastructure/payments"
	"stripe-minter.backend/internal/infrastructure/queue"
	"stripe-minter.backend/internal/infrastructure/repositories"
	"stripe-minter.backend/internal/infrastructure/syndicate"
	"stripe-minter.backend/internal/usecases"
	"stripe-minter.backend/pkg/logger"
	"stripe-minter.backend/pkg/redis"
)

const invoiceDedupePrefix = "invoice-paid:"

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
	newReceiptFetcher = func(f *blockchain.ClientFactory, rpcURL string) (usecases.ReceiptFetcher, error) {
		return f.GetEVMClient(rpcURL)
	}
	registerer = prometheus.DefaultRegisterer
	gatherer   = prometheus.DefaultGatherer
	runWorker  = func(ctx context.Context, w *worker) error { return w.run(ctx) }
)

type worker struct {
	pool        *jobs.WorkerPool
	maintenance *jobs.QueueMaintenanceJob
	admin       *http.Server
}

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
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()

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

	clientFactory := blockchain.NewClientFactory()
	defer clientFactory.Close()

	receipts, err := newReceiptFetcher(clientFactory, cfg.Blockchain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to blockchain rpc: %w", err)
	}

	w := buildWorker(cfg, sqlDB, db, receipts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Stripe minter worker starting with concurrency %d", cfg.Worker.Concurrency)
	if err := runWorker(ctx, w); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	log.Println("Worker stopped")
	return nil
}

func buildWorker(cfg *config.Config, sqlDB *sql.DB, db *gorm.DB, receipts usecases.ReceiptFetcher) *worker {
	m := metrics.New(registerer)

	jobQueue := queue.NewRedisQueue(redis.GetClient(), cfg.Queue.Name, queue.OptionsFromConfig(cfg.Queue))
	gateway := newGateway(cfg)
	minting := syndicate.NewClientFromConfig(cfg.Syndicate)

	var invoiceDedupe usecases.Deduplicator
	if cfg.Invoice.DedupeEnabled {
		invoiceDedupe = redis.NewDeduplicator(invoiceDedupePrefix, cfg.Invoice.DedupeTTL)
	}

	subscriptionUsecase := usecases.NewSubscriptionUsecase(gateway, minting, jobQueue, invoiceDedupe)
	mintUsecase := usecases.NewMintUsecase(gateway, minting, receipts, usecases.MintConfig{
		PollAttempts: cfg.Mint.PollAttempts,
		PollDelay:    cfg.Mint.PollDelay,
		TokenImage:   cfg.Syndicate.TokenImageURL,
		TokenTier:    cfg.Syndicate.TokenTier,
	})
	mintUsecase.SetPollRecorder(m)
	failedJobUsecase := usecases.NewFailedJobUsecase(repositories.NewFailedJobRepository(db), jobQueue)
	dispatcher := usecases.NewJobDispatcher(subscriptionUsecase, mintUsecase)

	return &worker{
		pool:        jobs.NewWorkerPool(jobQueue, dispatcher, failedJobUsecase, m, cfg.Worker.Concurrency, cfg.Worker.PollInterval),
		maintenance: jobs.NewQueueMaintenanceJob(jobQueue, failedJobUsecase, m, cfg.Queue.MaintenanceInterval),
		admin: &http.Server{
			Addr:              ":" + cfg.Worker.MetricsPort,
			Handler:           newAdminRouter(sqlDB),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// newAdminRouter serves /metrics and /health for the worker process
func newAdminRouter(sqlDB *sql.DB) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := redis.GetClient().Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stripe-minter-worker"})
	})
	return r
}

func (w *worker) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.pool.Run(gctx)
	})
	g.Go(func() error {
		w.maintenance.Start(gctx)
		return nil
	})
	g.Go(func() error {
		err := w.admin.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.admin.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
