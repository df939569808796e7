package main

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/internal/infrastructure/blockchain"
	"stripe-minter.backend/internal/usecases"
	plog "stripe-minter.backend/pkg/logger"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origOpenDB := openDB
	origOpenGorm := openGorm
	origRunMigrations := runMigrations
	origNewGateway := newGateway
	origNewReceiptFetcher := newReceiptFetcher
	origRegisterer := registerer
	origGatherer := gatherer
	origRunWorker := runWorker

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		openDB = origOpenDB
		openGorm = origOpenGorm
		runMigrations = origRunMigrations
		newGateway = origNewGateway
		newReceiptFetcher = origNewReceiptFetcher
		registerer = origRegisterer
		gatherer = origGatherer
		runWorker = origRunWorker
	})

	reg := prometheus.NewRegistry()
	loadDotenv = func(...string) error { return errors.New("no .env") }
	initLog = plog.Init
	registerer = reg
	gatherer = reg
	newReceiptFetcher = func(*blockchain.ClientFactory, string) (usecases.ReceiptFetcher, error) {
		return blockchain.NewEVMClientWithReceipts(big.NewInt(137), func(context.Context, common.Hash) (*types.Receipt, error) {
			return nil, errors.New("not found")
		}), nil
	}
}

func baseTestConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Env = "test"
	cfg.Worker.MetricsPort = "19090"
	cfg.Stripe.APIKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Syndicate.APIKey = "syn-key"
	cfg.Syndicate.ProjectID = "project-1"
	cfg.Syndicate.ContractAddress = "0x1111111111111111111111111111111111111111"
	cfg.JWT.Secret = "secret"
	return cfg
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Redis.URL = "redis://" + mr.Addr()
		return cfg
	}
	return mr
}

func useSQLite(t *testing.T) {
	t.Helper()
	openDB = func(config.DatabaseConfig) (*sql.DB, error) {
		return sql.Open("sqlite3", ":memory:")
	}
	openGorm = func(sqlDB *sql.DB) (*gorm.DB, error) {
		return gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{})
	}
	runMigrations = func(*sql.DB) error { return nil }
}

func TestRunMainProcess_InvalidConfig(t *testing.T) {
	withMainHooks(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Syndicate.APIKey = ""
		return cfg
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	initRedis = func(string, string) error { return errors.New("redis down") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize redis")
}

func TestRunMainProcess_DBError(t *testing.T) {
	withMainHooks(t)
	withRedis(t)
	openDB = func(config.DatabaseConfig) (*sql.DB, error) { return nil, errors.New("db down") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestRunMainProcess_RPCError(t *testing.T) {
	withMainHooks(t)
	withRedis(t)
	useSQLite(t)
	newReceiptFetcher = func(*blockchain.ClientFactory, string) (usecases.ReceiptFetcher, error) {
		return nil, errors.New("dial tcp: refused")
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to blockchain rpc")
}

func TestRunMainProcess_BuildsWorker(t *testing.T) {
	withMainHooks(t)
	withRedis(t)
	useSQLite(t)

	var built *worker
	runWorker = func(_ context.Context, w *worker) error {
		built = w
		assert.Equal(t, ":19090", w.admin.Addr)

		rec := httptest.NewRecorder()
		w.admin.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "stripe-minter-worker")

		rec = httptest.NewRecorder()
		w.admin.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		return nil
	}

	require.NoError(t, runMainProcess())
	require.NotNil(t, built)
	assert.NotNil(t, built.pool)
	assert.NotNil(t, built.maintenance)
}

func TestRunMainProcess_WorkerError(t *testing.T) {
	withMainHooks(t)
	withRedis(t)
	useSQLite(t)
	runWorker = func(context.Context, *worker) error { return errors.New("listen: address in use") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker stopped with error")
}

func TestAdminRouter_HealthDegradedWhenRedisDown(t *testing.T) {
	withMainHooks(t)
	mr := withRedis(t)
	useSQLite(t)

	runWorker = func(_ context.Context, w *worker) error {
		mr.Close()
		rec := httptest.NewRecorder()
		w.admin.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "degraded")
		return nil
	}

	require.NoError(t, runMainProcess())
}

func TestWorkerRun_StopsOnCancel(t *testing.T) {
	withMainHooks(t)
	withRedis(t)
	useSQLite(t)

	runWorker = func(ctx context.Context, w *worker) error {
		w.admin.Addr = "127.0.0.1:0"
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- w.run(runCtx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			return err
		case <-time.After(3 * time.Second):
			return errors.New("worker did not stop")
		}
	}

	require.NoError(t, runMainProcess())
}
