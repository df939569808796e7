package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stripe-minter.backend/internal/domain/entities"
	"stripe-minter.backend/internal/interfaces/http/handlers"
	"stripe-minter.backend/internal/usecases"
)

type webhookStub struct{}

func (webhookStub) HandleWebhook(context.Context, []byte, string) (*usecases.WebhookResult, error) {
	return &usecases.WebhookResult{EventID: "evt_1", JobID: "job-1"}, nil
}

type checkoutStub struct{}

func (checkoutStub) SubscribePageURL() string { return "http://localhost:4242/subscribe.html" }

func (checkoutStub) CreateCheckoutSession(context.Context, string, string) (string, error) {
	return "https://checkout.stripe.com/cs_1", nil
}

func (checkoutStub) CancelSubscription(context.Context, string) (string, error) {
	return "sub_1", nil
}

func (checkoutStub) GetNFTMetadata(context.Context, string) (*entities.TokenMetadata, error) {
	return &entities.TokenMetadata{Stamina: 1}, nil
}

type opsStub struct{}

func (opsStub) List(context.Context, int, int) ([]*entities.FailedJob, int, error) {
	return nil, 0, nil
}

func (opsStub) Retry(context.Context, uuid.UUID) (*entities.FailedJob, error) {
	return &entities.FailedJob{}, nil
}

func (opsStub) QueueStats(context.Context) (entities.QueueStats, error) {
	return entities.QueueStats{}, nil
}

func testRouter(pingers map[string]func(ctx context.Context) error, auth ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newRouter(routeDeps{
		webhookHandler:  handlers.NewWebhookHandler(webhookStub{}),
		checkoutHandler: handlers.NewCheckoutHandler(checkoutStub{}),
		opsHandler:      handlers.NewOpsHandler(opsStub{}),
		operatorAuth:    auth,
		metricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		allowedOrigins: []string{"http://localhost:3000"},
		pingers:        pingers,
	})
}

func TestNewRouter_RegistersRoutes(t *testing.T) {
	r := testRouter(nil)

	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/"},
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/webhook"},
		{"POST", "/create-checkout-session"},
		{"POST", "/cancel-subscription"},
		{"GET", "/nft-metadata"},
		{"GET", "/ops/failed-jobs"},
		{"POST", "/ops/failed-jobs/:id/retry"},
		{"GET", "/ops/queue/stats"},
	}

	routes := r.Routes()
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		assert.Truef(t, found, "route %s %s not registered", exp.method, exp.path)
	}
}

func TestNewRouter_OperatorAuthGuardsOps(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	r := testRouter(nil, deny)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/queue/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyCORSMiddleware(t *testing.T) {
	r := testRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/create-checkout-session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterHealthRoute(t *testing.T) {
	r := testRouter(map[string]func(ctx context.Context) error{
		"redis":    func(context.Context) error { return nil },
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status  string            `json:"status"`
		Service string            `json:"service"`
		Checks  map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "stripe-minter", body.Service)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection refused", body.Checks["database"])
}

func TestNewRouter_Metrics(t *testing.T) {
	r := testRouter(nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}
