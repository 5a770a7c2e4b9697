package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/dwarvesf/mint-relayer/internal/controller"
	"github.com/dwarvesf/mint-relayer/internal/handler"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/monitoring"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

type stubController struct{}

func (stubController) VerifyPayment(context.Context, controller.VerifyRequest) (*controller.VerifyResult, error) {
	return &controller.VerifyResult{Valid: true, Value: "5000000"}, nil
}

func (stubController) VerifyAndMint(context.Context, controller.MintRequest) (*controller.MintResult, error) {
	return &controller.MintResult{MintTxHash: "0xmint"}, nil
}

func newTestServer(cfg *config.AppConfig) (*gin.Engine, *prometheus.Registry) {
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	registry := prometheus.NewRegistry()
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(registry)

	h := handler.New(cfg, log, handler.Deps{
		Controller:      stubController{},
		Ledger:          ledger.New(ledger.NewMemoryBackend(), time.Hour, log, nil),
		MetricsRegistry: registry,
	})
	return NewHttpServer(cfg, h, httpMetrics), registry
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{ApiServer: config.ApiServerConfig{AllowedOrigins: "*"}}
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_PaymentEndpointsAndAliases(t *testing.T) {
	r, _ := newTestServer(testConfig())
	body := `{"txHash":"0x` + strings.Repeat("ab", 32) + `","beneficiary":"0x2222222222222222222222222222222222222222"}`

	for _, path := range []string{"/verify", "/api/verify-payment"} {
		w := do(r, http.MethodPost, path, body)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"valid":true`, path)
	}
	for _, path := range []string{"/mint", "/api/mint"} {
		w := do(r, http.MethodPost, path, body)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"mintTxHash":"0xmint"`, path)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	r, _ := newTestServer(testConfig())

	for _, path := range []string{"/verify", "/mint", "/api/mint", "/api/verify-payment"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String(), path)
	}
}

func TestRoutes_PaymentsListingRequiresDatabase(t *testing.T) {
	r, _ := newTestServer(testConfig())

	w := do(r, http.MethodGet, "/api/v1/payments", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	r, _ := newTestServer(testConfig())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/health/db", "").Code)

	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mint_relayer_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestRoutes_SwaggerToggle(t *testing.T) {
	r, _ := newTestServer(testConfig())
	assert.NotEqual(t, http.StatusNotFound, do(r, http.MethodGet, "/swagger/index.html", "").Code)

	cfg := testConfig()
	cfg.ApiServer.DisableSwagger = true
	r, _ = newTestServer(cfg)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/swagger/index.html", "").Code)
}
