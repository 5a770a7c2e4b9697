package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/monitoring"
	"github.com/dwarvesf/mint-relayer/internal/relayer"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

const checkTimeout = 3 * time.Second

// HealthHandler implements IHealthHandler interface
type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	baseRPC          baserpc.IBaseRPC
	ledger           ledger.ILedger
	relayer          relayer.IRelayer
	jobStatusManager *monitoring.JobStatusManager
}

// New creates a new health handler instance. db, relayer and jobStatusManager may be nil.
func New(
	config *config.AppConfig,
	logger *logger.Logger,
	db *gorm.DB,
	baseRPC baserpc.IBaseRPC,
	ledger ledger.ILedger,
	relayer relayer.IRelayer,
	jobStatusManager *monitoring.JobStatusManager,
) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		baseRPC:          baseRPC,
		ledger:           ledger,
		relayer:          relayer,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{
		Message: "ok",
	})
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Validates database connectivity and performance
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	dbCheck := h.checkDatabase(requestContext(c))
	response.Checks["database"] = dbCheck
	response.DurationMs = time.Since(start).Milliseconds()

	if dbCheck.Status == statusHealthy {
		response.Status = statusHealthy
		c.JSON(http.StatusOK, response)
		return
	}
	response.Status = statusUnhealthy
	c.JSON(http.StatusServiceUnavailable, response)
}

// External handles the external dependencies health check endpoint
// @Summary External dependencies health check
// @Description Validates chain RPC reachability, ledger backend and relayer gas balance
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	ctx, cancel := context.WithTimeout(requestContext(c), 10*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) HealthCheck{
		"base_rpc":        h.checkBaseRPC,
		"ledger":          h.checkLedger,
		"relayer_balance": h.checkRelayerBalance,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check func(context.Context) HealthCheck) {
			defer wg.Done()
			result := check(ctx)
			mu.Lock()
			response.Checks[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	response.DurationMs = time.Since(start).Milliseconds()

	allHealthy := true
	for _, check := range response.Checks {
		if check.Status != statusHealthy && check.Status != statusSkipped {
			allHealthy = false
			break
		}
	}

	if allHealthy {
		response.Status = statusHealthy
		c.JSON(http.StatusOK, response)
		return
	}

	response.Status = statusUnhealthy
	h.logger.Warn("[External] dependency check failed", map[string]string{
		"duration": fmt.Sprintf("%dms", response.DurationMs),
	})
	c.JSON(http.StatusServiceUnavailable, response)
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// checkDatabase performs database health validation
func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Metadata: make(map[string]interface{}),
	}

	if h.db == nil {
		check.Status = statusUnhealthy
		check.Error = "database connection not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		check.Status = statusUnhealthy
		check.Error = fmt.Sprintf("failed to get underlying database: %v", err)
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		check.Status = statusUnhealthy
		if pingCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = err.Error()
		}
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	stats := sqlDB.Stats()

	check.Status = statusHealthy
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["driver"] = "postgres"
	check.Metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}

	return check
}

// checkBaseRPC reads the chain head as a lightweight reachability check
func (h *HealthHandler) checkBaseRPC(ctx context.Context) HealthCheck {
	if h.baseRPC == nil {
		return HealthCheck{Status: statusUnhealthy, Error: "base rpc not available"}
	}

	var head uint64
	check := runCheck(ctx, func(ctx context.Context) error {
		var err error
		head, err = h.baseRPC.BlockNumber(ctx)
		return err
	})
	if check.Status == statusHealthy {
		check.Metadata = map[string]interface{}{
			"endpoint":     "base_rpc",
			"block_number": head,
		}
	}
	return check
}

func (h *HealthHandler) checkLedger(ctx context.Context) HealthCheck {
	if h.ledger == nil {
		return HealthCheck{Status: statusUnhealthy, Error: "ledger not available"}
	}

	check := runCheck(ctx, h.ledger.Ping)
	check.Metadata = map[string]interface{}{
		"backend": h.ledger.Backend(),
	}
	return check
}

// checkRelayerBalance reports the relayer's native balance; below the configured
// minimum the relayer cannot pay for mint gas.
func (h *HealthHandler) checkRelayerBalance(ctx context.Context) HealthCheck {
	if h.relayer == nil {
		return HealthCheck{Status: statusSkipped, Metadata: map[string]interface{}{
			"reason": "relayer key not configured",
		}}
	}
	if h.baseRPC == nil {
		return HealthCheck{Status: statusUnhealthy, Error: "base rpc not available"}
	}

	address := h.relayer.Address()
	var balance *model.Web3BigInt
	check := runCheck(ctx, func(ctx context.Context) error {
		b, err := h.baseRPC.BalanceAt(ctx, address)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if check.Status != statusHealthy {
		return check
	}

	check.Metadata = map[string]interface{}{
		"address": address.Hex(),
		"balance": balance.String(),
	}
	if h.config != nil && balance.ToFloat() < h.config.Relayer.MinBalance {
		check.Status = statusUnhealthy
		check.Error = fmt.Sprintf("balance %s below minimum %g", balance.String(), h.config.Relayer.MinBalance)
	}
	return check
}

// runCheck runs fn under checkTimeout and turns its outcome into a HealthCheck.
func runCheck(ctx context.Context, fn func(context.Context) error) HealthCheck {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(checkCtx)
	}()

	check := HealthCheck{}
	select {
	case err := <-done:
		if err != nil {
			check.Status = statusUnhealthy
			check.Error = err.Error()
		} else {
			check.Status = statusHealthy
		}
	case <-checkCtx.Done():
		check.Status = statusUnhealthy
		if checkCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = checkCtx.Err().Error()
		}
	}

	check.Latency = time.Since(start).Milliseconds()
	return check
}
