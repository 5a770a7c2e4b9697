package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/controller"
	"github.com/dwarvesf/mint-relayer/internal/decoder"
	"github.com/dwarvesf/mint-relayer/internal/handler"
	"github.com/dwarvesf/mint-relayer/internal/handler/metrics"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/monitoring"
	"github.com/dwarvesf/mint-relayer/internal/relayer"
	pgstore "github.com/dwarvesf/mint-relayer/internal/store/postgres"
	httptransport "github.com/dwarvesf/mint-relayer/internal/transport/http"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
	"github.com/dwarvesf/mint-relayer/internal/utils/vault"
	"github.com/dwarvesf/mint-relayer/internal/utils/webhook"
	"github.com/dwarvesf/mint-relayer/internal/verifier"
)

const (
	ledgerSweepJob     = "ledger_expiry_sweep"
	ledgerSweepTimeout = 2 * time.Minute
	stalledCheckEvery  = time.Minute
	shutdownTimeout    = 30 * time.Second
	readHeaderTimeout  = 10 * time.Second
	idleTimeout        = 2 * time.Minute
)

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, logger); err != nil {
		logger.Fatal("[Init][run] server stopped with error", map[string]string{
			"error": err.Error(),
		})
	}
}

func run(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) error {
	var db *gorm.DB
	if pgstore.Enabled(appConfig) {
		var err error
		db, err = pgstore.New(appConfig, logger)
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
	}

	registry := metrics.NewRegistry()
	apiMetrics := monitoring.NewExternalAPIMetrics()
	apiMetrics.MustRegister(registry)
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	jobMetrics.MustRegister(registry)
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(registry)
	businessMetrics := monitoring.NewBusinessMetricsRecorder(httpMetrics)

	rawRPC, err := baserpc.New(appConfig, logger)
	if err != nil {
		return errors.Wrap(err, "init base rpc")
	}
	baseRPC, err := monitoring.NewCircuitBreakerBaseRPCWithTimeout(
		rawRPC,
		monitoring.CircuitBreakerConfigs["base_rpc"],
		monitoring.TimeoutConfig{
			RequestTimeout:     appConfig.Blockchain.RPCTimeout,
			HealthCheckTimeout: monitoring.DefaultTimeoutConfig.HealthCheckTimeout,
		},
		apiMetrics,
		logger,
	)
	if err != nil {
		return errors.Wrap(err, "init base rpc breaker")
	}

	if !common.IsHexAddress(appConfig.Blockchain.USDCContractAddr) {
		return errors.Errorf("invalid USDC contract address %q", appConfig.Blockchain.USDCContractAddr)
	}
	usdcDecoder, err := decoder.New(common.HexToAddress(appConfig.Blockchain.USDCContractAddr))
	if err != nil {
		return errors.Wrap(err, "init decoder")
	}

	backend, err := ledger.NewBackend(appConfig, db)
	if err != nil {
		return errors.Wrap(err, "init ledger backend")
	}
	processed := ledger.New(backend, appConfig.Ledger.TTL, logger, businessMetrics)
	logger.Info("[run] ledger ready", map[string]string{
		"backend": processed.Backend(),
	})

	// an untyped nil keeps the controller's "relayer not configured" check working
	var minter relayer.IRelayer
	privateKey, err := relayerKey(ctx, appConfig)
	if err != nil {
		return errors.Wrap(err, "load relayer key")
	}
	if privateKey != "" {
		r, err := relayer.New(ctx, appConfig, rawRPC.Client(), privateKey, logger)
		if err != nil {
			return errors.Wrap(err, "init relayer")
		}
		minter = r
		logger.Info("[run] relayer ready", map[string]string{
			"address": r.Address().Hex(),
		})
	} else {
		logger.Warn("[run] relayer private key not configured, minting disabled")
	}

	alerter := webhook.New(appConfig.Alert.WebhookURL, logger)

	ctrl, err := controller.New(appConfig, baseRPC, verifier.New(usdcDecoder), processed, minter, alerter, businessMetrics, logger)
	if err != nil {
		return errors.Wrap(err, "init controller")
	}

	jsm := monitoring.NewJobStatusManager(logger, jobMetrics)
	go jsm.Run(ctx, stalledCheckEvery)

	c := cron.New()
	jsm.RegisterJob(ledgerSweepJob)
	sweep := monitoring.NewInstrumentedJob(ledgerSweepJob, func(ctx context.Context) (map[string]interface{}, error) {
		swept, err := processed.SweepExpired(ctx)
		if err != nil {
			return nil, err
		}
		jobMetrics.RecordSweptEntries(processed.Backend(), swept)
		return map[string]interface{}{
			"backend": processed.Backend(),
			"swept":   swept,
		}, nil
	}, jsm, logger, ledgerSweepTimeout)
	if _, err := c.AddJob(appConfig.Ledger.SweepSchedule, sweep); err != nil {
		return errors.Wrapf(err, "schedule %s", ledgerSweepJob)
	}
	c.Start()
	defer c.Stop()

	h := handler.New(appConfig, logger, handler.Deps{
		Controller:       ctrl,
		BaseRPC:          baseRPC,
		Ledger:           processed,
		Relayer:          minter,
		DB:               db,
		MetricsRegistry:  registry,
		JobStatusManager: jsm,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.ApiServer.Port,
		Handler:           httptransport.NewHttpServer(appConfig, h, httpMetrics),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout(appConfig),
		IdleTimeout:       idleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("[run] http server listening", map[string]string{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	logger.Info("[run] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// in-flight mints keep running until their handlers return
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}

// writeTimeout leaves room for a mint to be submitted and confirmed before the response is cut.
func writeTimeout(appConfig *config.AppConfig) time.Duration {
	return appConfig.Relayer.SubmitTimeout + appConfig.Relayer.ConfirmTimeout + shutdownTimeout
}

// relayerKey prefers RELAYER_PRIVATE_KEY and falls back to Vault when a secret key is configured.
func relayerKey(ctx context.Context, appConfig *config.AppConfig) (string, error) {
	if appConfig.Relayer.PrivateKey != "" {
		return appConfig.Relayer.PrivateKey, nil
	}
	if appConfig.Relayer.VaultSecretKey == "" || appConfig.Vault.Address == "" {
		return "", nil
	}

	vc, err := vault.New(ctx, appConfig.Vault)
	if err != nil {
		return "", err
	}
	return vc.GetKV(ctx, appConfig.Relayer.VaultSecretKey)
}
