package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/controller"
	"github.com/dwarvesf/mint-relayer/internal/handler/health"
	"github.com/dwarvesf/mint-relayer/internal/handler/metrics"
	"github.com/dwarvesf/mint-relayer/internal/handler/payment"
	"github.com/dwarvesf/mint-relayer/internal/handler/transaction"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/monitoring"
	"github.com/dwarvesf/mint-relayer/internal/relayer"
	"github.com/dwarvesf/mint-relayer/internal/store"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

type Handler struct {
	PaymentHandler     payment.IHandler
	TransactionHandler transaction.IHandler // nil without a database
	HealthHandler      health.IHealthHandler
	MetricsHandler     *metrics.MetricsHandler
}

// Deps carries everything the HTTP handlers read from. DB, Relayer and
// JobStatusManager are optional.
type Deps struct {
	Controller       controller.IController
	BaseRPC          baserpc.IBaseRPC
	Ledger           ledger.ILedger
	Relayer          relayer.IRelayer
	DB               *gorm.DB
	MetricsRegistry  *prometheus.Registry
	JobStatusManager *monitoring.JobStatusManager
}

func New(appConfig *config.AppConfig, logger *logger.Logger, deps Deps) *Handler {
	h := &Handler{
		PaymentHandler: payment.New(deps.Controller, logger),
		HealthHandler:  health.New(appConfig, logger, deps.DB, deps.BaseRPC, deps.Ledger, deps.Relayer, deps.JobStatusManager),
		MetricsHandler: metrics.NewMetricsHandler(deps.MetricsRegistry),
	}
	if deps.DB != nil {
		h.TransactionHandler = transaction.NewTransactionHandler(deps.DB, store.New().ProcessedPayment, logger)
	}
	return h
}
