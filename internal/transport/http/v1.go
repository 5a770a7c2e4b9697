package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/mint-relayer/internal/handler"
)

func loadPaymentRoutes(r *gin.Engine, h *handler.Handler) {
	r.POST("/verify", h.PaymentHandler.Verify)
	r.POST("/mint", h.PaymentHandler.Mint)

	// legacy paths kept for existing web clients
	api := r.Group("/api")
	{
		api.POST("/verify-payment", h.PaymentHandler.Verify)
		api.POST("/mint", h.PaymentHandler.Mint)
	}
}

func loadV1Routes(r *gin.Engine, h *handler.Handler) {
	v1 := r.Group("/api/v1")

	if h.TransactionHandler != nil {
		payments := v1.Group("/payments")
		{
			payments.GET("", h.TransactionHandler.ListPayments)
			payments.GET("/:tx_hash", h.TransactionHandler.GetPayment)
		}
	}

	health := v1.Group("/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}

	// health check
	r.GET("/healthz", h.HealthHandler.Basic)
}
