package transaction

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/store/processedpayment"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
	"github.com/dwarvesf/mint-relayer/internal/view"
)

const (
	defaultLimit = 5
	maxLimit     = 100
)

type transactionHandler struct {
	db               *gorm.DB
	processedPayment processedpayment.IStore
	logger           *logger.Logger
}

// NewTransactionHandler creates the handler serving the processed payments of the postgres ledger
func NewTransactionHandler(
	db *gorm.DB,
	processedPayment processedpayment.IStore,
	logger *logger.Logger,
) IHandler {
	return &transactionHandler{
		db:               db,
		processedPayment: processedPayment,
		logger:           logger,
	}
}

// ListPayments godoc
// @Summary List processed payments
// @Description Lists ledger records for reconciliation, newest first
// @id listPayments
// @Tags Payment
// @Produce json
// @Param state query string false "in_flight or minted"
// @Param beneficiary query string false "Beneficiary address"
// @Param limit query int false "Page size, default 5, max 100"
// @Param offset query int false "Offset"
// @Success 200 {object} view.PaymentsResponse
// @Failure 400 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /api/v1/payments [get]
func (h *transactionHandler) ListPayments(c *gin.Context) {
	var req ListPaymentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.ErrorResponse{Error: err.Error()})
		return
	}

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	payments, total, err := h.processedPayment.List(h.db, model.ListProcessedPaymentFilter{
		State:       req.State,
		Beneficiary: req.Beneficiary,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		h.logger.Error("[ListPayments][List]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.ErrorResponse{Error: "Failed to fetch payments"})
		return
	}

	resp := view.PaymentsResponse{
		Total:    total,
		Payments: make([]view.Payment, 0, len(payments)),
	}
	for i := range payments {
		resp.Payments = append(resp.Payments, toView(&payments[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// GetPayment godoc
// @Summary Get a processed payment
// @id getPayment
// @Tags Payment
// @Produce json
// @Param tx_hash path string true "Payment transaction hash"
// @Success 200 {object} view.Payment
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /api/v1/payments/{tx_hash} [get]
func (h *transactionHandler) GetPayment(c *gin.Context) {
	txHash := c.Param("tx_hash")
	if !model.IsValidTxHash(txHash) {
		c.JSON(http.StatusBadRequest, view.ErrorResponse{Error: "Invalid txHash format"})
		return
	}

	payment, err := h.processedPayment.GetByTxHash(h.db, model.CanonicalTxHash(txHash))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, view.ErrorResponse{Error: "Payment not found"})
			return
		}
		h.logger.Error("[GetPayment][GetByTxHash]", map[string]string{
			"txHash": txHash,
			"error":  err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.ErrorResponse{Error: "Failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, toView(payment))
}

func toView(p *model.ProcessedPayment) view.Payment {
	return view.Payment{
		TxHash:       p.TxHash,
		State:        string(p.State),
		Beneficiary:  p.Beneficiary,
		PaymentFrom:  p.PaymentFrom,
		PaymentValue: p.PaymentValue,
		MintTxHash:   p.MintTxHash,
		ExpiresAt:    p.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
