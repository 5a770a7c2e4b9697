package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dwarvesf/mint-relayer/internal/controller"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
	"github.com/dwarvesf/mint-relayer/internal/view"
)

type VerifyRequest struct {
	TxHash string `json:"txHash" binding:"required"`
	To     string `json:"to" binding:"omitempty,eth_addr"`
}

type MintRequest struct {
	TxHash      string `json:"txHash" binding:"required"`
	Beneficiary string `json:"beneficiary" binding:"required"`
}

type handler struct {
	controller controller.IController
	logger     *logger.Logger
}

func New(controller controller.IController, logger *logger.Logger) IHandler {
	return &handler{
		controller: controller,
		logger:     logger,
	}
}

// Verify godoc
// @Summary Verify a USDC payment
// @Description Checks that a transaction carries a USDC transfer of the configured price, optionally to a given recipient. Nothing is recorded.
// @id verifyPayment
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Payment to verify"
// @Success 200 {object} view.VerifyResponse
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /verify [post]
func (h *handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.ErrorResponse{Error: verifyBindingReason(err)})
		return
	}

	res, err := h.controller.VerifyPayment(c.Request.Context(), controller.VerifyRequest{
		TxHash: req.TxHash,
		To:     req.To,
	})
	if err != nil {
		status := statusFor(controller.KindOf(err))
		h.logFailure("[Verify][VerifyPayment]", status, req.TxHash, err)
		c.JSON(status, view.ErrorResponse{Error: controller.Reason(err)})
		return
	}

	c.JSON(http.StatusOK, view.VerifyResponse{
		Valid:       res.Valid,
		From:        res.From,
		To:          res.To,
		Value:       res.Value,
		BlockNumber: res.BlockNumber,
		Reason:      res.Reason,
	})
}

// Mint godoc
// @Summary Verify a USDC payment and mint tokens
// @Description Verifies the payment with the required confirmations, records it as processed and mints the configured amount to the beneficiary. Each payment mints at most once.
// @id mint
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body MintRequest true "Payment and beneficiary"
// @Success 200 {object} view.MintResponse
// @Failure 400 {object} view.MintResponse
// @Failure 404 {object} view.MintResponse
// @Failure 500 {object} view.MintResponse
// @Router /mint [post]
func (h *handler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.MintResponse{Reason: "txHash and beneficiary required"})
		return
	}

	res, err := h.controller.VerifyAndMint(c.Request.Context(), controller.MintRequest{
		TxHash:      req.TxHash,
		Beneficiary: req.Beneficiary,
	})
	if err != nil {
		kind := controller.KindOf(err)
		status := statusFor(kind)
		h.logFailure("[Mint][VerifyAndMint]", status, req.TxHash, err)

		resp := view.MintResponse{}
		if res != nil {
			resp.MintTxHash = res.MintTxHash
		}
		if kind == controller.KindInternal {
			resp.Error = err.Error()
		} else {
			resp.Reason = controller.Reason(err)
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, view.MintResponse{
		Success:      true,
		MintTxHash:   res.MintTxHash,
		PaymentFrom:  res.PaymentFrom,
		PaymentValue: res.PaymentValue,
		BlockNumber:  res.BlockNumber,
	})
}

func statusFor(kind controller.ErrorKind) int {
	switch kind {
	case controller.KindValidation, controller.KindPolicy:
		return http.StatusBadRequest
	case controller.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func verifyBindingReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "To" {
				return "Invalid to address"
			}
		}
	}
	return "txHash required"
}

func (h *handler) logFailure(tag string, status int, txHash string, err error) {
	fields := map[string]string{
		"txHash": txHash,
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(tag, fields)
		return
	}
	h.logger.Info(tag, fields)
}
