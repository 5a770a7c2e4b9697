package transaction

import (
	"github.com/gin-gonic/gin"
)

type IHandler interface {
	// ListPayments retrieves processed payments recorded in the ledger with optional filtering
	ListPayments(c *gin.Context)
	GetPayment(c *gin.Context)
}

type ListPaymentsRequest struct {
	Limit       int    `form:"limit" json:"limit"`
	Offset      int    `form:"offset" json:"offset"`
	State       string `form:"state" json:"state" binding:"omitempty,oneof=in_flight minted"`
	Beneficiary string `form:"beneficiary" json:"beneficiary" binding:"omitempty,eth_addr"`
}
