package payment

import "github.com/gin-gonic/gin"

type IHandler interface {
	// Verify checks a payment transaction without minting
	Verify(c *gin.Context)

	// Mint verifies a payment transaction and mints to the beneficiary
	Mint(c *gin.Context)
}
