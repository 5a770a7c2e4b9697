package main

import (
	"github.com/dwarvesf/mint-relayer/internal/server"
)

// @title Mint Relayer API
// @version 1.0
// @description Verifies USDC payments on Base and mints tokens to the payer's beneficiary.
// @BasePath /
func main() {
	server.Init()
}
