package store

import (
	"github.com/dwarvesf/mint-relayer/internal/store/processedpayment"
)

// Store groups the table stores backed by postgres.
type Store struct {
	ProcessedPayment processedpayment.IStore
}

func New() *Store {
	return &Store{
		ProcessedPayment: processedpayment.New(),
	}
}
