package processedpayment

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/model"
)

type IStore interface {
	// Reserve inserts payment unless an unexpired row for the same tx hash exists.
	// It reports whether this call took the reservation.
	Reserve(tx *gorm.DB, payment *model.ProcessedPayment, now time.Time) (bool, error)
	ExistsActive(tx *gorm.DB, txHash string, now time.Time) (bool, error)
	MarkMinted(tx *gorm.DB, txHash, mintTxHash string) error
	Delete(tx *gorm.DB, txHash string) error
	DeleteExpired(tx *gorm.DB, now time.Time) (int64, error)
	GetByTxHash(tx *gorm.DB, txHash string) (*model.ProcessedPayment, error)
	List(tx *gorm.DB, filter model.ListProcessedPaymentFilter) ([]model.ProcessedPayment, int64, error)
}
