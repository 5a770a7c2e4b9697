package processedpayment

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/mint-relayer/internal/model"
)

type Store struct{}

func New() IStore {
	return &Store{}
}

func (s *Store) Reserve(tx *gorm.DB, payment *model.ProcessedPayment, now time.Time) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tx_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "beneficiary", "payment_from", "payment_value",
			"mint_tx_hash", "expires_at", "created_at", "updated_at",
		}),
		// only an expired in-flight row is reclaimable; minted rows are permanent
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: model.ProcessedPayment{}.TableName(), Name: "expires_at"}, Value: now},
			clause.Eq{Column: clause.Column{Table: model.ProcessedPayment{}.TableName(), Name: "state"}, Value: model.ProcessedPaymentStateInFlight},
		}},
	}).Create(payment)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

func (s *Store) ExistsActive(tx *gorm.DB, txHash string, now time.Time) (bool, error) {
	var count int64
	err := tx.Model(&model.ProcessedPayment{}).
		Where("tx_hash = ? AND (state = ? OR expires_at > ?)", txHash, model.ProcessedPaymentStateMinted, now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) MarkMinted(tx *gorm.DB, txHash, mintTxHash string) error {
	return tx.Model(&model.ProcessedPayment{}).
		Where("tx_hash = ?", txHash).
		Updates(map[string]interface{}{
			"state":        model.ProcessedPaymentStateMinted,
			"mint_tx_hash": mintTxHash,
		}).Error
}

func (s *Store) Delete(tx *gorm.DB, txHash string) error {
	return tx.Where("tx_hash = ?", txHash).Delete(&model.ProcessedPayment{}).Error
}

// DeleteExpired removes expired in-flight reservations. Minted rows are kept as history.
func (s *Store) DeleteExpired(tx *gorm.DB, now time.Time) (int64, error) {
	res := tx.Where("expires_at < ? AND state = ?", now, model.ProcessedPaymentStateInFlight).
		Delete(&model.ProcessedPayment{})
	return res.RowsAffected, res.Error
}

func (s *Store) GetByTxHash(tx *gorm.DB, txHash string) (*model.ProcessedPayment, error) {
	var payment model.ProcessedPayment
	err := tx.Where("tx_hash = ?", txHash).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) List(tx *gorm.DB, filter model.ListProcessedPaymentFilter) ([]model.ProcessedPayment, int64, error) {
	query := tx.Model(&model.ProcessedPayment{})
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Beneficiary != "" {
		query = query.Where("LOWER(beneficiary) = LOWER(?)", filter.Beneficiary)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var payments []model.ProcessedPayment
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
