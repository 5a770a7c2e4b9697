package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/store/processedpayment"
)

// PostgresBackend keeps marks in processed_payments. Minted rows never expire.
type PostgresBackend struct {
	db    *gorm.DB
	store processedpayment.IStore
	now   func() time.Time
}

func NewPostgresBackend(db *gorm.DB, store processedpayment.IStore) *PostgresBackend {
	return &PostgresBackend{
		db:    db,
		store: store,
		now:   time.Now,
	}
}

func (p *PostgresBackend) Name() string { return "postgres" }

func (p *PostgresBackend) IsMarked(ctx context.Context, key string) (bool, error) {
	exists, err := p.store.ExistsActive(p.db.WithContext(ctx), key, p.now())
	if err != nil {
		return false, errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return exists, nil
}

func (p *PostgresBackend) Mark(ctx context.Context, key string, entry Entry, ttl time.Duration) (bool, error) {
	now := p.now()
	reserved, err := p.store.Reserve(p.db.WithContext(ctx), &model.ProcessedPayment{
		TxHash:       key,
		State:        model.ProcessedPaymentStateInFlight,
		Beneficiary:  entry.Beneficiary,
		PaymentFrom:  entry.PaymentFrom,
		PaymentValue: entry.PaymentValue,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, now)
	if err != nil {
		return false, errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return reserved, nil
}

func (p *PostgresBackend) Complete(ctx context.Context, key, mintTxHash string) error {
	if err := p.store.MarkMinted(p.db.WithContext(ctx), key, mintTxHash); err != nil {
		return errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return nil
}

func (p *PostgresBackend) Unmark(ctx context.Context, key string) error {
	if err := p.store.Delete(p.db.WithContext(ctx), key); err != nil {
		return errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return nil
}

func (p *PostgresBackend) SweepExpired(ctx context.Context) (int64, error) {
	return p.store.DeleteExpired(p.db.WithContext(ctx), p.now())
}
