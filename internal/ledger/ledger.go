// Package ledger remembers which payment transactions have already been used
// to mint, so the same payment cannot mint twice.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/store"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

// Recorder receives ledger operation outcomes, usually prometheus counters.
type Recorder interface {
	RecordLedgerOperation(backend, operation, status string)
}

type ILedger interface {
	Backend() string
	IsMarked(ctx context.Context, txHash string) bool
	Mark(ctx context.Context, txHash string, entry Entry) bool
	Complete(ctx context.Context, txHash, mintTxHash string)
	Unmark(ctx context.Context, txHash string) error
	Ping(ctx context.Context) error
	SweepExpired(ctx context.Context) (int64, error)
}

// Ledger pairs a shared backend with an in-process set. The local set makes
// Mark atomic within the process and keeps marks alive while the backend is down.
type Ledger struct {
	backend  Backend
	local    *cache.Cache
	ttl      time.Duration
	logger   *logger.Logger
	recorder Recorder
}

func New(backend Backend, ttl time.Duration, logger *logger.Logger, recorder Recorder) *Ledger {
	return &Ledger{
		backend:  backend,
		local:    cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
		logger:   logger,
		recorder: recorder,
	}
}

// NewBackend picks the backend from config. With LEDGER_BACKEND unset, Upstash
// wins when configured, then postgres when db is available, then memory.
func NewBackend(appConfig *config.AppConfig, db *gorm.DB) (Backend, error) {
	cfg := appConfig.Ledger
	upstashReady := cfg.UpstashURL != "" && cfg.UpstashToken != ""

	switch strings.ToLower(cfg.Backend) {
	case "upstash":
		if !upstashReady {
			return nil, errors.New("upstash ledger requires UPSTASH_REDIS_REST_URL and UPSTASH_REDIS_REST_TOKEN")
		}
		return NewUpstashBackend(cfg.UpstashURL, cfg.UpstashToken, cfg.RequestTimeout), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres ledger requires a database connection")
		}
		return NewPostgresBackend(db, store.New().ProcessedPayment), nil
	case "memory":
		return NewMemoryBackend(), nil
	case "":
	default:
		return nil, errors.Errorf("unknown ledger backend %q", cfg.Backend)
	}

	if upstashReady {
		return NewUpstashBackend(cfg.UpstashURL, cfg.UpstashToken, cfg.RequestTimeout), nil
	}
	if db != nil {
		return NewPostgresBackend(db, store.New().ProcessedPayment), nil
	}
	return NewMemoryBackend(), nil
}

func (l *Ledger) Backend() string {
	return l.backend.Name()
}

func (l *Ledger) IsMarked(ctx context.Context, txHash string) bool {
	key := model.CanonicalTxHash(txHash)
	if _, found := l.local.Get(key); found {
		return true
	}

	marked, err := l.backend.IsMarked(ctx, key)
	if err != nil {
		l.fallback("is_marked", key, err)
		return false
	}
	l.record("is_marked", "success")
	return marked
}

func (l *Ledger) Mark(ctx context.Context, txHash string, entry Entry) bool {
	key := model.CanonicalTxHash(txHash)

	if err := l.local.Add(key, model.ProcessedPaymentStateInFlight, l.ttl); err != nil {
		l.record("mark", "conflict")
		return false
	}

	marked, err := l.backend.Mark(ctx, key, entry, l.ttl)
	if err != nil {
		// the local mark stands in for the backend for the rest of its ttl
		l.fallback("mark", key, err)
		return true
	}
	if !marked {
		l.local.Delete(key)
		l.record("mark", "conflict")
		return false
	}

	l.record("mark", "success")
	return true
}

func (l *Ledger) Complete(ctx context.Context, txHash, mintTxHash string) {
	key := model.CanonicalTxHash(txHash)
	l.local.Set(key, model.ProcessedPaymentStateMinted, l.ttl)

	if err := l.backend.Complete(ctx, key, mintTxHash); err != nil {
		l.fallback("complete", key, err)
		return
	}
	l.record("complete", "success")
}

// Unmark releases a mark after a mint that is known not to have happened.
func (l *Ledger) Unmark(ctx context.Context, txHash string) error {
	key := model.CanonicalTxHash(txHash)
	l.local.Delete(key)

	if err := l.backend.Unmark(ctx, key); err != nil {
		l.record("unmark", "error")
		return errors.Wrapf(err, "unmark %s", key)
	}
	l.record("unmark", "success")
	return nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	l.local.DeleteExpired()

	sweeper, ok := l.backend.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sweeper.SweepExpired(ctx)
}

func (l *Ledger) fallback(operation, key string, err error) {
	l.logger.Warn("[Ledger][fallback] backend failed, using in-process set", map[string]string{
		"backend":   l.backend.Name(),
		"operation": operation,
		"txHash":    key,
		"error":     err.Error(),
	})
	l.record(operation, "fallback")
}

func (l *Ledger) record(operation, status string) {
	if l.recorder != nil {
		l.recorder.RecordLedgerOperation(l.backend.Name(), operation, status)
	}
}
