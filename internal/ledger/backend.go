package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrBackendUnavailable = errors.New("ledger backend unavailable")

// Entry is the payment context stored alongside a mark.
type Entry struct {
	Beneficiary  string
	PaymentFrom  string
	PaymentValue string
}

// Backend is a shared store with atomic set-if-absent semantics. Keys are
// canonical (lowercase) tx hashes.
type Backend interface {
	Name() string
	IsMarked(ctx context.Context, key string) (bool, error)
	// Mark sets key if absent and reports whether this call set it.
	Mark(ctx context.Context, key string, entry Entry, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, key, mintTxHash string) error
	Unmark(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Sweeper is implemented by backends whose expired entries must be removed explicitly.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// MemoryBackend keeps nothing outside the process; the ledger's local set does all the work.
type MemoryBackend struct{}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (MemoryBackend) Name() string { return "memory" }

func (MemoryBackend) IsMarked(context.Context, string) (bool, error) { return false, nil }

func (MemoryBackend) Mark(context.Context, string, Entry, time.Duration) (bool, error) {
	return true, nil
}

func (MemoryBackend) Complete(context.Context, string, string) error { return nil }

func (MemoryBackend) Unmark(context.Context, string) error { return nil }

func (MemoryBackend) Ping(context.Context) error { return nil }
