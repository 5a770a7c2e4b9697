package controller

import (
	"github.com/pkg/errors"
)

var (
	ErrMissingFields             = errors.New("missing required fields")
	ErrInvalidTxHash             = errors.New("invalid tx hash")
	ErrInvalidBeneficiary        = errors.New("invalid beneficiary address")
	ErrInvalidRecipient          = errors.New("invalid recipient address")
	ErrAlreadyProcessed          = errors.New("tx hash already processed")
	ErrRelayerNotConfigured      = errors.New("relayer not configured")
	ErrReceiptNotFound           = errors.New("receipt not found")
	ErrInsufficientConfirmations = errors.New("insufficient confirmations")
	ErrNoMatchingTransfer        = errors.New("no matching transfer")
	ErrUpstream                  = errors.New("upstream unavailable")
	ErrMintFailed                = errors.New("mint failed")
	ErrMintUnconfirmed           = errors.New("mint unconfirmed")
	ErrMintReverted              = errors.New("mint reverted")
)

// ErrorKind groups failures by how a caller should react to them.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindPolicy       ErrorKind = "policy"
	KindUpstream     ErrorKind = "upstream"
	KindMintFailed   ErrorKind = "mint_failed"
	KindMintReverted ErrorKind = "mint_reverted"
	KindInternal     ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrMissingFields, KindValidation},
	{ErrInvalidTxHash, KindValidation},
	{ErrInvalidBeneficiary, KindValidation},
	{ErrInvalidRecipient, KindValidation},
	{ErrReceiptNotFound, KindNotFound},
	{ErrAlreadyProcessed, KindPolicy},
	{ErrInsufficientConfirmations, KindPolicy},
	{ErrNoMatchingTransfer, KindPolicy},
	{ErrRelayerNotConfigured, KindUpstream},
	{ErrUpstream, KindUpstream},
	{ErrMintFailed, KindMintFailed},
	{ErrMintUnconfirmed, KindMintFailed},
	{ErrMintReverted, KindMintReverted},
}

func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// RejectError pairs a sentinel with the reason shown to the client.
type RejectError struct {
	Cause  error
	Reason string
}

func (e *RejectError) Error() string {
	return e.Reason
}

func (e *RejectError) Unwrap() error {
	return e.Cause
}

func reject(cause error, reason string) error {
	return &RejectError{Cause: cause, Reason: reason}
}

// Reason returns the client-facing text for err.
func Reason(err error) string {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
