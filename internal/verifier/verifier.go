// Package verifier decides whether a receipt proves a qualifying payment.
// Evaluation is pure: it reads the receipt and head block it is given and nothing else.
package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/dwarvesf/mint-relayer/internal/decoder"
	"github.com/dwarvesf/mint-relayer/internal/model"
)

type Kind string

const (
	KindQualifying                Kind = "qualifying"
	KindInsufficientConfirmations Kind = "insufficient_confirmations"
	KindNoMatchingTransfer        Kind = "no_matching_transfer"
	KindNotFound                  Kind = "not_found"
)

const (
	ReasonNoMatchingTransfer = "No matching USDC transfer of expected amount to token contract found in tx logs"
	ReasonPaymentReverted    = "Payment transaction reverted"
)

// Policy describes the payment being looked for. A nil Recipient accepts any
// recipient; zero RequiredConfirmations skips the depth check.
type Policy struct {
	Recipient             *common.Address
	Amount                *uint256.Int
	RequiredConfirmations uint64
}

type Result struct {
	Kind          Kind
	Transfer      *model.TransferEvent
	BlockNumber   uint64
	Confirmations uint64
	Required      uint64
	Reason        string
}

func (r Result) Qualifying() bool {
	return r.Kind == KindQualifying
}

type Verifier struct {
	decoder *decoder.Decoder
}

func New(d *decoder.Decoder) *Verifier {
	return &Verifier{decoder: d}
}

// Confirmations counts the receipt block itself, so a tx in the head block has one.
func Confirmations(head, receiptBlock uint64) uint64 {
	if head < receiptBlock {
		return 0
	}
	return head - receiptBlock + 1
}

func (v *Verifier) Evaluate(receipt *types.Receipt, head uint64, policy Policy) Result {
	if receipt == nil || receipt.BlockNumber == nil {
		return Result{Kind: KindNotFound, Reason: "Transaction receipt not found yet"}
	}

	block := receipt.BlockNumber.Uint64()
	res := Result{
		BlockNumber:   block,
		Confirmations: Confirmations(head, block),
		Required:      policy.RequiredConfirmations,
	}

	if policy.RequiredConfirmations > 0 && res.Confirmations < policy.RequiredConfirmations {
		res.Kind = KindInsufficientConfirmations
		res.Reason = fmt.Sprintf("Transaction has %d confirmations; require %d", res.Confirmations, policy.RequiredConfirmations)
		return res
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		res.Kind = KindNoMatchingTransfer
		res.Reason = ReasonPaymentReverted
		return res
	}

	ev := v.decoder.Scan(receipt.Logs, func(ev *model.TransferEvent) bool {
		if policy.Recipient != nil && ev.To != *policy.Recipient {
			return false
		}
		return policy.Amount != nil && ev.Value.Eq(policy.Amount)
	})
	if ev == nil {
		res.Kind = KindNoMatchingTransfer
		res.Reason = ReasonNoMatchingTransfer
		return res
	}

	res.Kind = KindQualifying
	res.Transfer = ev
	return res
}
