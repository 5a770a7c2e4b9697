package controller

import (
	"context"
)

type IController interface {
	// VerifyPayment checks a payment without side effects. Confirmation depth is not required.
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error)

	// VerifyAndMint checks a payment, records it as processed and mints to the beneficiary.
	// A non-nil result is returned alongside a mint error when the mint tx hash is known.
	VerifyAndMint(ctx context.Context, req MintRequest) (*MintResult, error)
}
