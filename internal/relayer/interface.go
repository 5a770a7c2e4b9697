package relayer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/dwarvesf/mint-relayer/internal/model"
)

type IRelayer interface {
	Address() common.Address

	// Mint submits mint(beneficiary, amount) and waits for it to be mined.
	// Errors wrap ErrMintNotSubmitted, ErrMintUnconfirmed or ErrMintReverted; the
	// outcome is non-nil whenever a transaction hash is known.
	Mint(ctx context.Context, beneficiary common.Address, amount *uint256.Int) (*model.MintOutcome, error)
}
