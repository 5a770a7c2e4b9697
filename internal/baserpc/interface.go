package baserpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dwarvesf/mint-relayer/internal/model"
)

type IBaseRPC interface {
	Client() *ethclient.Client

	// TransactionReceipt returns ErrReceiptNotFound while the tx is unknown or pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, address common.Address) (*model.Web3BigInt, error)
}
