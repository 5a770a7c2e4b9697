package baserpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

var (
	ErrReceiptNotFound     = errors.New("transaction receipt not found")
	ErrUpstreamUnavailable = errors.New("chain rpc unavailable")
)

// chainBackend is the subset of ethclient.Client used for reads.
type chainBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type BaseRPC struct {
	client  *ethclient.Client
	backend chainBackend
	timeout time.Duration
	logger  *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*BaseRPC, error) {
	client, err := ethclient.Dial(appConfig.Blockchain.BaseRPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "dial base rpc")
	}

	rpc := NewWithBackend(client, appConfig.Blockchain.RPCTimeout, logger)
	rpc.client = client
	return rpc, nil
}

func NewWithBackend(backend chainBackend, timeout time.Duration, logger *logger.Logger) *BaseRPC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BaseRPC{
		backend: backend,
		timeout: timeout,
		logger:  logger,
	}
}

func (b *BaseRPC) Client() *ethclient.Client {
	return b.client
}

func (b *BaseRPC) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	receipt, err := b.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		b.logger.Error("[TransactionReceipt][backend.TransactionReceipt]", map[string]string{
			"txHash": hash.Hex(),
			"error":  err.Error(),
		})
		return nil, errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}

	return receipt, nil
}

func (b *BaseRPC) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	head, err := b.backend.BlockNumber(ctx)
	if err != nil {
		b.logger.Error("[BlockNumber][backend.BlockNumber]", map[string]string{
			"error": err.Error(),
		})
		return 0, errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}

	return head, nil
}

// BalanceAt returns the native balance of address at the latest block.
func (b *BaseRPC) BalanceAt(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	balance, err := b.backend.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}

	return &model.Web3BigInt{
		Value:   balance.String(),
		Decimal: 18,
	}, nil
}
