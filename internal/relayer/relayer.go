package relayer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/dwarvesf/mint-relayer/contracts/token"
	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

const (
	gasBufferNumerator   = 120
	gasBufferDenominator = 100
)

var (
	ErrMintNotSubmitted = errors.New("mint transaction not submitted")
	ErrMintUnconfirmed  = errors.New("mint transaction submitted but not confirmed")
	ErrMintReverted     = errors.New("mint transaction reverted")
	ErrInvalidKey       = errors.New("invalid relayer private key")
)

type minter interface {
	Mint(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
}

type Relayer struct {
	mu sync.Mutex

	auth          *bind.TransactOpts
	token         common.Address
	tokenABI      *abi.ABI
	transactor    minter
	estimator     ethereum.GasEstimator
	sender        ethereum.TransactionSender
	waitMined     func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	fallbackGas   uint64
	submitTimeout time.Duration
	waitTimeout   time.Duration
	logger        *logger.Logger
}

// sendError marks a broadcast whose fate is unknown: the node may hold the transaction.
type sendError struct {
	tx  *types.Transaction
	err error
}

func (e *sendError) Error() string { return e.err.Error() }

func (e *sendError) Unwrap() error { return e.err }

func New(ctx context.Context, appConfig *config.AppConfig, client *ethclient.Client, privateKey string, logger *logger.Logger) (*Relayer, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch chain id")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "build transactor")
	}

	tokenAddr := common.HexToAddress(appConfig.Blockchain.TokenContractAddr)
	transactor, err := token.NewTokenTransactor(tokenAddr, client)
	if err != nil {
		return nil, errors.Wrap(err, "bind token transactor")
	}

	r, err := newRelayer(auth, tokenAddr, transactor, client, client, func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, client, tx)
	}, appConfig.Relayer.FallbackGasLimit, appConfig.Relayer.SubmitTimeout, appConfig.Relayer.ConfirmTimeout, logger)
	if err != nil {
		return nil, err
	}

	r.checkTokenDecimals(ctx, client, appConfig.Mint.TokenDecimals)
	return r, nil
}

func newRelayer(
	auth *bind.TransactOpts,
	tokenAddr common.Address,
	transactor minter,
	estimator ethereum.GasEstimator,
	sender ethereum.TransactionSender,
	waitMined func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error),
	fallbackGas uint64,
	submitTimeout time.Duration,
	waitTimeout time.Duration,
	logger *logger.Logger,
) (*Relayer, error) {
	parsed, err := token.TokenMetaData.GetAbi()
	if err != nil {
		return nil, errors.Wrap(err, "parse token abi")
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 2 * time.Minute
	}

	return &Relayer{
		auth:          auth,
		token:         tokenAddr,
		tokenABI:      parsed,
		transactor:    transactor,
		estimator:     estimator,
		sender:        sender,
		waitMined:     waitMined,
		fallbackGas:   fallbackGas,
		submitTimeout: submitTimeout,
		waitTimeout:   waitTimeout,
		logger:        logger,
	}, nil
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, errors.Wrap(ErrInvalidKey, "empty key")
	}

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		// never echo key material
		return nil, errors.Wrap(ErrInvalidKey, "malformed hex key")
	}
	return key, nil
}

func (r *Relayer) Address() common.Address {
	return r.auth.From
}

func (r *Relayer) Mint(ctx context.Context, beneficiary common.Address, amount *uint256.Int) (*model.MintOutcome, error) {
	tx, gasLimit, err := r.submit(ctx, beneficiary, amount)
	if err != nil {
		fields := map[string]string{
			"beneficiary": beneficiary.Hex(),
			"amount":      amount.Dec(),
			"error":       err.Error(),
		}
		var unsure *sendError
		if errors.As(err, &unsure) {
			fields["mintTxHash"] = unsure.tx.Hash().Hex()
			r.logger.Error("[Mint][submit] broadcast outcome unknown", fields)
			return &model.MintOutcome{TxHash: unsure.tx.Hash(), GasLimit: gasLimit}, errors.Wrap(ErrMintUnconfirmed, err.Error())
		}
		r.logger.Error("[Mint][submit]", fields)
		return nil, errors.Wrap(ErrMintNotSubmitted, err.Error())
	}

	outcome := &model.MintOutcome{
		TxHash:   tx.Hash(),
		GasLimit: gasLimit,
	}
	r.logger.Info("[Mint][submit] mint transaction sent", map[string]string{
		"mintTxHash":  tx.Hash().Hex(),
		"beneficiary": beneficiary.Hex(),
		"gasLimit":    strconv.FormatUint(gasLimit, 10),
	})

	// the transaction is out; a caller going away must not stop the wait
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.waitTimeout)
	defer cancel()

	receipt, err := r.waitMined(waitCtx, tx)
	if err != nil {
		r.logger.Error("[Mint][waitMined]", map[string]string{
			"mintTxHash": tx.Hash().Hex(),
			"error":      err.Error(),
		})
		return outcome, errors.Wrap(ErrMintUnconfirmed, err.Error())
	}

	outcome.Status = receipt.Status
	outcome.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return outcome, errors.Wrapf(ErrMintReverted, "tx %s", tx.Hash().Hex())
	}

	return outcome, nil
}

// submit holds the lock only while the nonce is being consumed, and never
// longer than submitTimeout. Errors after signing come back as *sendError
// unless the node answered with a JSON-RPC rejection.
func (r *Relayer) submit(ctx context.Context, beneficiary common.Address, amount *uint256.Int) (*types.Transaction, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.submitTimeout)
	defer cancel()

	gasLimit, err := r.estimateGas(ctx, beneficiary, amount)
	if err != nil {
		return nil, gasLimit, err
	}

	opts := *r.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit
	opts.NoSend = true

	tx, err := r.transactor.Mint(&opts, beneficiary, amount.ToBig())
	if err != nil {
		return nil, gasLimit, errors.Wrap(err, "sign mint")
	}

	if err := r.sender.SendTransaction(ctx, tx); err != nil {
		var rejected rpc.Error
		if errors.As(err, &rejected) {
			return nil, gasLimit, errors.Wrap(err, "node rejected mint")
		}
		return nil, gasLimit, &sendError{tx: tx, err: errors.Wrap(err, "send mint")}
	}
	return tx, gasLimit, nil
}

// estimateGas falls back to the configured limit when estimation fails, but
// not when the submit deadline is already spent.
func (r *Relayer) estimateGas(ctx context.Context, beneficiary common.Address, amount *uint256.Int) (uint64, error) {
	data, err := r.tokenABI.Pack("mint", beneficiary, amount.ToBig())
	if err != nil {
		r.logger.Warn("[estimateGas][Pack] using fallback gas limit", map[string]string{"error": err.Error()})
		return r.fallbackGas, nil
	}

	estimate, err := r.estimator.EstimateGas(ctx, ethereum.CallMsg{
		From: r.auth.From,
		To:   &r.token,
		Data: data,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, errors.Wrap(ctxErr, "estimate gas")
		}
		r.logger.Warn("[estimateGas][EstimateGas] using fallback gas limit", map[string]string{"error": err.Error()})
		return r.fallbackGas, nil
	}

	buffered, ok := applyGasBuffer(estimate)
	if !ok {
		return r.fallbackGas, nil
	}
	return buffered, nil
}

// applyGasBuffer adds 20% headroom to an estimate, failing if the result leaves uint64.
func applyGasBuffer(estimate uint64) (uint64, bool) {
	buffered, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(estimate),
		uint256.NewInt(gasBufferNumerator),
		uint256.NewInt(gasBufferDenominator),
	)
	if overflow || !buffered.IsUint64() {
		return 0, false
	}
	return buffered.Uint64(), true
}

func (r *Relayer) checkTokenDecimals(ctx context.Context, client *ethclient.Client, expected int) {
	caller, err := token.NewTokenCaller(r.token, client)
	if err != nil {
		return
	}

	decimals, err := caller.Decimals(&bind.CallOpts{Context: ctx})
	if err != nil {
		r.logger.Warn("[checkTokenDecimals][Decimals] could not read token decimals", map[string]string{
			"token": r.token.Hex(),
			"error": err.Error(),
		})
		return
	}
	if int(decimals) != expected {
		r.logger.Warn("[checkTokenDecimals] configured mint decimals differ from token", map[string]string{
			"token":      r.token.Hex(),
			"configured": strconv.Itoa(expected),
			"onchain":    strconv.Itoa(int(decimals)),
		})
	}
}
