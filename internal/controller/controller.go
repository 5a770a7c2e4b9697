package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/relayer"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
	"github.com/dwarvesf/mint-relayer/internal/utils/webhook"
	"github.com/dwarvesf/mint-relayer/internal/verifier"
)

const (
	reasonAlreadyProcessed = "txHash already processed"
	reasonRelayerMissing   = "Relayer private key not configured"
	reasonMintFailed       = "Mint transaction failed"
	reasonUpstream         = "Chain RPC unavailable, try again later"
)

type Alerter interface {
	Notify(ctx context.Context, alert webhook.Alert)
}

type MetricsRecorder interface {
	RecordVerification(source, outcome string, duration float64)
	RecordMint(status string, duration float64)
	RecordCompensation(action, status string)
}

type Controller struct {
	baseRPC  baserpc.IBaseRPC
	verifier *verifier.Verifier
	ledger   ledger.ILedger
	relayer  relayer.IRelayer
	alerter  Alerter
	metrics  MetricsRecorder
	logger   *logger.Logger

	tokenContract         common.Address
	price                 *uint256.Int
	mintAmount            *uint256.Int
	mintDecimals          int
	requiredConfirmations uint64
}

// New builds the controller. relayer may be nil, in which case every mint is
// refused with ErrRelayerNotConfigured while verification keeps working.
func New(
	appConfig *config.AppConfig,
	baseRPC baserpc.IBaseRPC,
	verifier *verifier.Verifier,
	ledger ledger.ILedger,
	relayer relayer.IRelayer,
	alerter Alerter,
	metrics MetricsRecorder,
	logger *logger.Logger,
) (IController, error) {
	if !common.IsHexAddress(appConfig.Blockchain.TokenContractAddr) {
		return nil, errors.Errorf("invalid token contract address %q", appConfig.Blockchain.TokenContractAddr)
	}

	price, err := parseAmount(appConfig.Payment.PriceUSDC, appConfig.Payment.USDCDecimals)
	if err != nil {
		return nil, errors.Wrap(err, "payment price")
	}
	mintAmount, err := parseAmount(appConfig.Mint.Amount, appConfig.Mint.TokenDecimals)
	if err != nil {
		return nil, errors.Wrap(err, "mint amount")
	}

	if metrics == nil {
		metrics = noopMetrics{}
	}
	if alerter == nil {
		alerter = (*webhook.Client)(nil)
	}

	return &Controller{
		baseRPC:               baseRPC,
		verifier:              verifier,
		ledger:                ledger,
		relayer:               relayer,
		alerter:               alerter,
		metrics:               metrics,
		logger:                logger,
		tokenContract:         common.HexToAddress(appConfig.Blockchain.TokenContractAddr),
		price:                 price,
		mintAmount:            mintAmount,
		mintDecimals:          appConfig.Mint.TokenDecimals,
		requiredConfirmations: appConfig.Payment.RequiredConfirmations,
	}, nil
}

func parseAmount(amount string, decimals int) (*uint256.Int, error) {
	w, err := model.ParseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	return w.Uint256()
}

func (c *Controller) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := time.Now()

	if req.TxHash == "" {
		return nil, reject(ErrMissingFields, "txHash required")
	}
	if !model.IsValidTxHash(req.TxHash) {
		return nil, reject(ErrInvalidTxHash, "Invalid txHash format")
	}

	var recipient *common.Address
	if req.To != "" {
		if !common.IsHexAddress(req.To) {
			return nil, reject(ErrInvalidRecipient, "Invalid to address")
		}
		to := common.HexToAddress(req.To)
		recipient = &to
	}

	receipt, err := c.baseRPC.TransactionReceipt(ctx, common.HexToHash(req.TxHash))
	if err != nil {
		return nil, c.chainError("VerifyPayment", req.TxHash, err)
	}

	res := c.verifier.Evaluate(receipt, 0, verifier.Policy{
		Recipient: recipient,
		Amount:    c.price,
	})
	c.metrics.RecordVerification("verify", string(res.Kind), time.Since(start).Seconds())

	if res.Kind == verifier.KindNotFound {
		return nil, reject(ErrReceiptNotFound, res.Reason)
	}
	if !res.Qualifying() {
		return &VerifyResult{Valid: false, Reason: res.Reason}, nil
	}

	return &VerifyResult{
		Valid:       true,
		From:        res.Transfer.From.Hex(),
		To:          res.Transfer.To.Hex(),
		Value:       res.Transfer.Value.Dec(),
		BlockNumber: res.BlockNumber,
	}, nil
}

func (c *Controller) VerifyAndMint(ctx context.Context, req MintRequest) (*MintResult, error) {
	start := time.Now()

	if req.TxHash == "" || req.Beneficiary == "" {
		return nil, reject(ErrMissingFields, "txHash and beneficiary required")
	}
	if !model.IsValidTxHash(req.TxHash) {
		return nil, reject(ErrInvalidTxHash, "Invalid txHash format")
	}
	if !common.IsHexAddress(req.Beneficiary) {
		return nil, reject(ErrInvalidBeneficiary, "Invalid beneficiary address")
	}
	txHash := model.CanonicalTxHash(req.TxHash)
	beneficiary := common.HexToAddress(req.Beneficiary)
	log := c.logger.With(map[string]string{"txHash": txHash})

	if c.ledger.IsMarked(ctx, txHash) {
		return nil, reject(ErrAlreadyProcessed, reasonAlreadyProcessed)
	}
	if c.relayer == nil {
		return nil, reject(ErrRelayerNotConfigured, reasonRelayerMissing)
	}

	receipt, head, err := c.fetchReceiptAndHead(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, c.chainError("VerifyAndMint", txHash, err)
	}

	res := c.verifier.Evaluate(receipt, head, verifier.Policy{
		Recipient:             &c.tokenContract,
		Amount:                c.price,
		RequiredConfirmations: c.requiredConfirmations,
	})
	c.metrics.RecordVerification("mint", string(res.Kind), time.Since(start).Seconds())

	switch res.Kind {
	case verifier.KindQualifying:
	case verifier.KindNotFound:
		return nil, reject(ErrReceiptNotFound, res.Reason)
	case verifier.KindInsufficientConfirmations:
		return nil, reject(ErrInsufficientConfirmations, res.Reason)
	default:
		return nil, reject(ErrNoMatchingTransfer, res.Reason)
	}

	payment := res.Transfer
	if !c.ledger.Mark(ctx, txHash, ledger.Entry{
		Beneficiary:  beneficiary.Hex(),
		PaymentFrom:  payment.From.Hex(),
		PaymentValue: payment.Value.Dec(),
	}) {
		return nil, reject(ErrAlreadyProcessed, reasonAlreadyProcessed)
	}

	mintStart := time.Now()
	outcome, err := c.relayer.Mint(ctx, beneficiary, c.mintAmount)
	if err != nil {
		c.metrics.RecordMint(mintStatus(err), time.Since(mintStart).Seconds())
		log.Error("[VerifyAndMint][relayer.Mint]", map[string]string{
			"beneficiary": beneficiary.Hex(),
			"error":       err.Error(),
		})
		c.compensate(ctx, txHash, outcome, err)
		return mintFailureResult(outcome, payment, res.BlockNumber), mintError(err)
	}
	c.metrics.RecordMint("success", time.Since(mintStart).Seconds())

	c.ledger.Complete(context.WithoutCancel(ctx), txHash, outcome.TxHash.Hex())

	log.Info("[VerifyAndMint] minted", map[string]string{
		"beneficiary": beneficiary.Hex(),
		"amount":      model.FromUint256(c.mintAmount, c.mintDecimals).String(),
		"mintTxHash":  outcome.TxHash.Hex(),
		"paymentFrom": payment.From.Hex(),
		"mintBlock":   strconv.FormatUint(outcome.BlockNumber, 10),
	})

	return &MintResult{
		MintTxHash:      outcome.TxHash.Hex(),
		PaymentFrom:     payment.From.Hex(),
		PaymentValue:    payment.Value.Dec(),
		BlockNumber:     res.BlockNumber,
		MintBlockNumber: outcome.BlockNumber,
	}, nil
}

func (c *Controller) fetchReceiptAndHead(ctx context.Context, hash common.Hash) (*types.Receipt, uint64, error) {
	var (
		receipt *types.Receipt
		head    uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.baseRPC.TransactionReceipt(gctx, hash)
		receipt = r
		return err
	})
	g.Go(func() error {
		h, err := c.baseRPC.BlockNumber(gctx)
		head = h
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return receipt, head, nil
}

func (c *Controller) chainError(caller, txHash string, err error) error {
	if errors.Is(err, baserpc.ErrReceiptNotFound) {
		return reject(ErrReceiptNotFound, "Transaction receipt not found yet")
	}
	c.logger.Error("["+caller+"][baseRPC]", map[string]string{
		"txHash": txHash,
		"error":  err.Error(),
	})
	return reject(ErrUpstream, reasonUpstream)
}

// compensate decides what happens to the ledger mark after a failed mint. The
// mark is released only when no mint can land: never submitted, or mined and
// reverted. A submitted mint with an unknown outcome keeps its mark.
func (c *Controller) compensate(ctx context.Context, txHash string, outcome *model.MintOutcome, mintErr error) {
	ctx = context.WithoutCancel(ctx)

	fields := map[string]string{
		"txHash":  txHash,
		"error":   mintErr.Error(),
		"backend": c.ledger.Backend(),
	}
	mintTxHash := ""
	if outcome != nil {
		mintTxHash = outcome.TxHash.Hex()
		fields["mintTxHash"] = mintTxHash
	}

	releasable := errors.Is(mintErr, relayer.ErrMintNotSubmitted) || errors.Is(mintErr, relayer.ErrMintReverted)
	if !releasable {
		c.metrics.RecordCompensation("keep", "anomaly")
		c.logger.Error("[VerifyAndMint][compensate] mint outcome unknown, payment stays in flight until reconciled", fields)
		c.alerter.Notify(ctx, webhook.Alert{
			Event:      "mint_unconfirmed",
			TxHash:     txHash,
			MintTxHash: mintTxHash,
			Message:    "Mint submitted but not confirmed; payment stays marked in flight until reconciled",
			Fields:     fields,
		})
		return
	}

	if err := c.ledger.Unmark(ctx, txHash); err != nil {
		fields["unmarkError"] = err.Error()
		c.metrics.RecordCompensation("unmark", "error")
		c.logger.Error("[VerifyAndMint][compensate] failed to release ledger mark, manual reconciliation required", fields)
		c.alerter.Notify(ctx, webhook.Alert{
			Event:      "unmark_failed",
			TxHash:     txHash,
			MintTxHash: mintTxHash,
			Message:    "Mint failed and the processed mark could not be released; the payer cannot retry until it is removed",
			Fields:     fields,
		})
		return
	}

	c.metrics.RecordCompensation("unmark", "success")
	c.logger.Warn("[VerifyAndMint][compensate] released ledger mark after failed mint", fields)
}

func mintStatus(err error) string {
	switch {
	case errors.Is(err, relayer.ErrMintNotSubmitted):
		return "not_submitted"
	case errors.Is(err, relayer.ErrMintReverted):
		return "reverted"
	case errors.Is(err, relayer.ErrMintUnconfirmed):
		return "unconfirmed"
	default:
		return "error"
	}
}

func mintError(err error) error {
	switch {
	case errors.Is(err, relayer.ErrMintReverted):
		return reject(ErrMintReverted, reasonMintFailed)
	case errors.Is(err, relayer.ErrMintUnconfirmed):
		return reject(ErrMintUnconfirmed, "Mint transaction submitted but not confirmed")
	default:
		return reject(ErrMintFailed, reasonMintFailed)
	}
}

func mintFailureResult(outcome *model.MintOutcome, payment *model.TransferEvent, block uint64) *MintResult {
	if outcome == nil {
		return nil
	}
	return &MintResult{
		MintTxHash:      outcome.TxHash.Hex(),
		PaymentFrom:     payment.From.Hex(),
		PaymentValue:    payment.Value.Dec(),
		BlockNumber:     block,
		MintBlockNumber: outcome.BlockNumber,
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordVerification(string, string, float64) {}
func (noopMetrics) RecordMint(string, float64)                 {}
func (noopMetrics) RecordCompensation(string, string)          {}
