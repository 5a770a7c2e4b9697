package controller

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/decoder"
	"github.com/dwarvesf/mint-relayer/internal/ledger"
	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/relayer"
	"github.com/dwarvesf/mint-relayer/internal/types/environments"
	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
	"github.com/dwarvesf/mint-relayer/internal/utils/webhook"
	"github.com/dwarvesf/mint-relayer/internal/verifier"
)

var (
	usdcAddr      = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	tokenAddr     = common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")
	payerAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	beneficiary   = "0x2222222222222222222222222222222222222222"
	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	paymentHash   = "0x" + strings.Repeat("ab", 32)
)

type fakeChain struct {
	mu         sync.Mutex
	calls      int
	receipts   map[common.Hash]*types.Receipt
	head       uint64
	receiptErr error
	headErr    error
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeChain) Client() *ethclient.Client { return nil }

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, baserpc.ErrReceiptNotFound
	}
	return r, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.head, f.headErr
}

func (f *fakeChain) BalanceAt(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &model.Web3BigInt{Value: "0", Decimal: 18}, nil
}

type fakeRelayer struct {
	calls       atomic.Int32
	delay       time.Duration
	err         error
	outcome     *model.MintOutcome
	beneficiary common.Address
	amount      *uint256.Int
	mu          sync.Mutex
}

func (f *fakeRelayer) Address() common.Address {
	return common.HexToAddress("0x9999999999999999999999999999999999999999")
}

func (f *fakeRelayer) Mint(ctx context.Context, to common.Address, amount *uint256.Int) (*model.MintOutcome, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.beneficiary = to
	f.amount = amount
	f.mu.Unlock()
	time.Sleep(f.delay)
	if f.err != nil {
		return f.outcome, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &model.MintOutcome{
		TxHash:      common.HexToHash("0x" + strings.Repeat("cd", 32)),
		BlockNumber: 205,
		Status:      types.ReceiptStatusSuccessful,
	}, nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []webhook.Alert
}

func (r *recordingAlerter) Notify(ctx context.Context, alert webhook.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingAlerter) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]string, 0, len(r.alerts))
	for _, a := range r.alerts {
		events = append(events, a.Event)
	}
	return events
}

// flakyUnmarkBackend behaves like a shared store whose delete always fails.
type flakyUnmarkBackend struct {
	mu     sync.Mutex
	marked map[string]bool
}

func (b *flakyUnmarkBackend) Name() string { return "flaky" }

func (b *flakyUnmarkBackend) IsMarked(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marked[key], nil
}

func (b *flakyUnmarkBackend) Mark(ctx context.Context, key string, entry ledger.Entry, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.marked[key] {
		return false, nil
	}
	b.marked[key] = true
	return true, nil
}

func (b *flakyUnmarkBackend) Complete(ctx context.Context, key, mintTxHash string) error { return nil }

func (b *flakyUnmarkBackend) Unmark(ctx context.Context, key string) error {
	return errors.Wrap(ledger.ErrBackendUnavailable, "connection reset")
}

func (b *flakyUnmarkBackend) Ping(ctx context.Context) error { return nil }

func transferLog(emitter, to common.Address, value *big.Int, index uint) *types.Log {
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{transferTopic, common.BytesToHash(payerAddr.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    common.LeftPadBytes(value.Bytes(), 32),
		Index:   index,
	}
}

func paymentReceipt(block int64, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(block),
		Logs:        logs,
	}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: environments.Test,
		Blockchain: config.BlockchainConfig{
			TokenContractAddr: tokenAddr.Hex(),
			USDCContractAddr:  usdcAddr.Hex(),
		},
		Payment: config.PaymentConfig{
			PriceUSDC:             "5",
			USDCDecimals:          6,
			RequiredConfirmations: 2,
		},
		Mint: config.MintConfig{
			Amount:        "5000",
			TokenDecimals: 18,
		},
	}
}

var _ = Describe("Controller", func() {
	var (
		ctx      context.Context
		log      *logger.Logger
		chain    *fakeChain
		minter   *fakeRelayer
		alerter  *recordingAlerter
		payments ledger.ILedger
		ctrl     IController
		price    = big.NewInt(5_000_000)
	)

	build := func(r relayer.IRelayer) IController {
		d, err := decoder.New(usdcAddr)
		Expect(err).NotTo(HaveOccurred())
		c, err := New(testConfig(), chain, verifier.New(d), payments, r, alerter, nil, log)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		log = logger.New(environments.Test)
		chain = &fakeChain{
			receipts: map[common.Hash]*types.Receipt{
				common.HexToHash(paymentHash): paymentReceipt(100, transferLog(usdcAddr, tokenAddr, price, 3)),
			},
			head: 101,
		}
		minter = &fakeRelayer{}
		alerter = &recordingAlerter{}
		payments = ledger.New(ledger.NewMemoryBackend(), time.Hour, log, nil)
		ctrl = build(minter)
	})

	Describe("New", func() {
		It("should reject an invalid token contract address", func() {
			cfg := testConfig()
			cfg.Blockchain.TokenContractAddr = "not-an-address"
			d, _ := decoder.New(usdcAddr)

			_, err := New(cfg, chain, verifier.New(d), payments, minter, alerter, nil, log)

			Expect(err).To(HaveOccurred())
		})

		It("should reject a price with more precision than the token allows", func() {
			cfg := testConfig()
			cfg.Payment.PriceUSDC = "0.0000001"
			d, _ := decoder.New(usdcAddr)

			_, err := New(cfg, chain, verifier.New(d), payments, minter, alerter, nil, log)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("VerifyPayment", func() {
		It("should accept a qualifying transfer without requiring confirmations", func() {
			chain.head = 100

			res, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Valid).To(BeTrue())
			Expect(res.From).To(Equal(payerAddr.Hex()))
			Expect(res.To).To(Equal(tokenAddr.Hex()))
			Expect(res.Value).To(Equal("5000000"))
			Expect(res.BlockNumber).To(Equal(uint64(100)))
		})

		It("should report invalid when the optional recipient does not match", func() {
			res, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash, To: payerAddr.Hex()})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Valid).To(BeFalse())
			Expect(res.Reason).To(Equal(verifier.ReasonNoMatchingTransfer))
		})

		It("should classify malformed input as validation errors", func() {
			_, err := ctrl.VerifyPayment(ctx, VerifyRequest{})
			Expect(KindOf(err)).To(Equal(KindValidation))

			_, err = ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: "0x1234"})
			Expect(KindOf(err)).To(Equal(KindValidation))
			Expect(Reason(err)).To(Equal("Invalid txHash format"))

			_, err = ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash, To: "0xnope"})
			Expect(errors.Is(err, ErrInvalidRecipient)).To(BeTrue())
			Expect(chain.callCount()).To(BeZero())
		})

		It("should return the same answer twice without touching the ledger", func() {
			first, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash})
			Expect(err).NotTo(HaveOccurred())

			second, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash})
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
			Expect(minter.calls.Load()).To(BeZero())
		})

		It("should report an unknown receipt as not found", func() {
			_, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: "0x" + strings.Repeat("01", 32)})

			Expect(KindOf(err)).To(Equal(KindNotFound))
			Expect(Reason(err)).To(Equal("Transaction receipt not found yet"))
		})

		It("should report rpc failures as upstream errors", func() {
			chain.receiptErr = errors.Wrap(baserpc.ErrUpstreamUnavailable, "dial tcp: i/o timeout")

			_, err := ctrl.VerifyPayment(ctx, VerifyRequest{TxHash: paymentHash})

			Expect(KindOf(err)).To(Equal(KindUpstream))
		})
	})

	Describe("VerifyAndMint", func() {
		req := MintRequest{TxHash: paymentHash, Beneficiary: beneficiary}

		It("should mint the configured amount to the beneficiary", func() {
			res, err := ctrl.VerifyAndMint(ctx, req)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.MintTxHash).To(Equal("0x" + strings.Repeat("cd", 32)))
			Expect(res.PaymentFrom).To(Equal(payerAddr.Hex()))
			Expect(res.PaymentValue).To(Equal("5000000"))
			Expect(res.BlockNumber).To(Equal(uint64(100)))
			Expect(res.MintBlockNumber).To(Equal(uint64(205)))

			expected, err := uint256.FromDecimal("5000000000000000000000")
			Expect(err).NotTo(HaveOccurred())
			Expect(minter.amount.Eq(expected)).To(BeTrue())
			Expect(minter.beneficiary).To(Equal(common.HexToAddress(beneficiary)))
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeTrue())
		})

		It("should refuse a payment that was already used", func() {
			_, err := ctrl.VerifyAndMint(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			_, err = ctrl.VerifyAndMint(ctx, MintRequest{TxHash: strings.ToUpper(paymentHash[2:]), Beneficiary: beneficiary})
			Expect(KindOf(err)).To(Equal(KindValidation))

			_, err = ctrl.VerifyAndMint(ctx, MintRequest{TxHash: "0x" + strings.ToUpper(paymentHash[2:]), Beneficiary: beneficiary})
			Expect(errors.Is(err, ErrAlreadyProcessed)).To(BeTrue())
			Expect(Reason(err)).To(Equal("txHash already processed"))
			Expect(minter.calls.Load()).To(Equal(int32(1)))
		})

		It("should mint at most once under concurrent requests for one payment", func() {
			minter.delay = 20 * time.Millisecond

			var wg sync.WaitGroup
			var successes atomic.Int32
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if _, err := ctrl.VerifyAndMint(ctx, req); err == nil {
						successes.Add(1)
					} else {
						Expect(errors.Is(err, ErrAlreadyProcessed)).To(BeTrue())
					}
				}()
			}
			wg.Wait()

			Expect(successes.Load()).To(Equal(int32(1)))
			Expect(minter.calls.Load()).To(Equal(int32(1)))
		})

		It("should refuse to mint without a relayer", func() {
			ctrl = build(nil)

			_, err := ctrl.VerifyAndMint(ctx, req)

			Expect(errors.Is(err, ErrRelayerNotConfigured)).To(BeTrue())
			Expect(KindOf(err)).To(Equal(KindUpstream))
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
		})

		It("should reject a malformed hash before any chain call", func() {
			for _, hash := range []string{"0x1234", paymentHash[2:], "0x" + strings.Repeat("zz", 32)} {
				_, err := ctrl.VerifyAndMint(ctx, MintRequest{TxHash: hash, Beneficiary: beneficiary})
				Expect(errors.Is(err, ErrInvalidTxHash)).To(BeTrue(), hash)
			}

			Expect(chain.callCount()).To(BeZero())
			Expect(minter.calls.Load()).To(BeZero())
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
		})

		It("should reject an invalid beneficiary", func() {
			_, err := ctrl.VerifyAndMint(ctx, MintRequest{TxHash: paymentHash, Beneficiary: "0x12"})

			Expect(errors.Is(err, ErrInvalidBeneficiary)).To(BeTrue())
		})

		It("should wait for enough confirmations without marking", func() {
			chain.head = 100

			_, err := ctrl.VerifyAndMint(ctx, req)

			Expect(errors.Is(err, ErrInsufficientConfirmations)).To(BeTrue())
			Expect(Reason(err)).To(Equal("Transaction has 1 confirmations; require 2"))
			Expect(minter.calls.Load()).To(BeZero())
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
		})

		It("should reject a transfer of the wrong amount", func() {
			chain.receipts[common.HexToHash(paymentHash)] = paymentReceipt(100, transferLog(usdcAddr, tokenAddr, big.NewInt(4_999_999), 0))

			_, err := ctrl.VerifyAndMint(ctx, req)

			Expect(errors.Is(err, ErrNoMatchingTransfer)).To(BeTrue())
			Expect(KindOf(err)).To(Equal(KindPolicy))
		})

		It("should report an unmined payment as not found", func() {
			delete(chain.receipts, common.HexToHash(paymentHash))

			_, err := ctrl.VerifyAndMint(ctx, req)

			Expect(KindOf(err)).To(Equal(KindNotFound))
		})

		It("should report a head lookup failure as upstream", func() {
			chain.headErr = errors.Wrap(baserpc.ErrUpstreamUnavailable, "503")

			_, err := ctrl.VerifyAndMint(ctx, req)

			Expect(KindOf(err)).To(Equal(KindUpstream))
			Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
		})

		Context("when the mint fails", func() {
			It("should release the mark if the mint was never submitted", func() {
				minter.err = errors.Wrap(relayer.ErrMintNotSubmitted, "insufficient funds for gas")

				res, err := ctrl.VerifyAndMint(ctx, req)

				Expect(res).To(BeNil())
				Expect(KindOf(err)).To(Equal(KindMintFailed))
				Expect(Reason(err)).To(Equal("Mint transaction failed"))
				Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
				Expect(alerter.events()).To(BeEmpty())
			})

			It("should release the mark and flag a reverted mint distinctly", func() {
				minter.err = errors.Wrap(relayer.ErrMintReverted, "status 0")
				minter.outcome = &model.MintOutcome{TxHash: common.HexToHash("0xdead"), BlockNumber: 210}

				res, err := ctrl.VerifyAndMint(ctx, req)

				Expect(KindOf(err)).To(Equal(KindMintReverted))
				Expect(res).NotTo(BeNil())
				Expect(res.MintTxHash).To(Equal(common.HexToHash("0xdead").Hex()))
				Expect(payments.IsMarked(ctx, paymentHash)).To(BeFalse())
			})

			It("should keep the mark and alert when the mint outcome is unknown", func() {
				minter.err = errors.Wrap(relayer.ErrMintUnconfirmed, "context deadline exceeded")
				minter.outcome = &model.MintOutcome{TxHash: common.HexToHash("0xbeef")}

				res, err := ctrl.VerifyAndMint(ctx, req)

				Expect(KindOf(err)).To(Equal(KindMintFailed))
				Expect(errors.Is(err, ErrMintUnconfirmed)).To(BeTrue())
				Expect(res.MintTxHash).To(Equal(common.HexToHash("0xbeef").Hex()))
				Expect(payments.IsMarked(ctx, paymentHash)).To(BeTrue())
				Expect(alerter.events()).To(Equal([]string{"mint_unconfirmed"}))
			})

			It("should alert when the mark cannot be released", func() {
				payments = ledger.New(&flakyUnmarkBackend{marked: map[string]bool{}}, time.Hour, log, nil)
				ctrl = build(minter)
				minter.err = errors.Wrap(relayer.ErrMintNotSubmitted, "nonce too low")

				_, err := ctrl.VerifyAndMint(ctx, req)

				Expect(KindOf(err)).To(Equal(KindMintFailed))
				Expect(alerter.events()).To(Equal([]string{"unmark_failed"}))
				Expect(payments.IsMarked(ctx, paymentHash)).To(BeTrue())
			})
		})
	})
})
