package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidTxHash reports whether s is a 0x-prefixed 32 byte hex string.
func IsValidTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// CanonicalTxHash lowercases a hash so that differently cased spellings of the
// same payment share one ledger key.
func CanonicalTxHash(s string) string {
	return strings.ToLower(s)
}

// TransferEvent is a decoded ERC-20 Transfer log.
type TransferEvent struct {
	From     common.Address
	To       common.Address
	Value    *uint256.Int
	LogIndex uint
	TxHash   common.Hash
}

type MintOutcome struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasLimit    uint64
	GasUsed     uint64
	Status      uint64
}

type ProcessedPaymentState string

const (
	ProcessedPaymentStateInFlight ProcessedPaymentState = "in_flight"
	ProcessedPaymentStateMinted   ProcessedPaymentState = "minted"
)

type ProcessedPayment struct {
	TxHash       string                `json:"tx_hash" gorm:"column:tx_hash;type:varchar(66);primaryKey"`
	State        ProcessedPaymentState `json:"state" gorm:"column:state;type:varchar(20);not null;default:'in_flight'"`
	Beneficiary  string                `json:"beneficiary" gorm:"column:beneficiary;type:varchar(42)"`
	PaymentFrom  string                `json:"payment_from" gorm:"column:payment_from;type:varchar(42)"`
	PaymentValue string                `json:"payment_value" gorm:"column:payment_value;type:varchar(78)"`
	MintTxHash   string                `json:"mint_tx_hash" gorm:"column:mint_tx_hash;type:varchar(66)"`
	ExpiresAt    time.Time             `json:"expires_at" gorm:"column:expires_at;not null;index"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func (ProcessedPayment) TableName() string {
	return "processed_payments"
}

type ListProcessedPaymentFilter struct {
	State       string
	Beneficiary string
	Limit       int
	Offset      int
}
