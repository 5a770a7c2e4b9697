package model

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid token amount")

type Web3BigInt struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

// ParseUnits converts a human readable amount ("5", "0.25") into base units of a
// token with the given decimals. Amounts finer than one base unit are rejected.
func ParseUnits(amount string, decimals int) (*Web3BigInt, error) {
	if decimals < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "negative decimals %d", decimals)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	if d.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", amount)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", amount, decimals)
	}

	return &Web3BigInt{
		Value:   scaled.BigInt().String(),
		Decimal: decimals,
	}, nil
}

func FromUint256(v *uint256.Int, decimals int) *Web3BigInt {
	return &Web3BigInt{
		Value:   v.Dec(),
		Decimal: decimals,
	}
}

// Uint256 returns the base unit value, failing for negative or oversized values.
func (w *Web3BigInt) Uint256() (*uint256.Int, error) {
	amt, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", w.Value)
	}
	if amt.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", w.Value)
	}

	v, overflow := uint256.FromBig(amt)
	if overflow {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q overflows uint256", w.Value)
	}
	return v, nil
}

// String renders the value in human units, e.g. "5" or "0.25".
func (w *Web3BigInt) String() string {
	amt, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return w.Value
	}
	return decimal.NewFromBigInt(amt, -int32(w.Decimal)).String()
}

func (w *Web3BigInt) ToFloat() float64 {
	num := new(big.Int)
	num.SetString(w.Value, 10)

	floatNum := new(big.Float).SetInt(num)

	divisor := new(big.Float).SetFloat64(math.Pow(10, float64(w.Decimal)))

	floatNum.Quo(floatNum, divisor)

	result, _ := floatNum.Float64()
	return result
}
