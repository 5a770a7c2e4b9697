// Package decoder turns raw receipt logs into ERC-20 Transfer events of one token.
package decoder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/dwarvesf/mint-relayer/contracts/token"
	"github.com/dwarvesf/mint-relayer/internal/model"
)

type Decoder struct {
	token    common.Address
	filterer *token.TokenFilterer
}

func New(paymentToken common.Address) (*Decoder, error) {
	// only ParseTransfer is used, which needs the ABI but no backend
	filterer, err := token.NewTokenFilterer(paymentToken, nil)
	if err != nil {
		return nil, errors.Wrap(err, "bind token filterer")
	}

	return &Decoder{
		token:    paymentToken,
		filterer: filterer,
	}, nil
}

func (d *Decoder) Token() common.Address {
	return d.token
}

// Decode returns the Transfer carried by log, or false when log was emitted by
// another contract or is not a well formed Transfer.
func (d *Decoder) Decode(log types.Log) (*model.TransferEvent, bool) {
	if log.Address != d.token {
		return nil, false
	}

	ev, err := d.filterer.ParseTransfer(log)
	if err != nil || ev.Value == nil {
		return nil, false
	}

	value, overflow := uint256.FromBig(ev.Value)
	if overflow {
		return nil, false
	}

	return &model.TransferEvent{
		From:     ev.From,
		To:       ev.To,
		Value:    value,
		LogIndex: log.Index,
		TxHash:   log.TxHash,
	}, true
}

// Scan walks logs in order and returns the first decoded transfer accepted by match.
func (d *Decoder) Scan(logs []*types.Log, match func(*model.TransferEvent) bool) *model.TransferEvent {
	own := lo.Filter(logs, func(l *types.Log, _ int) bool {
		return l != nil && l.Address == d.token
	})

	for _, l := range own {
		ev, ok := d.Decode(*l)
		if !ok {
			continue
		}
		if match == nil || match(ev) {
			return ev
		}
	}

	return nil
}
