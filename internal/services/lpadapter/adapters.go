package lpadapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const (
	// CometMaxPrice is passed as max_price so the spot-price guard never trips.
	CometMaxPrice = uint64(18446744073709551615)

	cometExpirationWindow = 100000
)

var one = big.NewInt(1)

// grantsFor issues the capability a pool needs to pull funds from the
// broker. Nothing is granted when the hop pays out of another account.
func grantsFor(tx *ledger.Tx, hop domain.Hop, grant func() ledger.Grant) []ledger.Grant {
	if hop.To != tx.Current() {
		return nil
	}
	return []ledger.Grant{grant()}
}

func (d *Dispatcher) swapAqua(_ context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error) {
	pool, err := lookup[AquaPool](d.resolver, hop.Step.Pool, hop.Step.Protocol)
	if err != nil {
		return nil, err
	}
	amount, err := toU128(hop.Amount)
	if err != nil {
		return nil, err
	}

	grants := grantsFor(tx, hop, func() ledger.Grant {
		return ledger.TransferGrant(hop.InToken, hop.Step.Pool, amount)
	})

	var out *big.Int
	err = tx.Call(hop.Step.Pool, grants, func() error {
		var err error
		out, err = pool.Swap(tx, hop.To, hop.Step.SI, hop.Step.BI, amount, one)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromU128(out)
}

func (d *Dispatcher) swapComet(_ context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error) {
	pool, err := lookup[CometPool](d.resolver, hop.Step.Pool, hop.Step.Protocol)
	if err != nil {
		return nil, err
	}

	expiration := (tx.Sequence()/cometExpirationWindow + 1) * cometExpirationWindow
	grants := grantsFor(tx, hop, func() ledger.Grant {
		return ledger.ApproveGrant(hop.InToken, hop.Step.Pool, hop.Amount, expiration)
	})

	maxPrice := new(big.Int).SetUint64(CometMaxPrice)
	var out *big.Int
	err = tx.Call(hop.Step.Pool, grants, func() error {
		var err error
		out, _, err = pool.SwapExactAmountIn(tx, hop.InToken, hop.Amount, hop.Step.Asset, one, maxPrice, hop.To)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) swapPhoenix(_ context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error) {
	pool, err := lookup[PhoenixPool](d.resolver, hop.Step.Pool, hop.Step.Protocol)
	if err != nil {
		return nil, err
	}

	grants := grantsFor(tx, hop, func() ledger.Grant {
		return ledger.TransferGrant(hop.InToken, hop.Step.Pool, hop.Amount)
	})

	var out *big.Int
	err = tx.Call(hop.Step.Pool, grants, func() error {
		var err error
		out, err = pool.Swap(tx, hop.To, hop.InToken, hop.Amount, nil, nil, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) swapSoroswap(_ context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error) {
	pair, err := lookup[SoroswapPair](d.resolver, hop.Step.Pool, hop.Step.Protocol)
	if err != nil {
		return nil, err
	}
	if hop.Step.BI > 1 {
		return nil, fmt.Errorf("%w: soroswap buy index %d", domain.ErrInvalidPath, hop.Step.BI)
	}

	if err := tx.Transfer(hop.InToken, hop.To, hop.Step.Pool, hop.Amount); err != nil {
		return nil, err
	}

	var r0, r1 *big.Int
	err = tx.Call(hop.Step.Pool, nil, func() error {
		var err error
		r0, r1, err = pair.GetReserves(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	out, err := CalcSoroswapAmountOut(hop.Amount, r0, r1, hop.Step.BI == 0)
	if err != nil {
		return nil, err
	}

	out0, out1 := new(big.Int), new(big.Int)
	if hop.Step.BI == 1 {
		out1 = out
	} else {
		out0 = out
	}
	err = tx.Call(hop.Step.Pool, nil, func() error {
		return pair.Swap(tx, out0, out1, hop.To)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
