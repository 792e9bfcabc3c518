// Package lpadapter translates a normalized hop into the call convention of
// each supported LP protocol.
package lpadapter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

// SwapFunc executes one hop against a backend and returns the amount received.
type SwapFunc func(ctx context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error)

type Dispatcher struct {
	resolver Resolver
	gate     ProtocolGate
	adapters map[domain.Protocol]SwapFunc
	logger   zerolog.Logger
}

func NewDispatcher(resolver Resolver, gate ProtocolGate) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		gate:     gate,
		logger:   log.With().Str("component", "lpadapter").Logger(),
	}
	d.adapters = map[domain.Protocol]SwapFunc{
		domain.ProtocolAquaConstant: d.swapAqua,
		domain.ProtocolAquaStable:   d.swapAqua,
		domain.ProtocolSoroswap:     d.swapSoroswap,
		domain.ProtocolComet:        d.swapComet,
		domain.ProtocolPhoenix:      d.swapPhoenix,
	}
	return d
}

// Dispatch runs hop on the backend of its protocol. The protocol must be
// enabled before any backend is touched.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *ledger.Tx, hop domain.Hop) (*big.Int, error) {
	protocol := hop.Step.Protocol

	enabled, err := d.gate.IsProtocolEnabled(tx, protocol)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrProtocolDisabled, protocol)
	}

	swap, ok := d.adapters[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported protocol %s", domain.ErrInvalidPath, protocol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := swap(ctx, tx, hop)
	metrics.HopDuration.WithLabelValues(protocol.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HopsExecuted.WithLabelValues(protocol.String(), "error").Inc()
		d.logger.Debug().
			Err(err).
			Str("protocol", protocol.String()).
			Str("pool", hop.Step.Pool.String()).
			Msg("hop failed")
		return nil, err
	}
	metrics.HopsExecuted.WithLabelValues(protocol.String(), "ok").Inc()

	d.logger.Debug().
		Str("protocol", protocol.String()).
		Str("pool", hop.Step.Pool.String()).
		Str("in", hop.Amount.String()).
		Str("out", out.String()).
		Msg("hop executed")
	return out, nil
}

func lookup[T any](r Resolver, pool Address, protocol domain.Protocol) (T, error) {
	var zero T
	backend, ok := r.Lookup(pool)
	if !ok {
		return zero, fmt.Errorf("%w: unknown %s pool %s", domain.ErrInvalidPath, protocol, pool)
	}
	typed, ok := backend.(T)
	if !ok {
		return zero, fmt.Errorf("%w: pool %s is not a %s backend", domain.ErrInvalidPath, pool, protocol)
	}
	return typed, nil
}

func toU128(amount *big.Int) (*big.Int, error) {
	if !domain.InU128(amount) {
		return nil, fmt.Errorf("%w: %s does not fit u128", domain.ErrArithmeticOverflow, amount)
	}
	return amount, nil
}

func fromU128(amount *big.Int) (*big.Int, error) {
	if !domain.InI128(amount) || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: backend returned %s", domain.ErrArithmeticOverflow, amount)
	}
	return amount, nil
}
