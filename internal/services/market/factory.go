package market

import (
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
)

// PoolSpec describes a pool to build. Zero FeeBps, Amp and MaxSpreadBps pick
// the protocol defaults.
type PoolSpec struct {
	Protocol     domain.Protocol
	Address      Address
	Tokens       [2]Address
	Reserves     []*big.Int
	FeeBps       uint32
	Amp          uint64
	MaxSpreadBps int64
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func NewBackend(spec PoolSpec) (Backend, error) {
	switch spec.Protocol {
	case domain.ProtocolAquaConstant:
		return NewAquaConstantPool(spec.Address, spec.Tokens, orDefault(spec.FeeBps, AquaDefaultFeeBps)), nil
	case domain.ProtocolAquaStable:
		return NewAquaStablePool(spec.Address, spec.Tokens,
			orDefault(spec.Amp, AquaStableDefaultAmp),
			orDefault(spec.FeeBps, AquaStableDefaultFeeBps)), nil
	case domain.ProtocolSoroswap:
		if spec.FeeBps != 0 && spec.FeeBps != SoroswapFeeBps {
			return nil, fmt.Errorf("market: soroswap fee is fixed at %d bps", SoroswapFeeBps)
		}
		return NewSoroswapPair(spec.Address, spec.Tokens), nil
	case domain.ProtocolComet:
		return NewCometPool(spec.Address, spec.Tokens, orDefault(spec.FeeBps, CometDefaultFeeBps)), nil
	case domain.ProtocolPhoenix:
		return NewPhoenixPool(spec.Address, spec.Tokens,
			orDefault(spec.FeeBps, PhoenixDefaultFeeBps),
			orDefault(spec.MaxSpreadBps, PhoenixDefaultMaxSpreadBps)), nil
	default:
		return nil, fmt.Errorf("market: unknown protocol %d", uint8(spec.Protocol))
	}
}
