package lpadapter

import (
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

type Address = domain.Address

// AquaPool is the call surface of Aqua constant-product and stable pools.
type AquaPool interface {
	Swap(tx *ledger.Tx, user Address, inIdx, outIdx uint32, inAmount, outMin *big.Int) (*big.Int, error)
}

// SoroswapPair is a Uniswap-v2 style pair: input is pushed before swap is called.
type SoroswapPair interface {
	GetReserves(tx *ledger.Tx) (*big.Int, *big.Int, error)
	Swap(tx *ledger.Tx, amount0Out, amount1Out *big.Int, to Address) error
}

type CometPool interface {
	// SwapExactAmountIn returns the amount out and the spot price after the swap.
	SwapExactAmountIn(tx *ledger.Tx, tokenIn Address, amountIn *big.Int, tokenOut Address, minAmountOut, maxPrice *big.Int, user Address) (*big.Int, *big.Int, error)
}

type PhoenixPool interface {
	Swap(tx *ledger.Tx, sender, offerAsset Address, offerAmount *big.Int, askAssetMinAmount *big.Int, maxSpreadBps *int64, deadline *uint64, maxAllowedFeeBps *int64) (*big.Int, error)
}

// Resolver finds the backend registered at a pool address.
type Resolver interface {
	Lookup(pool Address) (any, bool)
}

// ProtocolGate reports whether the broker accepts hops on a protocol.
type ProtocolGate interface {
	IsProtocolEnabled(tx *ledger.Tx, protocol domain.Protocol) (bool, error)
}
