package lpadapter

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientInput     = errors.New("soroswap: insufficient input amount")
	ErrInsufficientLiquidity = errors.New("soroswap: insufficient liquidity")
)

var (
	soroswapFeeNumerator   = big.NewInt(30)
	soroswapFeeDenominator = big.NewInt(10000)
)

// CalcSoroswapAmountOut quotes a Soroswap pair swap with its 0.3% input fee
// rounded up. reverse sells token1 for token0.
func CalcSoroswapAmountOut(amountIn, reserve0, reserve1 *big.Int, reverse bool) (*big.Int, error) {
	if amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	reserveIn, reserveOut := reserve0, reserve1
	if reverse {
		reserveIn, reserveOut = reserve1, reserve0
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	fee := ceilDiv(new(big.Int).Mul(amountIn, soroswapFeeNumerator), soroswapFeeDenominator)
	net := new(big.Int).Sub(amountIn, fee)

	numerator := new(big.Int).Mul(net, reserveOut)
	denominator := new(big.Int).Add(reserveIn, net)
	return numerator.Quo(numerator, denominator), nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
