package market

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const SoroswapFeeBps = 30

var (
	ErrPairZeroOut             = errors.New("soroswap pair: both outputs zero (102)")
	ErrPairNegativeOut         = errors.New("soroswap pair: negative output (109)")
	ErrPairInsufficientReserve = errors.New("soroswap pair: insufficient liquidity (110)")
	ErrPairInvalidTo           = errors.New("soroswap pair: recipient is a pair token (111)")
	ErrPairNoInput             = errors.New("soroswap pair: insufficient input (112)")
	ErrPairNegativeInput       = errors.New("soroswap pair: negative input (113)")
	ErrPairK                   = errors.New("soroswap pair: k invariant violated (114)")
)

var (
	pairFeeNumerator   = uint256.NewInt(3)
	pairFeeDenominator = uint256.NewInt(1000)
)

// SoroswapPair expects the input to be transferred in before Swap; the input
// amount is derived from the pair's balances.
type SoroswapPair struct {
	pairBase
}

func NewSoroswapPair(address Address, tokens [2]Address) *SoroswapPair {
	return &SoroswapPair{pairBase{
		address:  address,
		protocol: domain.ProtocolSoroswap,
		tokens:   tokens,
		feeBps:   SoroswapFeeBps,
	}}
}

func (p *SoroswapPair) Token0() Address { return p.tokens[0] }
func (p *SoroswapPair) Token1() Address { return p.tokens[1] }

func (p *SoroswapPair) GetReserves(tx *ledger.Tx) (*big.Int, *big.Int, error) {
	r, err := pairReserves(tx)
	if err != nil {
		return nil, nil, err
	}
	return r[0], r[1], nil
}

func (p *SoroswapPair) Swap(tx *ledger.Tx, amount0Out, amount1Out *big.Int, to Address) error {
	state, err := loadPair(tx)
	if err != nil {
		return err
	}
	reserve0, reserve1 := state.Reserve0.BigInt(), state.Reserve1.BigInt()

	switch {
	case amount0Out.Sign() == 0 && amount1Out.Sign() == 0:
		return ErrPairZeroOut
	case amount0Out.Sign() < 0 || amount1Out.Sign() < 0:
		return ErrPairNegativeOut
	case amount0Out.Cmp(reserve0) >= 0 || amount1Out.Cmp(reserve1) >= 0:
		return ErrPairInsufficientReserve
	case to == p.tokens[0] || to == p.tokens[1]:
		return ErrPairInvalidTo
	}

	pool := tx.Current()
	if amount0Out.Sign() > 0 {
		if err := tx.Transfer(p.tokens[0], pool, to, amount0Out); err != nil {
			return err
		}
	}
	if amount1Out.Sign() > 0 {
		if err := tx.Transfer(p.tokens[1], pool, to, amount1Out); err != nil {
			return err
		}
	}

	balance0 := tx.Balance(p.tokens[0], pool)
	balance1 := tx.Balance(p.tokens[1], pool)

	amount0In := pairInput(balance0, reserve0, amount0Out)
	amount1In := pairInput(balance1, reserve1, amount1Out)
	if amount0In.Sign() == 0 && amount1In.Sign() == 0 {
		return ErrPairNoInput
	}
	if amount0In.Sign() < 0 || amount1In.Sign() < 0 {
		return ErrPairNegativeInput
	}

	b0, err := bigToU256(balance0)
	if err != nil {
		return err
	}
	b1, err := bigToU256(balance1)
	if err != nil {
		return err
	}
	in0, _ := bigToU256(amount0In)
	in1, _ := bigToU256(amount1In)
	r0, _ := bigToU256(reserve0)
	r1, _ := bigToU256(reserve1)

	adjusted0 := new(uint256.Int).Sub(b0, mulDivCeil(in0, pairFeeNumerator, pairFeeDenominator))
	adjusted1 := new(uint256.Int).Sub(b1, mulDivCeil(in1, pairFeeNumerator, pairFeeDenominator))
	if new(uint256.Int).Mul(adjusted0, adjusted1).Lt(new(uint256.Int).Mul(r0, r1)) {
		return ErrPairK
	}

	if err := state.setReserves([2]*uint256.Int{b0, b1}); err != nil {
		return err
	}
	return storePair(tx, state)
}

// pairInput is how much of a token arrived beyond what the swap left in reserve.
func pairInput(balance, reserve, out *big.Int) *big.Int {
	remaining := new(big.Int).Sub(reserve, out)
	if balance.Cmp(remaining) > 0 {
		return remaining.Sub(balance, remaining)
	}
	return new(big.Int)
}
