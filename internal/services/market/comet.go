package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const (
	CometDefaultFeeBps = 30

	// comet prices are fixed point with 7 decimals
	cometPriceScale = 10_000_000

	cometExpirationWindow = 100000
)

var (
	ErrCometUnknownToken = errors.New("comet: token not bound to pool")
	ErrCometSameToken    = errors.New("comet: token_in equals token_out")
	ErrCometBadAmount    = errors.New("comet: amount must be positive")
	ErrCometLimitPrice   = errors.New("comet: spot price above max_price")
	ErrCometLimitOut     = errors.New("comet: amount out below min_amount_out")
	ErrCometMathApprox   = errors.New("comet: spot price moved the wrong way")
)

// CometPool is an equal-weight two-token pool. Input is pulled with
// approve + transfer_from.
type CometPool struct {
	pairBase
}

func NewCometPool(address Address, tokens [2]Address, feeBps uint32) *CometPool {
	return &CometPool{pairBase{
		address:  address,
		protocol: domain.ProtocolComet,
		tokens:   tokens,
		feeBps:   feeBps,
	}}
}

func (p *CometPool) SwapExactAmountIn(tx *ledger.Tx, tokenIn Address, amountIn *big.Int, tokenOut Address, minAmountOut, maxPrice *big.Int, user Address) (*big.Int, *big.Int, error) {
	if err := tx.RequireAuth(user); err != nil {
		return nil, nil, err
	}
	inIdx, ok := p.tokenIndex(tokenIn)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCometUnknownToken, tokenIn)
	}
	outIdx, ok := p.tokenIndex(tokenOut)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCometUnknownToken, tokenOut)
	}
	if inIdx == outIdx {
		return nil, nil, ErrCometSameToken
	}
	if amountIn.Sign() <= 0 || !domain.InU128(minAmountOut) || maxPrice.Sign() < 0 {
		return nil, nil, ErrCometBadAmount
	}

	state, err := loadPair(tx)
	if err != nil {
		return nil, nil, err
	}
	reserves := state.reserves()
	balanceIn, balanceOut := reserves[inIdx], reserves[outIdx]
	if balanceIn.IsZero() || balanceOut.IsZero() {
		return nil, nil, ErrEmptyPool
	}

	in, err := bigToU256(amountIn)
	if err != nil {
		return nil, nil, err
	}
	limit := maxPrice
	if !domain.InU128(limit) {
		limit = domain.MaxU128
	}
	maxSpot := uint256.MustFromBig(limit)
	minOut := uint256.MustFromBig(minAmountOut)

	spotBefore := p.spotPrice(balanceIn, balanceOut)
	if spotBefore.Gt(maxSpot) {
		return nil, nil, fmt.Errorf("%w: %s > %s", ErrCometLimitPrice, spotBefore.Dec(), maxSpot.Dec())
	}

	out := CometAmountOut(in, balanceIn, balanceOut, p.feeBps)
	if out.Lt(minOut) {
		return nil, nil, fmt.Errorf("%w: %s < %s", ErrCometLimitOut, out.Dec(), minOut.Dec())
	}
	if !out.Lt(balanceOut) {
		return nil, nil, ErrInsufficientReserve
	}

	pool := tx.Current()
	expiration := (tx.Sequence()/cometExpirationWindow + 1) * cometExpirationWindow
	if err := tx.Approve(tokenIn, user, pool, amountIn, expiration); err != nil {
		return nil, nil, err
	}
	if err := tx.TransferFrom(tokenIn, pool, user, pool, amountIn); err != nil {
		return nil, nil, err
	}

	outAmount, err := u256ToAmount(out)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Transfer(tokenOut, pool, user, outAmount); err != nil {
		return nil, nil, err
	}

	next := [2]*uint256.Int{}
	next[inIdx] = new(uint256.Int).Add(balanceIn, in)
	next[outIdx] = new(uint256.Int).Sub(balanceOut, out)

	spotAfter := p.spotPrice(next[inIdx], next[outIdx])
	if spotAfter.Lt(spotBefore) {
		return nil, nil, ErrCometMathApprox
	}
	if spotAfter.Gt(maxSpot) {
		return nil, nil, fmt.Errorf("%w: %s > %s", ErrCometLimitPrice, spotAfter.Dec(), maxSpot.Dec())
	}

	if err := state.setReserves(next); err != nil {
		return nil, nil, err
	}
	if err := storePair(tx, state); err != nil {
		return nil, nil, err
	}
	return outAmount, spotAfter.ToBig(), nil
}

// spotPrice is balanceIn/balanceOut grossed up by the swap fee, in 1e7 units.
func (p *CometPool) spotPrice(balanceIn, balanceOut *uint256.Int) *uint256.Int {
	num := mulDivFloor(balanceIn, uint256.NewInt(cometPriceScale), balanceOut)
	return mulDivFloor(num, u256BpsDenom, new(uint256.Int).Sub(u256BpsDenom, uint256.NewInt(uint64(p.feeBps))))
}

// CometAmountOut prices an equal-weight swap: the fee is taken from the input.
func CometAmountOut(amountIn, balanceIn, balanceOut *uint256.Int, feeBps uint32) *uint256.Int {
	net := mulDivFloor(amountIn, new(uint256.Int).Sub(u256BpsDenom, uint256.NewInt(uint64(feeBps))), u256BpsDenom)
	return mulDivFloor(net, balanceOut, new(uint256.Int).Add(balanceIn, net))
}
