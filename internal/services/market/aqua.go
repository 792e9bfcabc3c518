package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const AquaDefaultFeeBps = 30

var (
	ErrAquaInvariant       = errors.New("aqua: invariant violated (2004)")
	ErrAquaOutMin          = errors.New("aqua: out amount below out_min (2006)")
	ErrAquaSameIndex       = errors.New("aqua: in_idx equals out_idx (2007)")
	ErrAquaInIndex         = errors.New("aqua: in_idx out of bounds (2008)")
	ErrAquaOutIndex        = errors.New("aqua: out_idx out of bounds (2009)")
	ErrAquaEmptyPool       = errors.New("aqua: empty pool (2010)")
	ErrAquaZeroAmount      = errors.New("aqua: zero in_amount (2018)")
	ErrAquaNegativeAmount  = errors.New("aqua: negative amount")
	ErrAquaInsufficientOut = errors.New("aqua: out exceeds reserve")
)

// quoteFunc prices amountIn against the pool reserves, fee included.
type quoteFunc func(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error)

// AquaConstantPool is a two-token constant-product pool charging its fee on
// the output side.
type AquaConstantPool struct {
	pairBase
}

func NewAquaConstantPool(address Address, tokens [2]Address, feeBps uint32) *AquaConstantPool {
	return &AquaConstantPool{pairBase{
		address:  address,
		protocol: domain.ProtocolAquaConstant,
		tokens:   tokens,
		feeBps:   feeBps,
	}}
}

// AquaAmountOut is floor(in*r_out/(r_in+in)) minus a fee rounded up.
func AquaAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint32) *uint256.Int {
	denom := new(uint256.Int).Add(reserveIn, amountIn)
	out := mulDivFloor(amountIn, reserveOut, denom)
	fee := mulDivCeil(out, uint256.NewInt(uint64(feeBps)), u256BpsDenom)
	return out.Sub(out, fee)
}

func (p *AquaConstantPool) quote(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return AquaAmountOut(amountIn, reserveIn, reserveOut, p.feeBps), nil
}

func (p *AquaConstantPool) Swap(tx *ledger.Tx, user Address, inIdx, outIdx uint32, inAmount, outMin *big.Int) (*big.Int, error) {
	return aquaSwap(tx, &p.pairBase, p.quote, user, inIdx, outIdx, inAmount, outMin)
}

// aquaSwap is the shared swap entry point of the Aqua pool family: the user
// authorizes, the input is pulled by transfer and the output is paid out.
func aquaSwap(tx *ledger.Tx, p *pairBase, quote quoteFunc, user Address, inIdx, outIdx uint32, inAmount, outMin *big.Int) (*big.Int, error) {
	if err := tx.RequireAuth(user); err != nil {
		return nil, err
	}
	switch {
	case inIdx == outIdx:
		return nil, ErrAquaSameIndex
	case inIdx > 1:
		return nil, ErrAquaInIndex
	case outIdx > 1:
		return nil, ErrAquaOutIndex
	case inAmount.Sign() < 0 || outMin.Sign() < 0:
		return nil, ErrAquaNegativeAmount
	case inAmount.Sign() == 0:
		return nil, ErrAquaZeroAmount
	}

	state, err := loadPair(tx)
	if err != nil {
		return nil, err
	}
	reserves := state.reserves()
	reserveIn, reserveOut := reserves[inIdx], reserves[outIdx]
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrAquaEmptyPool
	}

	in, err := bigToU256(inAmount)
	if err != nil {
		return nil, err
	}
	minOut, err := bigToU256(outMin)
	if err != nil {
		return nil, err
	}

	out, err := quote(in, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if out.Lt(minOut) {
		return nil, fmt.Errorf("%w: %s < %s", ErrAquaOutMin, out.Dec(), minOut.Dec())
	}
	if !out.Lt(reserveOut) {
		return nil, ErrAquaInsufficientOut
	}

	pool := tx.Current()
	if err := tx.Transfer(p.tokens[inIdx], user, pool, inAmount); err != nil {
		return nil, err
	}

	next := [2]*uint256.Int{}
	next[inIdx] = new(uint256.Int).Add(reserveIn, in)
	next[outIdx] = new(uint256.Int).Sub(reserveOut, out)
	if !aquaInvariantHolds(reserveIn, reserveOut, in, out, p.feeBps) {
		return nil, ErrAquaInvariant
	}

	outAmount, err := u256ToAmount(out)
	if err != nil {
		return nil, err
	}
	if err := tx.Transfer(p.tokens[outIdx], pool, user, outAmount); err != nil {
		return nil, err
	}

	if err := state.setReserves(next); err != nil {
		return nil, err
	}
	if err := storePair(tx, state); err != nil {
		return nil, err
	}
	return outAmount, nil
}

// aquaInvariantHolds checks the fee-adjusted product of the new reserves
// against the old one, scaled by the bps denominator to stay integral.
func aquaInvariantHolds(reserveIn, reserveOut, in, out *uint256.Int, feeBps uint32) bool {
	residue := new(uint256.Int).Sub(u256BpsDenom, uint256.NewInt(uint64(feeBps)))

	newIn := new(uint256.Int).Mul(u256BpsDenom, reserveIn)
	newIn.Add(newIn, new(uint256.Int).Mul(residue, in))
	newOut := new(uint256.Int).Mul(u256BpsDenom, new(uint256.Int).Sub(reserveOut, out))

	oldIn := new(uint256.Int).Mul(u256BpsDenom, reserveIn)
	oldOut := new(uint256.Int).Mul(u256BpsDenom, reserveOut)

	lhs, overflowL := new(uint256.Int).MulOverflow(newIn, newOut)
	rhs, overflowR := new(uint256.Int).MulOverflow(oldIn, oldOut)
	if overflowL || overflowR {
		// fall back to arbitrary precision for reserves near the u128 ceiling
		l := new(big.Int).Mul(newIn.ToBig(), newOut.ToBig())
		r := new(big.Int).Mul(oldIn.ToBig(), oldOut.ToBig())
		return l.Cmp(r) >= 0
	}
	return !lhs.Lt(rhs)
}
