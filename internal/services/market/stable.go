package market

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const (
	AquaStableDefaultAmp    = 85
	AquaStableDefaultFeeBps = 6

	stableMaxIterations = 255
	stableCoins         = 2
)

var (
	ErrStableNoConvergence = errors.New("aqua stable: invariant did not converge")
	ErrStableOverflow      = errors.New("aqua stable: arithmetic overflow")
)

// AquaStablePool is a two-token stable-swap pool with amplification Amp.
type AquaStablePool struct {
	pairBase
	amp uint64
}

func NewAquaStablePool(address Address, tokens [2]Address, amp uint64, feeBps uint32) *AquaStablePool {
	return &AquaStablePool{
		pairBase: pairBase{
			address:  address,
			protocol: domain.ProtocolAquaStable,
			tokens:   tokens,
			feeBps:   feeBps,
		},
		amp: amp,
	}
}

func (p *AquaStablePool) Amp() uint64 { return p.amp }

func (p *AquaStablePool) Swap(tx *ledger.Tx, user Address, inIdx, outIdx uint32, inAmount, outMin *big.Int) (*big.Int, error) {
	return aquaSwap(tx, &p.pairBase, p.quote, user, inIdx, outIdx, inAmount, outMin)
}

func (p *AquaStablePool) quote(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return StableAmountOut(amountIn, reserveIn, reserveOut, p.amp, p.feeBps)
}

// StableAmountOut quotes a swap on the stable-swap curve, fee taken from the
// output and rounded up.
func StableAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, amp uint64, feeBps uint32) (*uint256.Int, error) {
	ann := uint256.NewInt(amp * stableCoins * stableCoins)

	d, err := stableInvariant(reserveIn, reserveOut, ann)
	if err != nil {
		return nil, err
	}

	x, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow {
		return nil, ErrStableOverflow
	}
	y, err := stableY(x, d, ann)
	if err != nil {
		return nil, err
	}

	// dy = reserveOut - y - 1, rounding against the trader
	if !y.Lt(reserveOut) {
		return new(uint256.Int), nil
	}
	dy := new(uint256.Int).Sub(reserveOut, y)
	if dy.IsZero() {
		return dy, nil
	}
	dy.Sub(dy, u256One)

	fee := mulDivCeil(dy, uint256.NewInt(uint64(feeBps)), u256BpsDenom)
	return dy.Sub(dy, fee), nil
}

// stableInvariant solves D for balances x0, x1 by Newton iteration.
func stableInvariant(x0, x1, ann *uint256.Int) (*uint256.Int, error) {
	s := new(uint256.Int).Add(x0, x1)
	if s.IsZero() {
		return new(uint256.Int), nil
	}

	two := uint256.NewInt(2)
	three := uint256.NewInt(3)
	annMinusOne := new(uint256.Int).Sub(ann, u256One)

	d := new(uint256.Int).Set(s)
	for i := 0; i < stableMaxIterations; i++ {
		// dp = D^3 / (4 * x0 * x1)
		dp := mulDivFloor(d, d, new(uint256.Int).Mul(x0, two))
		dp = mulDivFloor(dp, d, new(uint256.Int).Mul(x1, two))

		prev := new(uint256.Int).Set(d)

		num, o1 := new(uint256.Int).MulOverflow(ann, s)
		dp2, o2 := new(uint256.Int).MulOverflow(dp, two)
		num, o3 := num.AddOverflow(num, dp2)
		den, o4 := new(uint256.Int).MulOverflow(annMinusOne, d)
		dp3, o5 := new(uint256.Int).MulOverflow(dp, three)
		den, o6 := den.AddOverflow(den, dp3)
		if o1 || o2 || o3 || o4 || o5 || o6 || den.IsZero() {
			return nil, ErrStableOverflow
		}
		d = mulDivFloor(num, d, den)

		if converged(d, prev) {
			return d, nil
		}
	}
	return nil, ErrStableNoConvergence
}

// stableY solves the balance of the other coin given x and the invariant d.
func stableY(x, d, ann *uint256.Int) (*uint256.Int, error) {
	two := uint256.NewInt(2)

	// c = D^3 / (4 * x * Ann)
	c := mulDivFloor(d, d, new(uint256.Int).Mul(x, two))
	c = mulDivFloor(c, d, new(uint256.Int).Mul(ann, two))

	// b = x + D/Ann
	b := new(uint256.Int).Add(x, new(uint256.Int).Div(d, ann))

	y := new(uint256.Int).Set(d)
	for i := 0; i < stableMaxIterations; i++ {
		prev := new(uint256.Int).Set(y)

		num, o1 := new(uint256.Int).MulOverflow(y, y)
		num, o2 := num.AddOverflow(num, c)
		if o1 || o2 {
			return nil, ErrStableOverflow
		}
		den := new(uint256.Int).Mul(y, two)
		den.Add(den, b)
		if !den.Gt(d) {
			return nil, ErrStableNoConvergence
		}
		den.Sub(den, d)
		y = num.Div(num, den)

		if converged(y, prev) {
			return y, nil
		}
	}
	return nil, ErrStableNoConvergence
}

func converged(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Gt(b) {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return !diff.Gt(u256One)
}
