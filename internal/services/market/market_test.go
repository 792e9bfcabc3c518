package market

import (
	"context"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

type testMarket struct {
	ledger   *ledger.Ledger
	registry *Registry
	tokenA   Address
	tokenB   Address
	user     Address
}

func newTestMarket(t *testing.T) *testMarket {
	t.Helper()
	l := ledger.New()
	m := &testMarket{
		ledger:   l,
		registry: NewRegistry(l),
		tokenA:   solana.NewWallet().PublicKey(),
		tokenB:   solana.NewWallet().PublicKey(),
		user:     solana.NewWallet().PublicKey(),
	}
	err := l.Invoke(context.Background(), m.user, nil, func(tx *ledger.Tx) error {
		if err := tx.Mint(m.tokenA, m.user, big.NewInt(1e15)); err != nil {
			return err
		}
		return tx.Mint(m.tokenB, m.user, big.NewInt(1e15))
	})
	require.NoError(t, err)
	return m
}

func (m *testMarket) seed(t *testing.T, b Backend, r0, r1 int64) {
	t.Helper()
	require.NoError(t, m.registry.Seed(context.Background(), b, []*big.Int{big.NewInt(r0), big.NewInt(r1)}))
}

// asUser runs fn positioned on pool with the user signing the call.
func (m *testMarket) asUser(pool Address, fn func(tx *ledger.Tx) error) error {
	return m.ledger.Invoke(context.Background(), pool, []Address{m.user}, fn)
}

func (m *testMarket) reserves(t *testing.T, pool Address) []*big.Int {
	t.Helper()
	info, err := m.registry.Pool(context.Background(), pool)
	require.NoError(t, err)
	return info.Reserves
}

func TestAquaAmountOut(t *testing.T) {
	out := AquaAmountOut(uint256.NewInt(1e9), uint256.NewInt(1e13), uint256.NewInt(1e14), AquaDefaultFeeBps)
	assert.Equal(t, uint64(9969003098), out.Uint64())
}

func TestAquaConstantSwap(t *testing.T) {
	m := newTestMarket(t)
	pool := NewAquaConstantPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaDefaultFeeBps)
	m.seed(t, pool, 1e13, 1e14)

	var out *big.Int
	err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		var err error
		out, err = pool.Swap(tx, m.user, 0, 1, big.NewInt(1e9), big.NewInt(1))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9969003098), out.Int64())

	reserves := m.reserves(t, pool.Address())
	assert.Equal(t, int64(1e13+1e9), reserves[0].Int64())
	assert.Equal(t, int64(1e14-9969003098), reserves[1].Int64())

	assert.Equal(t, reserves[0].Int64(), m.ledger.Balance(m.tokenA, pool.Address()).Int64())
	assert.Equal(t, reserves[1].Int64(), m.ledger.Balance(m.tokenB, pool.Address()).Int64())
}

func TestAquaSwapErrors(t *testing.T) {
	m := newTestMarket(t)
	pool := NewAquaConstantPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaDefaultFeeBps)
	m.seed(t, pool, 1e13, 1e14)

	tests := []struct {
		name    string
		in, out uint32
		amount  int64
		min     int64
		wantErr error
	}{
		{name: "same index", in: 0, out: 0, amount: 10, min: 1, wantErr: ErrAquaSameIndex},
		{name: "in out of bounds", in: 2, out: 1, amount: 10, min: 1, wantErr: ErrAquaInIndex},
		{name: "out out of bounds", in: 0, out: 2, amount: 10, min: 1, wantErr: ErrAquaOutIndex},
		{name: "zero amount", in: 0, out: 1, amount: 0, min: 1, wantErr: ErrAquaZeroAmount},
		{name: "below out_min", in: 0, out: 1, amount: 1e9, min: 1e10, wantErr: ErrAquaOutMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
				_, err := pool.Swap(tx, m.user, tt.in, tt.out, big.NewInt(tt.amount), big.NewInt(tt.min))
				return err
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// nothing moved
	reserves := m.reserves(t, pool.Address())
	assert.Equal(t, int64(1e13), reserves[0].Int64())
}

func TestAquaSwapRequiresUserAuth(t *testing.T) {
	m := newTestMarket(t)
	pool := NewAquaConstantPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaDefaultFeeBps)
	m.seed(t, pool, 1e13, 1e14)

	err := m.ledger.Invoke(context.Background(), pool.Address(), nil, func(tx *ledger.Tx) error {
		_, err := pool.Swap(tx, m.user, 0, 1, big.NewInt(1e9), big.NewInt(1))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAquaStableSwap(t *testing.T) {
	m := newTestMarket(t)
	pool := NewAquaStablePool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaStableDefaultAmp, AquaStableDefaultFeeBps)
	m.seed(t, pool, 1e12, 1e12)

	var out *big.Int
	err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		var err error
		out, err = pool.Swap(tx, m.user, 1, 0, big.NewInt(1e9), big.NewInt(1))
		return err
	})
	require.NoError(t, err)

	// a balanced stable pool trades close to 1:1, below the constant-product rate
	assert.True(t, out.Cmp(big.NewInt(1e9)) < 0)
	assert.True(t, out.Cmp(big.NewInt(998_000_000)) > 0, "got %s", out)

	cp := AquaAmountOut(uint256.NewInt(1e9), uint256.NewInt(1e12), uint256.NewInt(1e12), AquaStableDefaultFeeBps)
	assert.True(t, out.Cmp(cp.ToBig()) > 0)
}

func TestStableInvariantBalanced(t *testing.T) {
	ann := uint256.NewInt(AquaStableDefaultAmp * 4)
	d, err := stableInvariant(uint256.NewInt(1e12), uint256.NewInt(1e12), ann)
	require.NoError(t, err)
	assert.Equal(t, uint64(2e12), d.Uint64())
}

func TestSoroswapPairSwap(t *testing.T) {
	m := newTestMarket(t)
	pair := NewSoroswapPair(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB})
	m.seed(t, pair, 190104976848, 198442923346)

	err := m.asUser(pair.Address(), func(tx *ledger.Tx) error {
		if err := tx.Transfer(m.tokenA, m.user, pair.Address(), big.NewInt(18920)); err != nil {
			return err
		}
		return pair.Swap(tx, big.NewInt(0), big.NewInt(19690), m.user)
	})
	require.NoError(t, err)

	r0, r1 := m.reserves(t, pair.Address())[0], m.reserves(t, pair.Address())[1]
	assert.Equal(t, int64(190104976848+18920), r0.Int64())
	assert.Equal(t, int64(198442923346-19690), r1.Int64())
}

func TestSoroswapPairSwapErrors(t *testing.T) {
	m := newTestMarket(t)
	pair := NewSoroswapPair(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB})
	m.seed(t, pair, 1e9, 1e9)

	tests := []struct {
		name    string
		pay     int64
		out0    int64
		out1    int64
		to      Address
		wantErr error
	}{
		{name: "no output", pay: 10, out0: 0, out1: 0, to: m.user, wantErr: ErrPairZeroOut},
		{name: "negative output", pay: 10, out0: -1, out1: 5, to: m.user, wantErr: ErrPairNegativeOut},
		{name: "drains reserve", pay: 10, out0: 0, out1: 1e9, to: m.user, wantErr: ErrPairInsufficientReserve},
		{name: "pays a pair token", pay: 10, out0: 0, out1: 5, to: m.tokenA, wantErr: ErrPairInvalidTo},
		{name: "nothing paid in", pay: 0, out0: 0, out1: 5, to: m.user, wantErr: ErrPairNoInput},
		{name: "k violated", pay: 1000, out0: 0, out1: 1000, to: m.user, wantErr: ErrPairK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.asUser(pair.Address(), func(tx *ledger.Tx) error {
				if tt.pay > 0 {
					if err := tx.Transfer(m.tokenA, m.user, pair.Address(), big.NewInt(tt.pay)); err != nil {
						return err
					}
				}
				return pair.Swap(tx, big.NewInt(tt.out0), big.NewInt(tt.out1), tt.to)
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCometSwapExactAmountIn(t *testing.T) {
	m := newTestMarket(t)
	pool := NewCometPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, CometDefaultFeeBps)
	m.seed(t, pool, 1e12, 1e12)

	var out, spot *big.Int
	err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		var err error
		out, spot, err = pool.SwapExactAmountIn(tx, m.tokenA, big.NewInt(1e8), m.tokenB, big.NewInt(1), new(big.Int).SetUint64(^uint64(0)), m.user)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99690060), out.Int64())
	assert.True(t, spot.Cmp(big.NewInt(cometPriceScale)) > 0)

	// the approval is fully spent
	assert.Zero(t, m.ledger.Allowance(m.tokenA, m.user, pool.Address()).Amount.Sign())
}

func TestCometLimits(t *testing.T) {
	m := newTestMarket(t)
	pool := NewCometPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, CometDefaultFeeBps)
	m.seed(t, pool, 1e12, 1e12)

	err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		_, _, err := pool.SwapExactAmountIn(tx, m.tokenA, big.NewInt(1e8), m.tokenB, big.NewInt(1e8), big.NewInt(1e18), m.user)
		return err
	})
	assert.ErrorIs(t, err, ErrCometLimitOut)

	err = m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		_, _, err := pool.SwapExactAmountIn(tx, m.tokenA, big.NewInt(1e8), m.tokenB, big.NewInt(1), big.NewInt(cometPriceScale), m.user)
		return err
	})
	assert.ErrorIs(t, err, ErrCometLimitPrice)

	err = m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		_, _, err := pool.SwapExactAmountIn(tx, m.tokenA, big.NewInt(1e8), m.tokenA, big.NewInt(1), big.NewInt(1e18), m.user)
		return err
	})
	assert.ErrorIs(t, err, ErrCometSameToken)
}

func TestPhoenixSwap(t *testing.T) {
	m := newTestMarket(t)
	pool := NewPhoenixPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, PhoenixDefaultFeeBps, PhoenixDefaultMaxSpreadBps)
	m.seed(t, pool, 1e12, 2e12)

	var out *big.Int
	err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
		var err error
		out, err = pool.Swap(tx, m.user, m.tokenA, big.NewInt(1e9), nil, nil, nil, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1992007993), out.Int64())

	reserves := m.reserves(t, pool.Address())
	assert.Equal(t, int64(2e12-1992007993), reserves[1].Int64())
}

func TestPhoenixGuards(t *testing.T) {
	m := newTestMarket(t)
	pool := NewPhoenixPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, PhoenixDefaultFeeBps, PhoenixDefaultMaxSpreadBps)
	m.seed(t, pool, 1e12, 2e12)

	zeroSpread := int64(0)
	lowFee := int64(10)
	past := uint64(0)

	tests := []struct {
		name    string
		amount  int64
		askMin  *big.Int
		spread  *int64
		dl      *uint64
		maxFee  *int64
		wantErr error
	}{
		{name: "spread", amount: 1e9, spread: &zeroSpread, wantErr: ErrPhoenixSpread},
		{name: "fee cap", amount: 1e9, maxFee: &lowFee, wantErr: ErrPhoenixFeeTooHigh},
		{name: "deadline", amount: 1e9, dl: &past, wantErr: ErrPhoenixDeadline},
		{name: "ask min", amount: 1e9, askMin: big.NewInt(2e9), wantErr: ErrPhoenixAskMin},
		{name: "large trade spread", amount: 1e11, wantErr: ErrPhoenixSpread},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.asUser(pool.Address(), func(tx *ledger.Tx) error {
				_, err := pool.Swap(tx, m.user, m.tokenA, big.NewInt(tt.amount), tt.askMin, tt.spread, tt.dl, tt.maxFee)
				return err
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry(t *testing.T) {
	m := newTestMarket(t)
	aqua := NewAquaConstantPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaDefaultFeeBps)
	pair := NewSoroswapPair(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB})
	m.seed(t, aqua, 10, 20)
	m.seed(t, pair, 30, 40)

	assert.Equal(t, 2, m.registry.Count())
	assert.ErrorIs(t, m.registry.Register(aqua), ErrPoolExists)

	b, ok := m.registry.Lookup(pair.Address())
	require.True(t, ok)
	assert.Same(t, pair, b)

	_, ok = m.registry.Lookup(solana.NewWallet().PublicKey())
	assert.False(t, ok)

	all, err := m.registry.Pools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	soroswap := domain.ProtocolSoroswap
	filtered, err := m.registry.Pools(context.Background(), &soroswap)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, pair.Address(), filtered[0].Address)
	assert.Equal(t, int64(40), filtered[0].Reserves[1].Int64())

	_, err = m.registry.Pool(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestSeedTwiceFails(t *testing.T) {
	m := newTestMarket(t)
	pool := NewAquaConstantPool(solana.NewWallet().PublicKey(), [2]Address{m.tokenA, m.tokenB}, AquaDefaultFeeBps)
	m.seed(t, pool, 10, 20)

	err := m.ledger.Invoke(context.Background(), pool.Address(), nil, func(tx *ledger.Tx) error {
		return pool.Seed(tx, []*big.Int{big.NewInt(1), big.NewInt(1)})
	})
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}

func TestNewBackend(t *testing.T) {
	tokens := [2]Address{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}
	addr := solana.NewWallet().PublicKey()

	tests := []struct {
		name    string
		spec    PoolSpec
		wantFee uint32
		wantErr bool
	}{
		{name: "aqua default fee", spec: PoolSpec{Protocol: domain.ProtocolAquaConstant}, wantFee: AquaDefaultFeeBps},
		{name: "aqua custom fee", spec: PoolSpec{Protocol: domain.ProtocolAquaConstant, FeeBps: 10}, wantFee: 10},
		{name: "stable", spec: PoolSpec{Protocol: domain.ProtocolAquaStable}, wantFee: AquaStableDefaultFeeBps},
		{name: "soroswap", spec: PoolSpec{Protocol: domain.ProtocolSoroswap}, wantFee: SoroswapFeeBps},
		{name: "soroswap custom fee", spec: PoolSpec{Protocol: domain.ProtocolSoroswap, FeeBps: 5}, wantErr: true},
		{name: "comet", spec: PoolSpec{Protocol: domain.ProtocolComet}, wantFee: CometDefaultFeeBps},
		{name: "phoenix", spec: PoolSpec{Protocol: domain.ProtocolPhoenix, FeeBps: 25}, wantFee: 25},
		{name: "unknown", spec: PoolSpec{Protocol: domain.Protocol(9)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.spec.Address = addr
			tt.spec.Tokens = tokens
			b, err := NewBackend(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec.Protocol, b.Protocol())
			assert.Equal(t, tt.wantFee, b.FeeBps())
			assert.Equal(t, addr, b.Address())
		})
	}

	stable, err := NewBackend(PoolSpec{Protocol: domain.ProtocolAquaStable, Address: addr, Tokens: tokens})
	require.NoError(t, err)
	assert.Equal(t, uint64(AquaStableDefaultAmp), stable.(*AquaStablePool).Amp())
}

func TestAttachKeepsRestoredState(t *testing.T) {
	m := newTestMarket(t)
	addr := solana.NewWallet().PublicKey()
	tokens := [2]Address{m.tokenA, m.tokenB}

	seeded, err := m.registry.Attach(context.Background(), NewAquaConstantPool(addr, tokens, AquaDefaultFeeBps),
		[]*big.Int{big.NewInt(100), big.NewInt(200)})
	require.NoError(t, err)
	assert.True(t, seeded)

	// a fresh registry over the same ledger, as after a restart
	restarted := NewRegistry(m.ledger)
	seeded, err = restarted.Attach(context.Background(), NewAquaConstantPool(addr, tokens, AquaDefaultFeeBps),
		[]*big.Int{big.NewInt(1), big.NewInt(1)})
	require.NoError(t, err)
	assert.False(t, seeded)

	info, err := restarted.Pool(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Reserves[0].Int64())
	assert.Equal(t, int64(200), info.Reserves[1].Int64())
	assert.Equal(t, int64(100), m.ledger.Balance(m.tokenA, addr).Int64())
}
