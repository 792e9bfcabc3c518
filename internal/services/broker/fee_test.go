package broker

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/broker-engine/internal/domain"
)

func TestTotalFee(t *testing.T) {
	tests := []struct {
		name      string
		estimated int64
		bought    int64
		vfee      uint32
		ffee      uint32
		want      int64
	}{
		{"profit and flat", 70, 80, 150, 10, 1},
		{"below estimate", 90, 80, 150, 0, 0},
		{"flat only", 0, 1000, 0, 10, 10},
		{"truncates", 70, 79, 150, 0, 1},
		{"zero shares", 1, 1_000_000, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bought := big.NewInt(tt.bought)
			fee, err := TotalFee(Profit(big.NewInt(tt.estimated), bought), bought, tt.vfee, tt.ffee)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fee.Int64())
		})
	}

	// net payout after the fee
	bought := big.NewInt(80)
	fee, err := TotalFee(Profit(big.NewInt(70), bought), bought, 150, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(79), new(big.Int).Sub(bought, fee).Int64())
}

func TestFeeMonotonic(t *testing.T) {
	prev := big.NewInt(0)
	for b := int64(0); b <= 5000; b += 37 {
		bought := big.NewInt(b)
		fee, err := TotalFee(Profit(big.NewInt(1000), bought), bought, 150, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fee.Cmp(prev), 0, "fee decreased at bought=%d", b)
		assert.LessOrEqual(t, fee.Cmp(bought), 0)
		prev = fee
	}
}

func TestCalcFeeOverflow(t *testing.T) {
	_, err := CalcFee(domain.MaxI128, 1000)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestVerify(t *testing.T) {
	n := big.NewInt

	assert.NoError(t, VerifySold(n(100), n(40), n(0), n(60)))
	assert.ErrorIs(t, VerifySold(n(100), n(30), n(0), n(60)), domain.ErrMisconduct)
	// a surplus left on the broker is as suspicious as a deficit
	assert.ErrorIs(t, VerifySold(n(100), n(50), n(0), n(60)), domain.ErrMisconduct)
	// fee converted from the selling token is added back
	assert.NoError(t, VerifySold(n(100), n(45), n(-5), n(60)))

	assert.NoError(t, VerifyBought(n(0), n(80), n(-1), n(79)))
	assert.ErrorIs(t, VerifyBought(n(0), n(80), n(-1), n(80)), domain.ErrUnfeasible)

	assert.NoError(t, VerifyRetainedFee(n(10), n(11), n(1)))
	assert.ErrorIs(t, VerifyRetainedFee(n(10), n(10), n(1)), domain.ErrMisconduct)
	assert.ErrorIs(t, VerifyRetainedFee(n(10), n(7), n(-3)), domain.ErrMisconduct)
}
