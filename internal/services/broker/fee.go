package broker

import (
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
)

// FeeDenominator: vfee and ffee are expressed in parts per thousand.
const FeeDenominator = 1000

var feeDenominator = big.NewInt(FeeDenominator)

// Profit is how much the routes delivered above the estimate, never negative.
func Profit(estimated, bought *big.Int) *big.Int {
	diff := new(big.Int).Sub(bought, estimated)
	if diff.Sign() <= 0 {
		return new(big.Int)
	}
	return diff
}

// CalcFee returns trunc(amount*share/1000).
func CalcFee(amount *big.Int, share uint32) (*big.Int, error) {
	scaled, err := domain.CheckedMul(amount, new(big.Int).SetUint64(uint64(share)))
	if err != nil {
		return nil, err
	}
	return domain.CheckedDiv(scaled, feeDenominator)
}

// TotalFee is the performance fee on profit plus the flat fee on bought, both
// computed on pre-fee values.
func TotalFee(profit, bought *big.Int, vfee, ffee uint32) (*big.Int, error) {
	variable, err := CalcFee(profit, vfee)
	if err != nil {
		return nil, err
	}
	flat, err := CalcFee(bought, ffee)
	if err != nil {
		return nil, err
	}
	return domain.CheckedAdd(variable, flat)
}
