package domain

import (
	"math/big"
)

type SwapRequest struct {
	Selling Address

	Routes []Route

	Trader Address

	// VFee is charged from the profit over the estimate, in parts per thousand.
	VFee uint32

	// FFee is charged from the whole bought amount, in parts per thousand.
	FFee uint32

	// FeePath converts the fee from the buying asset into the reference fee token.
	FeePath []PathStep
}

type SwapResult struct {
	ID string `json:"id"`

	SellingAmount *big.Int `json:"sellingAmount"`

	Bought *big.Int `json:"bought"`

	ReceivedFee *big.Int `json:"receivedFee"`
}

// Values returns the settlement record as [sold, bought, fee].
func (r *SwapResult) Values() [3]*big.Int {
	return [3]*big.Int{r.SellingAmount, r.Bought, r.ReceivedFee}
}
