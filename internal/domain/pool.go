package domain

import (
	"math/big"
)

// PoolInfo is a read-only view of an LP backend registered with the market.
type PoolInfo struct {
	Address  Address    `json:"address"`
	Protocol Protocol   `json:"protocol"`
	Tokens   []Address  `json:"tokens"`
	Reserves []*big.Int `json:"reserves"`
	FeeBps   uint32     `json:"feeBps"`
}
