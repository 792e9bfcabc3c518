package domain

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

type Address = solana.PublicKey

// PathStep is one hop of a route. SI and BI are backend side indices whose
// meaning depends on the protocol (reserve index sold / bought).
type PathStep struct {
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Asset    Address  `json:"asset" yaml:"asset"`
	Pool     Address  `json:"pool" yaml:"pool"`
	SI       uint32   `json:"si" yaml:"si"`
	BI       uint32   `json:"bi" yaml:"bi"`
}

type Route struct {
	Path      []PathStep
	Amount    *big.Int
	Min       *big.Int
	Estimated *big.Int
}

// BuyingAsset returns the asset of the final step.
func (r Route) BuyingAsset() (Address, bool) {
	if len(r.Path) == 0 {
		return Address{}, false
	}
	return r.Path[len(r.Path)-1].Asset, true
}

// Hop is the normalized descriptor handed to an LP adapter for a single swap.
// It only lives for the duration of one backend call.
type Hop struct {
	Step    PathStep
	InToken Address
	To      Address
	Amount  *big.Int
}
