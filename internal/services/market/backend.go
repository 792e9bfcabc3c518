// Package market hosts the in-process LP backends the broker can route
// through, together with the registry that resolves them by pool address.
package market

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

type Address = domain.Address

// Backend is implemented by every pool registered with the market.
type Backend interface {
	Address() Address
	Protocol() domain.Protocol
	Tokens() []Address
	FeeBps() uint32

	// Reserves reads the pool state; tx must be positioned on the pool.
	Reserves(tx *ledger.Tx) ([]*big.Int, error)

	// Seed mints the initial reserves to the pool; tx must be positioned on the pool.
	Seed(tx *ledger.Tx, reserves []*big.Int) error
}

var (
	u256One      = uint256.NewInt(1)
	u256BpsDenom = uint256.NewInt(10000)
)

type pairBase struct {
	address  Address
	protocol domain.Protocol
	tokens   [2]Address
	feeBps   uint32
}

func (p *pairBase) Address() Address          { return p.address }
func (p *pairBase) Protocol() domain.Protocol { return p.protocol }
func (p *pairBase) Tokens() []Address         { return []Address{p.tokens[0], p.tokens[1]} }
func (p *pairBase) FeeBps() uint32            { return p.feeBps }

func (p *pairBase) Reserves(tx *ledger.Tx) ([]*big.Int, error) {
	return pairReserves(tx)
}

func (p *pairBase) Seed(tx *ledger.Tx, reserves []*big.Int) error {
	return seedPair(tx, p.tokens, reserves)
}

func (p *pairBase) tokenIndex(token Address) (int, bool) {
	for i, t := range p.tokens {
		if t == token {
			return i, true
		}
	}
	return 0, false
}
