package market

import (
	"errors"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const stateKey = "state"

var (
	ErrNotSeeded       = errors.New("market: pool has no state")
	ErrAlreadySeeded   = errors.New("market: pool already seeded")
	ErrReserveOverflow = errors.New("market: reserve does not fit u128")

	ErrEmptyPool           = errors.New("market: empty pool")
	ErrInsufficientReserve = errors.New("market: output exceeds reserve")
)

// pairState is the borsh layout of a two-token pool kept in contract storage.
type pairState struct {
	Reserve0 bin.Uint128
	Reserve1 bin.Uint128
}

func (s *pairState) reserves() [2]*uint256.Int {
	return [2]*uint256.Int{fromUint128(s.Reserve0), fromUint128(s.Reserve1)}
}

func (s *pairState) setReserves(r [2]*uint256.Int) error {
	var err error
	if s.Reserve0, err = toUint128(r[0]); err != nil {
		return err
	}
	s.Reserve1, err = toUint128(r[1])
	return err
}

func loadPair(tx *ledger.Tx) (*pairState, error) {
	raw, ok := tx.Get(stateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSeeded, tx.Current())
	}
	var s pairState
	if err := bin.UnmarshalBorsh(&s, raw); err != nil {
		return nil, fmt.Errorf("market: decode state: %w", err)
	}
	return &s, nil
}

func storePair(tx *ledger.Tx, s *pairState) error {
	raw, err := bin.MarshalBorsh(s)
	if err != nil {
		return fmt.Errorf("market: encode state: %w", err)
	}
	return tx.Put(stateKey, raw)
}

// seedPair mints the initial reserves to the pool and records them. Must run
// in the pool's own frame.
func seedPair(tx *ledger.Tx, tokens [2]Address, reserves []*big.Int) error {
	if len(reserves) != 2 {
		return fmt.Errorf("market: expected 2 reserves, got %d", len(reserves))
	}
	if _, ok := tx.Get(stateKey); ok {
		return fmt.Errorf("%w: %s", ErrAlreadySeeded, tx.Current())
	}

	var r [2]*uint256.Int
	for i, amount := range reserves {
		v, err := bigToU256(amount)
		if err != nil {
			return err
		}
		if err := tx.Mint(tokens[i], tx.Current(), amount); err != nil {
			return err
		}
		r[i] = v
	}

	s := &pairState{}
	if err := s.setReserves(r); err != nil {
		return err
	}
	return storePair(tx, s)
}

func pairReserves(tx *ledger.Tx) ([]*big.Int, error) {
	s, err := loadPair(tx)
	if err != nil {
		return nil, err
	}
	return []*big.Int{s.Reserve0.BigInt(), s.Reserve1.BigInt()}, nil
}

func fromUint128(v bin.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

func toUint128(v *uint256.Int) (bin.Uint128, error) {
	if v[2] != 0 || v[3] != 0 {
		return bin.Uint128{}, fmt.Errorf("%w: %s", ErrReserveOverflow, v.Dec())
	}
	return bin.Uint128{Lo: v[0], Hi: v[1]}, nil
}

func bigToU256(v *big.Int) (*uint256.Int, error) {
	if !domain.InU128(v) {
		return nil, fmt.Errorf("%w: %s", ErrReserveOverflow, v)
	}
	return uint256.MustFromBig(v), nil
}

// u256ToAmount converts a pool result back into a signed ledger amount.
func u256ToAmount(v *uint256.Int) (*big.Int, error) {
	out := v.ToBig()
	if !domain.InI128(out) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArithmeticOverflow, out)
	}
	return out, nil
}

func mulDivFloor(x, y, d *uint256.Int) *uint256.Int {
	z, _ := new(uint256.Int).MulDivOverflow(x, y, d)
	return z
}

func mulDivCeil(x, y, d *uint256.Int) *uint256.Int {
	z := mulDivFloor(x, y, d)
	var rem uint256.Int
	prod := new(uint256.Int).Mul(x, y)
	rem.Mod(prod, d)
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return z
}
