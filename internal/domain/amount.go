package domain

import (
	"errors"
	"fmt"
	"math/big"
)

var ErrArithmeticOverflow = errors.New("arithmetic overflow")

var (
	MaxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	MaxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

func InI128(x *big.Int) bool {
	return x != nil && x.Cmp(MinI128) >= 0 && x.Cmp(MaxI128) <= 0
}

func InU128(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(MaxU128) <= 0
}

func checkI128(op string, x *big.Int) (*big.Int, error) {
	if !InI128(x) {
		return nil, fmt.Errorf("%w: %s result %s out of i128 range", ErrArithmeticOverflow, op, x)
	}
	return x, nil
}

func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	return checkI128("add", new(big.Int).Add(a, b))
}

func CheckedSub(a, b *big.Int) (*big.Int, error) {
	return checkI128("sub", new(big.Int).Sub(a, b))
}

func CheckedMul(a, b *big.Int) (*big.Int, error) {
	return checkI128("mul", new(big.Int).Mul(a, b))
}

// CheckedDiv divides truncating toward zero.
func CheckedDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	return checkI128("div", new(big.Int).Quo(a, b))
}

// ParseAmount parses a base-10 i128 amount.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if !InI128(v) {
		return nil, fmt.Errorf("%w: amount %s out of i128 range", ErrArithmeticOverflow, s)
	}
	return v, nil
}
