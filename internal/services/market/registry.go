package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

var (
	ErrPoolExists   = errors.New("market: pool already registered")
	ErrPoolNotFound = errors.New("market: pool not found")
)

// Registry resolves pool addresses to backends and serves read-only pool views.
type Registry struct {
	ledger   *ledger.Ledger
	backends *ShardedBackendMap
}

func NewRegistry(l *ledger.Ledger) *Registry {
	return &Registry{
		ledger:   l,
		backends: NewShardedBackendMap(),
	}
}

func (r *Registry) Register(b Backend) error {
	if !r.backends.SetIfAbsent(b.Address(), b) {
		return fmt.Errorf("%w: %s", ErrPoolExists, b.Address())
	}
	metrics.PoolCount.Set(float64(r.backends.Len()))
	return nil
}

// Seed registers b and funds it with its initial reserves in one ledger call.
func (r *Registry) Seed(ctx context.Context, b Backend, reserves []*big.Int) error {
	if err := r.Register(b); err != nil {
		return err
	}
	err := r.ledger.Invoke(ctx, b.Address(), nil, func(tx *ledger.Tx) error {
		return b.Seed(tx, reserves)
	})
	if err != nil {
		r.backends.Delete(b.Address())
		metrics.PoolCount.Set(float64(r.backends.Len()))
		return err
	}
	return nil
}

// Attach registers b and seeds it only when the ledger holds no state for
// the pool yet, so restarts over a restored ledger keep the live reserves.
func (r *Registry) Attach(ctx context.Context, b Backend, reserves []*big.Int) (seeded bool, err error) {
	var restored bool
	err = r.ledger.View(ctx, b.Address(), func(tx *ledger.Tx) error {
		_, err := loadPair(tx)
		restored = err == nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if restored {
		return false, r.Register(b)
	}
	return true, r.Seed(ctx, b, reserves)
}

// Lookup implements lpadapter.Resolver.
func (r *Registry) Lookup(pool Address) (any, bool) {
	return r.backends.Get(pool)
}

func (r *Registry) Count() int {
	return r.backends.Len()
}

func (r *Registry) Pool(ctx context.Context, address Address) (*domain.PoolInfo, error) {
	b, ok := r.backends.Get(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address)
	}
	return r.describe(ctx, b)
}

// Pools lists every registered pool, optionally filtered by protocol, ordered by address.
func (r *Registry) Pools(ctx context.Context, protocol *domain.Protocol) ([]*domain.PoolInfo, error) {
	var selected []Backend
	r.backends.Range(func(_ Address, b Backend) bool {
		if protocol == nil || b.Protocol() == *protocol {
			selected = append(selected, b)
		}
		return true
	})
	sort.Slice(selected, func(i, j int) bool {
		a, b := selected[i].Address(), selected[j].Address()
		return bytes.Compare(a[:], b[:]) < 0
	})

	infos := make([]*domain.PoolInfo, 0, len(selected))
	for _, b := range selected {
		info, err := r.describe(ctx, b)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *Registry) describe(ctx context.Context, b Backend) (*domain.PoolInfo, error) {
	var reserves []*big.Int
	err := r.ledger.View(ctx, b.Address(), func(tx *ledger.Tx) error {
		var err error
		reserves, err = b.Reserves(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &domain.PoolInfo{
		Address:  b.Address(),
		Protocol: b.Protocol(),
		Tokens:   b.Tokens(),
		Reserves: reserves,
		FeeBps:   b.FeeBps(),
	}, nil
}
