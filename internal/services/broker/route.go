package broker

import (
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

// BuyingAsset returns the token every route ends in. No routes, an empty path
// or routes ending in different tokens make the request unfeasible.
func BuyingAsset(routes []domain.Route) (Address, error) {
	if len(routes) == 0 {
		return Address{}, fmt.Errorf("%w: no routes", domain.ErrUnfeasible)
	}
	var buying Address
	for i, route := range routes {
		asset, ok := route.BuyingAsset()
		if !ok {
			return Address{}, fmt.Errorf("%w: route %d has an empty path", domain.ErrUnfeasible, i)
		}
		if i == 0 {
			buying = asset
			continue
		}
		if asset != buying {
			return Address{}, fmt.Errorf("%w: route %d buys %s, expected %s", domain.ErrUnfeasible, i, asset, buying)
		}
	}
	return buying, nil
}

// estimateRoutes sums the planned selling amount and the guaranteed minimum.
func estimateRoutes(routes []domain.Route) (*big.Int, *big.Int, error) {
	selling, minBuying := new(big.Int), new(big.Int)
	for i, route := range routes {
		if route.Amount == nil || route.Min == nil || route.Estimated == nil {
			return nil, nil, fmt.Errorf("%w: route %d is missing amounts", domain.ErrUnfeasible, i)
		}
		if route.Amount.Sign() < 0 || route.Min.Sign() < 0 || route.Estimated.Sign() < 0 {
			return nil, nil, fmt.Errorf("%w: route %d has a negative amount", domain.ErrUnfeasible, i)
		}
		var err error
		if selling, err = domain.CheckedAdd(selling, route.Amount); err != nil {
			return nil, nil, err
		}
		if minBuying, err = domain.CheckedAdd(minBuying, route.Min); err != nil {
			return nil, nil, err
		}
	}
	return selling, minBuying, nil
}

// executeRoute chains the hops of path, feeding each output into the next
// hop, and returns what the last hop delivered to the broker.
func (s *Service) executeRoute(tx *ledger.Tx, path []domain.PathStep, amount *big.Int, selling Address) (*big.Int, error) {
	ctx := tx.Context()
	inToken := selling
	for _, step := range path {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := s.dispatcher.Dispatch(ctx, tx, domain.Hop{
			Step:    step,
			InToken: inToken,
			To:      s.address,
			Amount:  amount,
		})
		if err != nil {
			return nil, err
		}
		amount = out
		inToken = step.Asset
	}
	return amount, nil
}

// convertFee swaps fee units of buying into the reference token along path,
// as one synthetic route with estimated and min of 1.
func (s *Service) convertFee(tx *ledger.Tx, buying Address, fee *big.Int, path []domain.PathStep) (*big.Int, error) {
	if fee.Sign() == 0 {
		return new(big.Int), nil
	}
	route := domain.Route{
		Path:      path,
		Amount:    fee,
		Estimated: big.NewInt(1),
		Min:       big.NewInt(1),
	}
	return s.executeRoute(tx, route.Path, route.Amount, buying)
}
