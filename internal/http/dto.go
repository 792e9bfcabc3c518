package http

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/broker-engine/internal/domain"
)

// PathStepDTO is one hop of a route as sent over the wire.
type PathStepDTO struct {
	// Protocol name (AquaConstant, AquaStable, Soroswap, Comet, Phoenix) or numeric id
	Protocol string `json:"protocol" binding:"required" example:"AquaConstant"`

	// Token received from this hop
	Asset string `json:"asset" binding:"required" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`

	// Pool address
	Pool string `json:"pool" binding:"required" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`

	// Sell and buy side indices, protocol specific
	SI uint32 `json:"si" example:"0"`
	BI uint32 `json:"bi" example:"1"`
}

type RouteDTO struct {
	Path []PathStepDTO `json:"path" binding:"required,min=1"`

	// Amount of the selling token routed through this path, base units
	Amount string `json:"amount" binding:"required" example:"1000000000"`

	// Guaranteed minimum of the buying token
	Min string `json:"min" binding:"required" example:"690000000"`

	// Expected output used to compute the performance fee
	Estimated string `json:"estimated" binding:"required" example:"700000000"`
}

func parseAddress(field, s string) (domain.Address, error) {
	addr, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return domain.Address{}, fmt.Errorf("invalid %s address: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := domain.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}

func (s PathStepDTO) toDomain() (domain.PathStep, error) {
	protocol, err := domain.ParseProtocol(s.Protocol)
	if err != nil {
		return domain.PathStep{}, err
	}
	asset, err := parseAddress("asset", s.Asset)
	if err != nil {
		return domain.PathStep{}, err
	}
	pool, err := parseAddress("pool", s.Pool)
	if err != nil {
		return domain.PathStep{}, err
	}
	return domain.PathStep{Protocol: protocol, Asset: asset, Pool: pool, SI: s.SI, BI: s.BI}, nil
}

func pathToDomain(steps []PathStepDTO) ([]domain.PathStep, error) {
	out := make([]domain.PathStep, 0, len(steps))
	for i, s := range steps {
		step, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, step)
	}
	return out, nil
}

func (r RouteDTO) toDomain() (domain.Route, error) {
	path, err := pathToDomain(r.Path)
	if err != nil {
		return domain.Route{}, err
	}
	route := domain.Route{Path: path}
	if route.Amount, err = parseAmount("amount", r.Amount); err != nil {
		return domain.Route{}, err
	}
	if route.Min, err = parseAmount("min", r.Min); err != nil {
		return domain.Route{}, err
	}
	if route.Estimated, err = parseAmount("estimated", r.Estimated); err != nil {
		return domain.Route{}, err
	}
	return route, nil
}
