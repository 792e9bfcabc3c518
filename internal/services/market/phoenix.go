package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const (
	PhoenixDefaultFeeBps       = 30
	PhoenixDefaultMaxSpreadBps = 500
)

var (
	ErrPhoenixUnknownAsset = errors.New("phoenix: offer asset not in pool")
	ErrPhoenixBadAmount    = errors.New("phoenix: offer amount must be positive")
	ErrPhoenixDeadline     = errors.New("phoenix: deadline passed")
	ErrPhoenixFeeTooHigh   = errors.New("phoenix: pool fee above max_allowed_fee_bps")
	ErrPhoenixSpread       = errors.New("phoenix: spread above max_spread_bps")
	ErrPhoenixAskMin       = errors.New("phoenix: return below ask_asset_min_amount")
)

// PhoenixPool is an XYK pool that takes its commission from the return amount.
type PhoenixPool struct {
	pairBase
	maxSpreadBps int64
}

func NewPhoenixPool(address Address, tokens [2]Address, feeBps uint32, maxSpreadBps int64) *PhoenixPool {
	return &PhoenixPool{
		pairBase: pairBase{
			address:  address,
			protocol: domain.ProtocolPhoenix,
			tokens:   tokens,
			feeBps:   feeBps,
		},
		maxSpreadBps: maxSpreadBps,
	}
}

// PhoenixSwapResult breaks a quote into the paid return, the commission and
// the spread against the pre-trade price.
type PhoenixSwapResult struct {
	Return     *uint256.Int
	Commission *uint256.Int
	Spread     *uint256.Int
}

func PhoenixQuote(offer, reserveOffer, reserveAsk *uint256.Int, feeBps uint32) PhoenixSwapResult {
	gross := mulDivFloor(reserveAsk, offer, new(uint256.Int).Add(reserveOffer, offer))
	ideal := mulDivFloor(offer, reserveAsk, reserveOffer)

	spread := new(uint256.Int)
	if ideal.Gt(gross) {
		spread.Sub(ideal, gross)
	}
	commission := mulDivFloor(gross, uint256.NewInt(uint64(feeBps)), u256BpsDenom)
	return PhoenixSwapResult{
		Return:     new(uint256.Int).Sub(gross, commission),
		Commission: commission,
		Spread:     spread,
	}
}

func (p *PhoenixPool) Swap(tx *ledger.Tx, sender, offerAsset Address, offerAmount *big.Int, askAssetMinAmount *big.Int, maxSpreadBps *int64, deadline *uint64, maxAllowedFeeBps *int64) (*big.Int, error) {
	if err := tx.RequireAuth(sender); err != nil {
		return nil, err
	}
	if deadline != nil && *deadline < uint64(tx.Sequence()) {
		return nil, fmt.Errorf("%w: %d < %d", ErrPhoenixDeadline, *deadline, tx.Sequence())
	}
	if maxAllowedFeeBps != nil && int64(p.feeBps) > *maxAllowedFeeBps {
		return nil, fmt.Errorf("%w: %d > %d", ErrPhoenixFeeTooHigh, p.feeBps, *maxAllowedFeeBps)
	}
	offerIdx, ok := p.tokenIndex(offerAsset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPhoenixUnknownAsset, offerAsset)
	}
	askIdx := 1 - offerIdx
	if offerAmount.Sign() <= 0 {
		return nil, ErrPhoenixBadAmount
	}

	state, err := loadPair(tx)
	if err != nil {
		return nil, err
	}
	reserves := state.reserves()
	reserveOffer, reserveAsk := reserves[offerIdx], reserves[askIdx]
	if reserveOffer.IsZero() || reserveAsk.IsZero() {
		return nil, ErrEmptyPool
	}

	offer, err := bigToU256(offerAmount)
	if err != nil {
		return nil, err
	}
	quote := PhoenixQuote(offer, reserveOffer, reserveAsk, p.feeBps)

	spreadLimit := p.maxSpreadBps
	if maxSpreadBps != nil && *maxSpreadBps < spreadLimit {
		spreadLimit = *maxSpreadBps
	}
	if spreadLimit < 0 {
		spreadLimit = 0
	}
	ideal := new(uint256.Int).Add(quote.Return, quote.Commission)
	ideal.Add(ideal, quote.Spread)
	maxSpread := mulDivFloor(ideal, uint256.NewInt(uint64(spreadLimit)), u256BpsDenom)
	if quote.Spread.Gt(maxSpread) {
		return nil, fmt.Errorf("%w: %s > %s", ErrPhoenixSpread, quote.Spread.Dec(), maxSpread.Dec())
	}

	if askAssetMinAmount != nil && quote.Return.ToBig().Cmp(askAssetMinAmount) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", ErrPhoenixAskMin, quote.Return.Dec(), askAssetMinAmount)
	}

	pool := tx.Current()
	if err := tx.Transfer(offerAsset, sender, pool, offerAmount); err != nil {
		return nil, err
	}
	returnAmount, err := u256ToAmount(quote.Return)
	if err != nil {
		return nil, err
	}
	if err := tx.Transfer(p.tokens[askIdx], pool, sender, returnAmount); err != nil {
		return nil, err
	}

	// the commission stays in the pool and accrues to the reserve
	next := [2]*uint256.Int{}
	next[offerIdx] = new(uint256.Int).Add(reserveOffer, offer)
	next[askIdx] = new(uint256.Int).Sub(reserveAsk, quote.Return)
	if err := state.setReserves(next); err != nil {
		return nil, err
	}
	if err := storePair(tx, state); err != nil {
		return nil, err
	}
	return returnAmount, nil
}
