package broker

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/metrics"
	"github.com/hxuan190/broker-engine/internal/services"
)

// Swap settles req on behalf of caller. Any failure aborts the whole call and
// leaves every balance as it was.
func (s *Service) Swap(ctx context.Context, caller Address, req *domain.SwapRequest) (*domain.SwapResult, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := s.logger.With(map[string]string{
		"swap":   id,
		"trader": req.Trader.String(),
	})

	var result *domain.SwapResult
	err := s.ledger.Invoke(ctx, s.address, []Address{caller}, func(tx *ledger.Tx) error {
		var err error
		result, err = s.settle(tx, id, logger, req)
		return err
	})

	metrics.SwapDuration.Observe(time.Since(start).Seconds())
	metrics.RoutesPerSwap.Observe(float64(len(req.Routes)))

	if err != nil {
		code := "internal"
		if c, ok := domain.ErrorCode(err); ok {
			code = strconv.FormatUint(uint64(c), 10)
		}
		metrics.SwapRequests.WithLabelValues("rejected", code).Inc()
		logger.Warn().
			Err(err).
			Str("code", code).
			Int("routes", len(req.Routes)).
			Msg("swap aborted")
		return nil, err
	}

	metrics.SwapRequests.WithLabelValues("settled", "0").Inc()
	logger.Info().
		Str("selling", req.Selling.String()).
		Int("routes", len(req.Routes)).
		Str("sold", result.SellingAmount.String()).
		Str("bought", result.Bought.String()).
		Str("fee", result.ReceivedFee.String()).
		Dur("took", time.Since(start)).
		Msg("swap settled")
	return result, nil
}

func (s *Service) settle(tx *ledger.Tx, id string, logger *services.ServiceLogger, req *domain.SwapRequest) (*domain.SwapResult, error) {
	if err := tx.RequireAuth(req.Trader); err != nil {
		return nil, err
	}

	buying, err := BuyingAsset(req.Routes)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(tx)
	if err != nil {
		return nil, err
	}
	feeToken := settings.FeeToken

	convertsFee := feeToken != buying && len(req.FeePath) > 0
	if convertsFee && req.FeePath[len(req.FeePath)-1].Asset != feeToken {
		return nil, fmt.Errorf("%w: fee path ends in %s, fee token is %s",
			domain.ErrInvalidPath, req.FeePath[len(req.FeePath)-1].Asset, feeToken)
	}

	sellingAmount, minBuying, err := estimateRoutes(req.Routes)
	if err != nil {
		return nil, err
	}

	feeBefore := tx.Balance(feeToken, s.address)

	// the broker takes custody of the whole selling amount up front
	if err := tx.Transfer(req.Selling, req.Trader, s.address, sellingAmount); err != nil {
		return nil, err
	}

	sellingBefore := tx.Balance(req.Selling, s.address)
	buyingBefore := tx.Balance(buying, s.address)

	bought, estimated := new(big.Int), new(big.Int)
	for _, route := range req.Routes {
		out, err := s.executeRoute(tx, route.Path, route.Amount, req.Selling)
		if err != nil {
			return nil, err
		}
		if bought, err = domain.CheckedAdd(bought, out); err != nil {
			return nil, err
		}
		if estimated, err = domain.CheckedAdd(estimated, route.Estimated); err != nil {
			return nil, err
		}
	}

	fee, err := TotalFee(Profit(estimated, bought), bought, req.VFee, req.FFee)
	if err != nil {
		return nil, err
	}

	sellingAdjust, buyingAdjust := new(big.Int), new(big.Int)
	received, expectedFeeDelta := new(big.Int), new(big.Int)
	if fee.Sign() > 0 {
		if bought, err = domain.CheckedSub(bought, fee); err != nil {
			return nil, err
		}
		switch {
		case feeToken == buying:
			received = fee
			buyingAdjust = new(big.Int).Neg(fee)
			expectedFeeDelta = fee
		case !convertsFee:
			// no fee path: the fee stays in the buying token
			logger.Warn().
				Str("buying", buying.String()).
				Str("feeToken", feeToken.String()).
				Str("fee", fee.String()).
				Msg("empty fee path, fee retained in the buying token")
			received = fee
			buyingAdjust = new(big.Int).Neg(fee)
		default:
			if received, err = s.convertFee(tx, buying, fee, req.FeePath); err != nil {
				return nil, err
			}
			expectedFeeDelta = received
			if feeToken == req.Selling {
				sellingAdjust = new(big.Int).Neg(received)
			}
		}
	}

	if err := VerifySold(sellingBefore, tx.Balance(req.Selling, s.address), sellingAdjust, sellingAmount); err != nil {
		return nil, err
	}
	if err := VerifyBought(buyingBefore, tx.Balance(buying, s.address), buyingAdjust, minBuying); err != nil {
		return nil, err
	}

	if err := tx.Transfer(buying, s.address, req.Trader, bought); err != nil {
		return nil, err
	}

	if err := VerifyRetainedFee(feeBefore, tx.Balance(feeToken, s.address), expectedFeeDelta); err != nil {
		return nil, err
	}

	if expectedFeeDelta.Sign() > 0 {
		retained, _ := new(big.Float).SetInt(expectedFeeDelta).Float64()
		metrics.FeesRetained.WithLabelValues(feeToken.String()).Add(retained)
	}

	return &domain.SwapResult{
		ID:            id,
		SellingAmount: sellingAmount,
		Bought:        bought,
		ReceivedFee:   received,
	}, nil
}
