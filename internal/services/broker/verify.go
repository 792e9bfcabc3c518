package broker

import (
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

// VerifySold checks that exactly planned units of the selling token left the
// broker: before - (after + adjust) == planned. A surplus fails as well.
func VerifySold(before, after, adjust, planned *big.Int) error {
	adjusted, err := domain.CheckedAdd(after, adjust)
	if err != nil {
		return err
	}
	sold, err := domain.CheckedSub(before, adjusted)
	if err != nil {
		return err
	}
	if sold.Cmp(planned) != 0 {
		metrics.MisconductDetected.WithLabelValues("sold").Inc()
		return fmt.Errorf("%w: sold %s, planned %s", domain.ErrMisconduct, sold, planned)
	}
	return nil
}

// VerifyBought checks that at least min units of the buying token arrived:
// (after + adjust) - before >= minimum.
func VerifyBought(before, after, adjust, minimum *big.Int) error {
	adjusted, err := domain.CheckedAdd(after, adjust)
	if err != nil {
		return err
	}
	bought, err := domain.CheckedSub(adjusted, before)
	if err != nil {
		return err
	}
	if bought.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: bought %s, min %s", domain.ErrUnfeasible, bought, minimum)
	}
	return nil
}

// VerifyRetainedFee checks the broker's reference-token balance moved by
// exactly the fee it retained, and never went down.
func VerifyRetainedFee(before, after, expected *big.Int) error {
	actual, err := domain.CheckedSub(after, before)
	if err != nil {
		return err
	}
	if actual.Cmp(expected) != 0 || actual.Sign() < 0 {
		metrics.MisconductDetected.WithLabelValues("fee").Inc()
		return fmt.Errorf("%w: fee token moved by %s, expected %s", domain.ErrMisconduct, actual, expected)
	}
	return nil
}
