package rewards

import (
	"fmt"

	"github.com/holiman/uint256"

	stakeerr "stakingcore/core/errors"
)

const (
	// BasisPointsDenom scales annual percentage rates expressed in basis points.
	BasisPointsDenom = 10_000

	// NativeJoinBonus is the flat reward minted when native coin is staked. It
	// does not scale with the deposited amount.
	NativeJoinBonus uint64 = 100_000_000

	// RewardDecimals is the display precision of the reward token.
	RewardDecimals = 6
)

var basisPointsDenom = uint256.NewInt(BasisPointsDenom)

// Accrual describes the inputs of a time-accrued reward computation. All
// durations are whole seconds.
type Accrual struct {
	Rate       uint64
	Elapsed    int64
	LockPeriod int64
	Locked     bool
	AprBps     uint64
}

// Scale multiplies a rate by an amount, failing when the product does not fit
// in 64 bits.
func Scale(rate, amount uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(rate), uint256.NewInt(amount))
	if overflow || !product.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d", stakeerr.ErrOverflow, rate, amount)
	}
	return product.Uint64(), nil
}

// Accrue computes the yield earned over the elapsed interval. The base reward
// is rate*elapsed. Locked positions earn an additional
// lockPeriod*rate*aprBps/10_000, truncated toward zero.
func Accrue(a Accrual) (uint64, error) {
	if a.Elapsed < 0 {
		return 0, fmt.Errorf("%w: negative elapsed time %d", stakeerr.ErrUnderflow, a.Elapsed)
	}
	base, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a.Rate), uint256.NewInt(uint64(a.Elapsed)))
	if overflow {
		return 0, fmt.Errorf("%w: accrual base", stakeerr.ErrOverflow)
	}
	total := base
	if a.Locked {
		bonus, err := LockedBonus(a.Rate, a.LockPeriod, a.AprBps)
		if err != nil {
			return 0, err
		}
		total, overflow = new(uint256.Int).AddOverflow(base, bonus)
		if overflow {
			return 0, fmt.Errorf("%w: accrual total", stakeerr.ErrOverflow)
		}
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("%w: reward %s exceeds 64 bits", stakeerr.ErrOverflow, total.Dec())
	}
	return total.Uint64(), nil
}

// LockedBonus returns lockPeriod*rate*aprBps/10_000 computed at 256-bit width.
func LockedBonus(rate uint64, lockPeriod int64, aprBps uint64) (*uint256.Int, error) {
	if lockPeriod < 0 {
		return nil, fmt.Errorf("%w: negative lock period %d", stakeerr.ErrUnderflow, lockPeriod)
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(lockPeriod)), uint256.NewInt(rate))
	if overflow {
		return nil, fmt.Errorf("%w: locked bonus", stakeerr.ErrOverflow)
	}
	product, overflow = new(uint256.Int).MulOverflow(product, uint256.NewInt(aprBps))
	if overflow {
		return nil, fmt.Errorf("%w: locked bonus", stakeerr.ErrOverflow)
	}
	return product.Div(product, basisPointsDenom), nil
}
