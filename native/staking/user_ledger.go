package staking

import (
	"fmt"

	stakeerr "stakingcore/core/errors"
	"stakingcore/native/common"
)

// StakedAmount returns the aggregate counter tracked for the asset class.
func (a *UserAccount) StakedAmount(kind AssetKind) (uint64, error) {
	counter, err := a.counter(kind)
	if err != nil {
		return 0, err
	}
	return *counter, nil
}

// Increment adds amount to the staked total of the asset class. The account is
// left untouched when the addition overflows.
func (a *UserAccount) Increment(kind AssetKind, amount uint64) error {
	counter, err := a.counter(kind)
	if err != nil {
		return err
	}
	next, err := common.CheckedAdd(*counter, amount)
	if err != nil {
		return fmt.Errorf("%s staked amount: %w", kind, err)
	}
	*counter = next
	return nil
}

// Decrement subtracts amount from the staked total of the asset class. The
// account is left untouched when amount exceeds the current value.
func (a *UserAccount) Decrement(kind AssetKind, amount uint64) error {
	counter, err := a.counter(kind)
	if err != nil {
		return err
	}
	next, err := common.CheckedSub(*counter, amount)
	if err != nil {
		return fmt.Errorf("%s staked amount: %w", kind, err)
	}
	*counter = next
	return nil
}

// AddPoints credits reward points, failing on overflow.
func (a *UserAccount) AddPoints(amount uint64) error {
	if a == nil {
		return fmt.Errorf("stake: nil account")
	}
	next, err := common.CheckedAdd(a.Points, amount)
	if err != nil {
		return fmt.Errorf("points: %w", err)
	}
	a.Points = next
	return nil
}

func (a *UserAccount) counter(kind AssetKind) (*uint64, error) {
	if a == nil {
		return nil, fmt.Errorf("stake: nil account")
	}
	switch kind {
	case AssetNative:
		return &a.NativeStaked, nil
	case AssetFungible:
		return &a.FungibleStaked, nil
	case AssetNonFungible:
		return &a.NFTStaked, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset class %d", stakeerr.ErrInvalidAsset, kind)
	}
}
