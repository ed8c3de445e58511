package staking

import (
	"fmt"

	stakeerr "stakingcore/core/errors"
	"stakingcore/core/rewards"
)

// JoinBonus returns the reward minted immediately when a position opens.
// Fungible deposits earn PointsPerFungibleStake per unit. Native deposits earn
// the flat rewards.NativeJoinBonus regardless of size. Collectibles earn a
// flat PointsPerNFTStake.
func JoinBonus(asset Asset, amount uint64, cfg *Config) (uint64, error) {
	if cfg == nil {
		return 0, stakeerr.ErrNotInitialized
	}
	switch asset.Kind {
	case AssetFungible:
		return rewards.Scale(uint64(cfg.PointsPerFungibleStake), amount)
	case AssetNative:
		return rewards.NativeJoinBonus, nil
	case AssetNonFungible:
		return uint64(cfg.PointsPerNFTStake), nil
	default:
		return 0, fmt.Errorf("%w: unknown asset class %d", stakeerr.ErrInvalidAsset, asset.Kind)
	}
}

// RateFor returns the per-second accrual rate of the asset class.
func RateFor(kind AssetKind, cfg *Config) (uint64, error) {
	if cfg == nil {
		return 0, stakeerr.ErrNotInitialized
	}
	switch kind {
	case AssetNative:
		return uint64(cfg.PointsPerNativeStake), nil
	case AssetFungible:
		return uint64(cfg.PointsPerFungibleStake), nil
	case AssetNonFungible:
		return uint64(cfg.PointsPerNFTStake), nil
	default:
		return 0, fmt.Errorf("%w: unknown asset class %d", stakeerr.ErrInvalidAsset, kind)
	}
}

// AccruedReward returns the yield a position has earned after elapsed seconds.
func AccruedReward(pos *Position, elapsed int64, cfg *Config) (uint64, error) {
	if pos == nil {
		return 0, stakeerr.ErrRecordNotFound
	}
	rate, err := RateFor(pos.Asset.Kind, cfg)
	if err != nil {
		return 0, err
	}
	return rewards.Accrue(rewards.Accrual{
		Rate:       rate,
		Elapsed:    elapsed,
		LockPeriod: pos.LockPeriod,
		Locked:     pos.Locked,
		AprBps:     uint64(cfg.AnnualPercentageRateBps),
	})
}
