package state

import (
	"fmt"

	"stakingcore/crypto"
	"stakingcore/native/staking"
)

var _ staking.State = (*Manager)(nil)

// RLP has no signed integers; timestamps and durations are stored as their
// two's complement uint64 form.
type storedConfig struct {
	PointsPerNFTStake       uint32
	PointsPerNativeStake    uint32
	PointsPerFungibleStake  uint32
	MinFreezePeriod         uint64
	AnnualPercentageRateBps uint32
}

func newStoredConfig(cfg *staking.Config) *storedConfig {
	return &storedConfig{
		PointsPerNFTStake:       cfg.PointsPerNFTStake,
		PointsPerNativeStake:    cfg.PointsPerNativeStake,
		PointsPerFungibleStake:  cfg.PointsPerFungibleStake,
		MinFreezePeriod:         uint64(cfg.MinFreezePeriod),
		AnnualPercentageRateBps: cfg.AnnualPercentageRateBps,
	}
}

func (s *storedConfig) toConfig() *staking.Config {
	return &staking.Config{
		PointsPerNFTStake:       s.PointsPerNFTStake,
		PointsPerNativeStake:    s.PointsPerNativeStake,
		PointsPerFungibleStake:  s.PointsPerFungibleStake,
		MinFreezePeriod:         int64(s.MinFreezePeriod),
		AnnualPercentageRateBps: s.AnnualPercentageRateBps,
	}
}

type storedAccount struct {
	Points         uint64
	NFTStaked      uint64
	FungibleStaked uint64
	NativeStaked   uint64
}

type storedPosition struct {
	Owner      [20]byte
	Kind       uint8
	Mint       [20]byte
	Seed       uint64
	Amount     uint64
	StakedAt   uint64
	LockPeriod uint64
	Locked     bool
	Status     uint8
}

func newStoredPosition(pos *staking.Position) *storedPosition {
	return &storedPosition{
		Owner:      pos.Owner,
		Kind:       uint8(pos.Asset.Kind),
		Mint:       pos.Asset.Mint,
		Seed:       pos.Seed,
		Amount:     pos.Amount,
		StakedAt:   uint64(pos.StakedAt),
		LockPeriod: uint64(pos.LockPeriod),
		Locked:     pos.Locked,
		Status:     uint8(pos.Status),
	}
}

func (s *storedPosition) toPosition() *staking.Position {
	return &staking.Position{
		Owner:      crypto.Address(s.Owner),
		Asset:      staking.Asset{Kind: staking.AssetKind(s.Kind), Mint: crypto.Address(s.Mint)},
		Seed:       s.Seed,
		Amount:     s.Amount,
		StakedAt:   int64(s.StakedAt),
		LockPeriod: int64(s.LockPeriod),
		Locked:     s.Locked,
		Status:     staking.PositionStatus(s.Status),
	}
}

// StakingConfig loads the global parameters.
func (m *Manager) StakingConfig() (*staking.Config, bool, error) {
	var stored storedConfig
	ok, err := m.KVGet(StakingConfigKey(), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load staking config: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toConfig(), true, nil
}

// PutStakingConfig persists the global parameters.
func (m *Manager) PutStakingConfig(cfg *staking.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil staking config")
	}
	return m.KVPut(StakingConfigKey(), newStoredConfig(cfg))
}

// StakingAccount loads the user's aggregates. Unknown users read as zero.
func (m *Manager) StakingAccount(addr crypto.Address) (*staking.UserAccount, error) {
	var stored storedAccount
	if _, err := m.KVGet(StakingAccountKey(addr[:]), &stored); err != nil {
		return nil, fmt.Errorf("state: load staking account: %w", err)
	}
	return &staking.UserAccount{
		Points:         stored.Points,
		NFTStaked:      stored.NFTStaked,
		FungibleStaked: stored.FungibleStaked,
		NativeStaked:   stored.NativeStaked,
	}, nil
}

// PutStakingAccount persists the user's aggregates.
func (m *Manager) PutStakingAccount(addr crypto.Address, account *staking.UserAccount) error {
	if account == nil {
		account = &staking.UserAccount{}
	}
	return m.KVPut(StakingAccountKey(addr[:]), &storedAccount{
		Points:         account.Points,
		NFTStaked:      account.NFTStaked,
		FungibleStaked: account.FungibleStaked,
		NativeStaked:   account.NativeStaked,
	})
}

// StakingPosition loads the position with the given identifier.
func (m *Manager) StakingPosition(id staking.PositionID) (*staking.Position, bool, error) {
	var stored storedPosition
	ok, err := m.KVGet(StakingPositionKey(id[:]), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("state: load position %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toPosition(), true, nil
}

// PutStakingPosition persists the position and indexes it by owner.
func (m *Manager) PutStakingPosition(pos *staking.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	id := pos.ID()
	if err := m.KVPut(StakingPositionKey(id[:]), newStoredPosition(pos)); err != nil {
		return err
	}
	if err := m.KVAppend(StakingOwnerIndexKey(pos.Owner[:]), id[:]); err != nil {
		return err
	}
	return m.KVAppend(StakingPositionsIndexKey(), id[:])
}

// DeleteStakingPosition removes the position and its index entries.
func (m *Manager) DeleteStakingPosition(pos *staking.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	id := pos.ID()
	if err := m.KVDelete(StakingPositionKey(id[:])); err != nil {
		return err
	}
	if err := m.KVRemove(StakingOwnerIndexKey(pos.Owner[:]), id[:]); err != nil {
		return err
	}
	return m.KVRemove(StakingPositionsIndexKey(), id[:])
}

// StakingPositionsByOwner lists the owner's positions in creation order.
func (m *Manager) StakingPositionsByOwner(owner crypto.Address) ([]*staking.Position, error) {
	return m.positionsAt(StakingOwnerIndexKey(owner[:]))
}

// StakingPositions lists every open position in creation order.
func (m *Manager) StakingPositions() ([]*staking.Position, error) {
	return m.positionsAt(StakingPositionsIndexKey())
}

func (m *Manager) positionsAt(indexKey []byte) ([]*staking.Position, error) {
	var ids [][]byte
	if err := m.KVGetList(indexKey, &ids); err != nil {
		return nil, fmt.Errorf("state: load position index: %w", err)
	}
	out := make([]*staking.Position, 0, len(ids))
	for _, raw := range ids {
		if len(raw) != len(staking.PositionID{}) {
			return nil, fmt.Errorf("state: malformed position id %x", raw)
		}
		var id staking.PositionID
		copy(id[:], raw)
		pos, ok, err := m.StakingPosition(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}
