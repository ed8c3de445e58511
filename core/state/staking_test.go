package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stakingcore/crypto"
	"stakingcore/native/staking"
	"stakingcore/storage"
)

func testAddr(b byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestStakingKeyFormats(t *testing.T) {
	require.Equal(t, "staking/config", string(StakingConfigKey()))
	require.Equal(t, append([]byte("staking/account/"), 0x01, 0x02), StakingAccountKey([]byte{0x01, 0x02}))
	require.Equal(t, append([]byte("staking/owner/"), 0xaa), StakingOwnerIndexKey([]byte{0xaa}))
	require.Equal(t, "staking/positions", string(StakingPositionsIndexKey()))
}

func TestStakingConfigRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	_, ok, err := mgr.StakingConfig()
	require.NoError(t, err)
	require.False(t, ok)

	cfg := &staking.Config{
		PointsPerNFTStake:       5,
		PointsPerNativeStake:    6,
		PointsPerFungibleStake:  7,
		MinFreezePeriod:         86_400,
		AnnualPercentageRateBps: 1_250,
	}
	require.NoError(t, mgr.PutStakingConfig(cfg))
	loaded, ok, err := mgr.StakingConfig()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg, loaded)
}

func TestStakingAccountDefaultsToZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	acc, err := mgr.StakingAccount(testAddr(1))
	require.NoError(t, err)
	require.Equal(t, &staking.UserAccount{}, acc)

	require.NoError(t, mgr.PutStakingAccount(testAddr(1), &staking.UserAccount{Points: 9, NativeStaked: 3}))
	acc, err = mgr.StakingAccount(testAddr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(9), acc.Points)
	require.Equal(t, uint64(3), acc.NativeStaked)
}

func TestStakingPositionIndexes(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	owner := testAddr(1)
	first := &staking.Position{
		Owner:      owner,
		Asset:      staking.FungibleAsset(testAddr(9)),
		Seed:       1,
		Amount:     500,
		StakedAt:   -5,
		LockPeriod: 86_400,
		Locked:     true,
		Status:     staking.PositionActive,
	}
	second := &staking.Position{
		Owner:    owner,
		Asset:    staking.NativeAsset(),
		Seed:     2,
		Amount:   10,
		StakedAt: 1_700_000_000,
		Status:   staking.PositionActive,
	}
	other := &staking.Position{Owner: testAddr(2), Asset: staking.NativeAsset(), Amount: 1, Status: staking.PositionActive}
	for _, pos := range []*staking.Position{first, second, other} {
		require.NoError(t, mgr.PutStakingPosition(pos))
	}

	loaded, ok, err := mgr.StakingPosition(first.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, loaded)

	mine, err := mgr.StakingPositionsByOwner(owner)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, first.ID(), mine[0].ID())
	require.Equal(t, second.ID(), mine[1].ID())

	all, err := mgr.StakingPositions()
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, mgr.DeleteStakingPosition(first))
	_, ok, err = mgr.StakingPosition(first.ID())
	require.NoError(t, err)
	require.False(t, ok)
	mine, err = mgr.StakingPositionsByOwner(owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, mgr.Commit())
	reloaded, err := NewManager(db).StakingPositions()
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
}

func TestStakingWritesRevert(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	pos := &staking.Position{Owner: testAddr(1), Asset: staking.NativeAsset(), Amount: 1, Status: staking.PositionActive}
	snap := mgr.Snapshot()
	require.NoError(t, mgr.PutStakingAccount(testAddr(1), &staking.UserAccount{NativeStaked: 1}))
	require.NoError(t, mgr.PutStakingPosition(pos))
	mgr.RevertToSnapshot(snap)

	_, ok, err := mgr.StakingPosition(pos.ID())
	require.NoError(t, err)
	require.False(t, ok)
	mine, err := mgr.StakingPositionsByOwner(testAddr(1))
	require.NoError(t, err)
	require.Empty(t, mine)
	require.Equal(t, 0, mgr.Pending())
}
