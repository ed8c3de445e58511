package events

import (
	"encoding/hex"
	"strconv"

	"stakingcore/core/types"
	"stakingcore/crypto"
)

const (
	// TypeStakeOpened is emitted when a deposit creates a new position.
	TypeStakeOpened = "stake.opened"
	// TypeStakeClosed is emitted when a position is withdrawn and its yield minted.
	TypeStakeClosed = "stake.closed"
	// TypeStakeConfigInitialized is emitted once when the global parameters are set.
	TypeStakeConfigInitialized = "stake.configInitialized"
)

// StakeOpened captures a newly created position and the join bonus minted for it.
type StakeOpened struct {
	PositionID [32]byte
	Owner      crypto.Address
	Asset      string
	Mint       crypto.Address
	Seed       uint64
	Amount     uint64
	LockPeriod int64
	Locked     bool
	StakedAt   int64
	JoinBonus  uint64
}

// EventType satisfies the Event interface.
func (StakeOpened) EventType() string { return TypeStakeOpened }

// Event converts the structured payload into a broadcastable event.
func (e StakeOpened) Event() *types.Event {
	attrs := positionAttributes(e.PositionID, e.Owner, e.Asset, e.Mint, e.Seed, e.Amount)
	attrs["lockPeriod"] = strconv.FormatInt(e.LockPeriod, 10)
	attrs["locked"] = strconv.FormatBool(e.Locked)
	attrs["stakedAt"] = strconv.FormatInt(e.StakedAt, 10)
	attrs["reward"] = strconv.FormatUint(e.JoinBonus, 10)
	return &types.Event{Type: TypeStakeOpened, Attributes: attrs}
}

// StakeClosed captures a withdrawn position and the time-accrued yield minted
// on release.
type StakeClosed struct {
	PositionID [32]byte
	Owner      crypto.Address
	Asset      string
	Mint       crypto.Address
	Seed       uint64
	Amount     uint64
	Elapsed    int64
	Locked     bool
	ClosedAt   int64
	Reward     uint64
}

// EventType satisfies the Event interface.
func (StakeClosed) EventType() string { return TypeStakeClosed }

// Event converts the structured payload into a broadcastable event.
func (e StakeClosed) Event() *types.Event {
	attrs := positionAttributes(e.PositionID, e.Owner, e.Asset, e.Mint, e.Seed, e.Amount)
	attrs["elapsed"] = strconv.FormatInt(e.Elapsed, 10)
	attrs["locked"] = strconv.FormatBool(e.Locked)
	attrs["closedAt"] = strconv.FormatInt(e.ClosedAt, 10)
	attrs["reward"] = strconv.FormatUint(e.Reward, 10)
	return &types.Event{Type: TypeStakeClosed, Attributes: attrs}
}

// StakeConfigInitialized records the one-time parameter bootstrap.
type StakeConfigInitialized struct {
	Admin                   crypto.Address
	PointsPerNFTStake       uint32
	PointsPerNativeStake    uint32
	PointsPerFungibleStake  uint32
	MinFreezePeriod         int64
	AnnualPercentageRateBps uint32
}

// EventType satisfies the Event interface.
func (StakeConfigInitialized) EventType() string { return TypeStakeConfigInitialized }

// Event converts the structured payload into a broadcastable event.
func (e StakeConfigInitialized) Event() *types.Event {
	return &types.Event{Type: TypeStakeConfigInitialized, Attributes: map[string]string{
		"admin":                  e.Admin.String(),
		"pointsPerNftStake":      strconv.FormatUint(uint64(e.PointsPerNFTStake), 10),
		"pointsPerNativeStake":   strconv.FormatUint(uint64(e.PointsPerNativeStake), 10),
		"pointsPerFungibleStake": strconv.FormatUint(uint64(e.PointsPerFungibleStake), 10),
		"minFreezePeriod":        strconv.FormatInt(e.MinFreezePeriod, 10),
		"aprBps":                 strconv.FormatUint(uint64(e.AnnualPercentageRateBps), 10),
	}}
}

func positionAttributes(id [32]byte, owner crypto.Address, asset string, mint crypto.Address, seed, amount uint64) map[string]string {
	attrs := map[string]string{
		"positionId": hex.EncodeToString(id[:]),
		"owner":      owner.String(),
		"asset":      normalizeAsset(asset),
		"seed":       strconv.FormatUint(seed, 10),
		"amount":     strconv.FormatUint(amount, 10),
	}
	if !mint.IsZero() {
		attrs["mint"] = mint.String()
	}
	return attrs
}
