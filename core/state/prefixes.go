package state

var (
	stakingConfigKeyBytes    = []byte("staking/config")
	stakingAccountPrefix     = []byte("staking/account/")
	stakingPositionPrefix    = []byte("staking/position/")
	stakingOwnerIndexPrefix  = []byte("staking/owner/")
	stakingPositionsIndexKey = []byte("staking/positions")
)

func prefixed(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

// StakingConfigKey returns the key holding the global staking parameters.
func StakingConfigKey() []byte { return append([]byte(nil), stakingConfigKeyBytes...) }

// StakingAccountKey returns the key of a user's staking aggregates.
func StakingAccountKey(addr []byte) []byte { return prefixed(stakingAccountPrefix, addr) }

// StakingPositionKey returns the key of a position record.
func StakingPositionKey(id []byte) []byte { return prefixed(stakingPositionPrefix, id) }

// StakingOwnerIndexKey returns the key listing an owner's position identifiers.
func StakingOwnerIndexKey(addr []byte) []byte { return prefixed(stakingOwnerIndexPrefix, addr) }

// StakingPositionsIndexKey returns the key listing every open position.
func StakingPositionsIndexKey() []byte { return append([]byte(nil), stakingPositionsIndexKey...) }
