package staking

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	stakeerr "stakingcore/core/errors"
	"stakingcore/crypto"
)

// AssetKind enumerates the three depositable asset classes.
type AssetKind uint8

const (
	AssetNative AssetKind = iota + 1
	AssetFungible
	AssetNonFungible
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetFungible:
		return "fungible"
	case AssetNonFungible:
		return "nft"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Valid reports whether the kind is one of the supported asset classes.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetNative, AssetFungible, AssetNonFungible:
		return true
	default:
		return false
	}
}

// ParseAssetKind accepts the canonical names plus a few common aliases.
func ParseAssetKind(value string) (AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "native", "sol", "coin":
		return AssetNative, nil
	case "fungible", "spl", "token":
		return AssetFungible, nil
	case "nft", "nonfungible", "non-fungible", "collectible":
		return AssetNonFungible, nil
	default:
		return 0, fmt.Errorf("%w: unknown asset class %q", stakeerr.ErrInvalidAsset, value)
	}
}

// Asset identifies what a position holds. Mint is zero for the native coin.
type Asset struct {
	Kind AssetKind
	Mint crypto.Address
}

// NativeAsset returns the native coin asset.
func NativeAsset() Asset { return Asset{Kind: AssetNative} }

// FungibleAsset returns the fungible token asset issued by mint.
func FungibleAsset(mint crypto.Address) Asset { return Asset{Kind: AssetFungible, Mint: mint} }

// NonFungibleAsset returns the collectible identified by mint.
func NonFungibleAsset(mint crypto.Address) Asset { return Asset{Kind: AssetNonFungible, Mint: mint} }

// Validate checks the kind and mint combination.
func (a Asset) Validate() error {
	switch a.Kind {
	case AssetNative:
		if !a.Mint.IsZero() {
			return fmt.Errorf("%w: native asset must not carry a mint", stakeerr.ErrInvalidAsset)
		}
	case AssetFungible, AssetNonFungible:
		if a.Mint.IsZero() {
			return fmt.Errorf("%w: %s asset requires a mint", stakeerr.ErrInvalidAsset, a.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown asset class %d", stakeerr.ErrInvalidAsset, a.Kind)
	}
	return nil
}

func (a Asset) String() string {
	if a.Kind == AssetNative {
		return a.Kind.String()
	}
	return a.Kind.String() + ":" + a.Mint.String()
}

// PositionStatus tracks the lifecycle of a position. Closed is terminal.
type PositionStatus uint8

const (
	PositionActive PositionStatus = iota + 1
	PositionClosed
)

func (s PositionStatus) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PositionID is the stable 32-byte identifier derived from a PositionKey.
type PositionID [32]byte

func (id PositionID) String() string { return hex.EncodeToString(id[:]) }

// ParsePositionID decodes a hex encoded identifier with or without 0x.
func ParsePositionID(value string) (PositionID, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return PositionID{}, fmt.Errorf("invalid position id: %w", err)
	}
	if len(raw) != len(PositionID{}) {
		return PositionID{}, fmt.Errorf("position id must be 32 bytes, got %d", len(raw))
	}
	var id PositionID
	copy(id[:], raw)
	return id, nil
}

// PositionKey addresses a position by owner, asset and a caller-chosen seed so
// an owner may hold several concurrent positions in the same asset.
type PositionKey struct {
	Owner crypto.Address
	Asset Asset
	Seed  uint64
}

// ID derives the position identifier:
// keccak256("stake" || owner || kind || mint || seed little-endian).
func (k PositionKey) ID() PositionID {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], k.Seed)
	hash := ethcrypto.Keccak256Hash([]byte("stake"), k.Owner[:], []byte{byte(k.Asset.Kind)}, k.Asset.Mint[:], seed[:])
	return PositionID(hash)
}

// Position records a single deposit. Timestamps and durations are unix
// seconds.
type Position struct {
	Owner      crypto.Address
	Asset      Asset
	Seed       uint64
	Amount     uint64
	StakedAt   int64
	LockPeriod int64
	Locked     bool
	Status     PositionStatus
}

// Key returns the addressing tuple of the position.
func (p *Position) Key() PositionKey {
	return PositionKey{Owner: p.Owner, Asset: p.Asset, Seed: p.Seed}
}

// ID returns the derived identifier of the position.
func (p *Position) ID() PositionID { return p.Key().ID() }

// UnlocksAt returns the first timestamp at which the position may be
// withdrawn.
func (p *Position) UnlocksAt() int64 { return p.StakedAt + p.LockPeriod }

// Clone returns a copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// UserAccount aggregates a staker's points and per-asset staked totals.
type UserAccount struct {
	Points         uint64
	NFTStaked      uint64
	FungibleStaked uint64
	NativeStaked   uint64
}

// Clone returns a copy of the account.
func (a *UserAccount) Clone() *UserAccount {
	if a == nil {
		return &UserAccount{}
	}
	clone := *a
	return &clone
}

// Config holds the global reward parameters. It is immutable once stored.
type Config struct {
	PointsPerNFTStake       uint32
	PointsPerNativeStake    uint32
	PointsPerFungibleStake  uint32
	MinFreezePeriod         int64
	AnnualPercentageRateBps uint32
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Validate rejects parameter combinations the engine cannot honour.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("stake: nil config")
	}
	if c.MinFreezePeriod < 0 {
		return fmt.Errorf("%w: negative minimum freeze period %d", stakeerr.ErrInvalidLockPeriod, c.MinFreezePeriod)
	}
	return nil
}
