package staking

import "stakingcore/crypto"

// Capability authorises custody moves for exactly one position. Only the
// engine issues capabilities; ledgers use the embedded position identifier to
// scope vault access.
type Capability struct {
	position PositionID
	owner    crypto.Address
}

func newCapability(pos *Position) Capability {
	return Capability{position: pos.ID(), owner: pos.Owner}
}

// Position returns the identifier of the position the capability is bound to.
func (c Capability) Position() PositionID { return c.position }

// Owner returns the owner of the bound position.
func (c Capability) Owner() crypto.Address { return c.owner }

// Valid reports whether the capability was issued by the engine.
func (c Capability) Valid() bool {
	return c.position != (PositionID{}) && !c.owner.IsZero()
}

// Ledger is the external custody and minting collaborator. Implementations
// own all balances; the engine only decides when assets move.
type Ledger interface {
	// TransferIn moves amount of a native or fungible asset from owner into the
	// vault bound to the capability.
	TransferIn(grant Capability, owner crypto.Address, asset Asset, amount uint64) error
	// TransferOut releases amount from the capability's vault back to owner.
	TransferOut(grant Capability, owner crypto.Address, asset Asset, amount uint64) error
	// MintReward issues amount reward tokens to owner.
	MintReward(owner crypto.Address, amount uint64) error
	// FreezeForCustody freezes the owner's collectible under the capability.
	FreezeForCustody(grant Capability, owner crypto.Address, asset Asset) error
	// ThawFromCustody reverses FreezeForCustody.
	ThawFromCustody(grant Capability, owner crypto.Address, asset Asset) error
}
