package bank

import (
	"errors"
	"fmt"

	"stakingcore/crypto"
	"stakingcore/native/common"
	"stakingcore/native/staking"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidCapability   = errors.New("bank: capability does not authorise this transfer")
	ErrVaultMismatch       = errors.New("bank: vault holds a different asset")
	ErrNotOwner            = errors.New("bank: collectible not owned by account")
	ErrFrozen              = errors.New("bank: collectible frozen")
	ErrNotFrozen           = errors.New("bank: collectible not frozen by this position")
	ErrUnsupportedAsset    = errors.New("bank: unsupported asset for operation")
)

var (
	balancePrefix     = []byte("bank/balance/")
	vaultPrefix       = []byte("bank/vault/")
	collectiblePrefix = []byte("bank/nft/")
	rewardPrefix      = []byte("bank/reward/")
	rewardSupplyKey   = []byte("bank/reward-supply")
)

type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

type storedVault struct {
	Kind   uint8
	Mint   [20]byte
	Amount uint64
}

type storedCollectible struct {
	Owner    [20]byte
	Frozen   bool
	FrozenBy [32]byte
}

// Ledger is the reference custody collaborator. Balances, position vaults,
// collectible ownership and reward token balances all live in the same KV
// store as the staking records so that a state revert covers both.
type Ledger struct {
	store kvStore
}

var _ staking.Ledger = (*Ledger)(nil)

// NewLedger constructs a ledger persisting through store.
func NewLedger(store kvStore) *Ledger {
	return &Ledger{store: store}
}

func join(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func balanceKey(owner crypto.Address, asset staking.Asset) []byte {
	return join(balancePrefix, []byte{byte(asset.Kind)}, asset.Mint[:], owner[:])
}

func vaultKey(id staking.PositionID) []byte { return join(vaultPrefix, id[:]) }

func collectibleKey(mint crypto.Address) []byte { return join(collectiblePrefix, mint[:]) }

func rewardKey(owner crypto.Address) []byte { return join(rewardPrefix, owner[:]) }

func (l *Ledger) readUint(key []byte) (uint64, error) {
	var v uint64
	if _, err := l.store.KVGet(key, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (l *Ledger) writeUint(key []byte, v uint64) error {
	if v == 0 {
		return l.store.KVDelete(key)
	}
	return l.store.KVPut(key, v)
}

func fungibleOnly(asset staking.Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	if asset.Kind == staking.AssetNonFungible {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	return nil
}

func checkGrant(grant staking.Capability, owner crypto.Address) error {
	if !grant.Valid() || grant.Owner() != owner {
		return ErrInvalidCapability
	}
	return nil
}

// Credit adds amount of a native or fungible asset to owner's spendable
// balance. It is the ledger's faucet for development and tests.
func (l *Ledger) Credit(owner crypto.Address, asset staking.Asset, amount uint64) error {
	if err := fungibleOnly(asset); err != nil {
		return err
	}
	key := balanceKey(owner, asset)
	current, err := l.readUint(key)
	if err != nil {
		return err
	}
	next, err := common.CheckedAdd(current, amount)
	if err != nil {
		return err
	}
	return l.writeUint(key, next)
}

// Balance returns owner's spendable balance. Collectibles report 1 when owned
// and not frozen.
func (l *Ledger) Balance(owner crypto.Address, asset staking.Asset) (uint64, error) {
	if asset.Kind == staking.AssetNonFungible {
		rec, ok, err := l.collectible(asset.Mint)
		if err != nil || !ok {
			return 0, err
		}
		if crypto.Address(rec.Owner) == owner && !rec.Frozen {
			return 1, nil
		}
		return 0, nil
	}
	return l.readUint(balanceKey(owner, asset))
}

// GrantNFT assigns an unowned collectible to owner.
func (l *Ledger) GrantNFT(owner crypto.Address, mint crypto.Address) error {
	if err := staking.NonFungibleAsset(mint).Validate(); err != nil {
		return err
	}
	_, ok, err := l.collectible(mint)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("bank: collectible %s already issued", mint)
	}
	return l.store.KVPut(collectibleKey(mint), &storedCollectible{Owner: owner})
}

// TransferNFT moves an unfrozen collectible between accounts.
func (l *Ledger) TransferNFT(from, to crypto.Address, mint crypto.Address) error {
	rec, ok, err := l.collectible(mint)
	if err != nil {
		return err
	}
	if !ok || crypto.Address(rec.Owner) != from {
		return ErrNotOwner
	}
	if rec.Frozen {
		return ErrFrozen
	}
	rec.Owner = to
	return l.store.KVPut(collectibleKey(mint), rec)
}

func (l *Ledger) collectible(mint crypto.Address) (*storedCollectible, bool, error) {
	var rec storedCollectible
	ok, err := l.store.KVGet(collectibleKey(mint), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec, true, nil
}

// Vault returns the amount held in custody for a position.
func (l *Ledger) Vault(id staking.PositionID) (uint64, error) {
	var vault storedVault
	if _, err := l.store.KVGet(vaultKey(id), &vault); err != nil {
		return 0, err
	}
	return vault.Amount, nil
}

// TransferIn implements staking.Ledger.
func (l *Ledger) TransferIn(grant staking.Capability, owner crypto.Address, asset staking.Asset, amount uint64) error {
	if err := checkGrant(grant, owner); err != nil {
		return err
	}
	if err := fungibleOnly(asset); err != nil {
		return err
	}
	key := balanceKey(owner, asset)
	balance, err := l.readUint(key)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}
	var vault storedVault
	exists, err := l.store.KVGet(vaultKey(grant.Position()), &vault)
	if err != nil {
		return err
	}
	if exists && (vault.Kind != uint8(asset.Kind) || crypto.Address(vault.Mint) != asset.Mint) {
		return ErrVaultMismatch
	}
	held, err := common.CheckedAdd(vault.Amount, amount)
	if err != nil {
		return err
	}
	if err := l.writeUint(key, balance-amount); err != nil {
		return err
	}
	return l.store.KVPut(vaultKey(grant.Position()), &storedVault{Kind: uint8(asset.Kind), Mint: asset.Mint, Amount: held})
}

// TransferOut implements staking.Ledger.
func (l *Ledger) TransferOut(grant staking.Capability, owner crypto.Address, asset staking.Asset, amount uint64) error {
	if err := checkGrant(grant, owner); err != nil {
		return err
	}
	if err := fungibleOnly(asset); err != nil {
		return err
	}
	var vault storedVault
	exists, err := l.store.KVGet(vaultKey(grant.Position()), &vault)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: empty vault", ErrInsufficientBalance)
	}
	if vault.Kind != uint8(asset.Kind) || crypto.Address(vault.Mint) != asset.Mint {
		return ErrVaultMismatch
	}
	remaining, err := common.CheckedSub(vault.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: vault holds %d", ErrInsufficientBalance, vault.Amount)
	}
	key := balanceKey(owner, asset)
	balance, err := l.readUint(key)
	if err != nil {
		return err
	}
	next, err := common.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := l.store.KVDelete(vaultKey(grant.Position())); err != nil {
			return err
		}
	} else {
		vault.Amount = remaining
		if err := l.store.KVPut(vaultKey(grant.Position()), &vault); err != nil {
			return err
		}
	}
	return l.writeUint(key, next)
}

// MintReward implements staking.Ledger.
func (l *Ledger) MintReward(owner crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	balance, err := l.readUint(rewardKey(owner))
	if err != nil {
		return err
	}
	supply, err := l.readUint(rewardSupplyKey)
	if err != nil {
		return err
	}
	nextBalance, err := common.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	nextSupply, err := common.CheckedAdd(supply, amount)
	if err != nil {
		return err
	}
	if err := l.writeUint(rewardKey(owner), nextBalance); err != nil {
		return err
	}
	return l.writeUint(rewardSupplyKey, nextSupply)
}

// RewardBalance returns the reward tokens minted to owner.
func (l *Ledger) RewardBalance(owner crypto.Address) (uint64, error) {
	return l.readUint(rewardKey(owner))
}

// RewardSupply returns the total reward tokens minted.
func (l *Ledger) RewardSupply() (uint64, error) {
	return l.readUint(rewardSupplyKey)
}

// FreezeForCustody implements staking.Ledger.
func (l *Ledger) FreezeForCustody(grant staking.Capability, owner crypto.Address, asset staking.Asset) error {
	if err := checkGrant(grant, owner); err != nil {
		return err
	}
	if asset.Kind != staking.AssetNonFungible {
		return fmt.Errorf("%w: freeze requires a collectible", ErrUnsupportedAsset)
	}
	rec, ok, err := l.collectible(asset.Mint)
	if err != nil {
		return err
	}
	if !ok || crypto.Address(rec.Owner) != owner {
		return ErrNotOwner
	}
	if rec.Frozen {
		return ErrFrozen
	}
	rec.Frozen = true
	rec.FrozenBy = grant.Position()
	return l.store.KVPut(collectibleKey(asset.Mint), rec)
}

// ThawFromCustody implements staking.Ledger.
func (l *Ledger) ThawFromCustody(grant staking.Capability, owner crypto.Address, asset staking.Asset) error {
	if err := checkGrant(grant, owner); err != nil {
		return err
	}
	if asset.Kind != staking.AssetNonFungible {
		return fmt.Errorf("%w: thaw requires a collectible", ErrUnsupportedAsset)
	}
	rec, ok, err := l.collectible(asset.Mint)
	if err != nil {
		return err
	}
	if !ok || crypto.Address(rec.Owner) != owner {
		return ErrNotOwner
	}
	if !rec.Frozen || staking.PositionID(rec.FrozenBy) != grant.Position() {
		return ErrNotFrozen
	}
	rec.Frozen = false
	rec.FrozenBy = [32]byte{}
	return l.store.KVPut(collectibleKey(asset.Mint), rec)
}
