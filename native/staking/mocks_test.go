package staking

import (
	"errors"
	"fmt"
	"sort"

	"stakingcore/crypto"
)

type mockSnapshot struct {
	config    *Config
	accounts  map[crypto.Address]UserAccount
	positions map[PositionID]Position
}

type mockState struct {
	config    *Config
	accounts  map[crypto.Address]*UserAccount
	positions map[PositionID]*Position
	snapshots []mockSnapshot

	putAccountErr  error
	putPositionErr error
}

func newMockState() *mockState {
	return &mockState{
		accounts:  make(map[crypto.Address]*UserAccount),
		positions: make(map[PositionID]*Position),
	}
}

func (m *mockState) StakingConfig() (*Config, bool, error) {
	if m.config == nil {
		return nil, false, nil
	}
	return m.config.Clone(), true, nil
}

func (m *mockState) PutStakingConfig(cfg *Config) error {
	m.config = cfg.Clone()
	return nil
}

func (m *mockState) StakingAccount(addr crypto.Address) (*UserAccount, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &UserAccount{}, nil
}

func (m *mockState) PutStakingAccount(addr crypto.Address, account *UserAccount) error {
	if m.putAccountErr != nil {
		return m.putAccountErr
	}
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) StakingPosition(id PositionID) (*Position, bool, error) {
	pos, ok := m.positions[id]
	if !ok {
		return nil, false, nil
	}
	return pos.Clone(), true, nil
}

func (m *mockState) PutStakingPosition(pos *Position) error {
	if m.putPositionErr != nil {
		return m.putPositionErr
	}
	m.positions[pos.ID()] = pos.Clone()
	return nil
}

func (m *mockState) DeleteStakingPosition(pos *Position) error {
	delete(m.positions, pos.ID())
	return nil
}

func (m *mockState) StakingPositionsByOwner(owner crypto.Address) ([]*Position, error) {
	var out []*Position
	for _, pos := range m.positions {
		if pos.Owner == owner {
			out = append(out, pos.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

func (m *mockState) Snapshot() int {
	snap := mockSnapshot{
		config:    m.config.Clone(),
		accounts:  make(map[crypto.Address]UserAccount, len(m.accounts)),
		positions: make(map[PositionID]Position, len(m.positions)),
	}
	for k, v := range m.accounts {
		snap.accounts[k] = *v
	}
	for k, v := range m.positions {
		snap.positions[k] = *v
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	snap := m.snapshots[id]
	m.snapshots = m.snapshots[:id]
	m.config = snap.config
	m.accounts = make(map[crypto.Address]*UserAccount, len(snap.accounts))
	for k, v := range snap.accounts {
		acc := v
		m.accounts[k] = &acc
	}
	m.positions = make(map[PositionID]*Position, len(snap.positions))
	for k, v := range snap.positions {
		pos := v
		m.positions[k] = &pos
	}
}

type balanceKey struct {
	owner crypto.Address
	asset Asset
}

type mockLedger struct {
	balances map[balanceKey]uint64
	vaults   map[PositionID]uint64
	frozen   map[PositionID]crypto.Address
	minted   map[crypto.Address]uint64
	calls    []string

	transferInErr  error
	transferOutErr error
	mintErr        error
	freezeErr      error
	thawErr        error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: make(map[balanceKey]uint64),
		vaults:   make(map[PositionID]uint64),
		frozen:   make(map[PositionID]crypto.Address),
		minted:   make(map[crypto.Address]uint64),
	}
}

func (l *mockLedger) fund(owner crypto.Address, asset Asset, amount uint64) {
	l.balances[balanceKey{owner, asset}] += amount
}

func (l *mockLedger) balance(owner crypto.Address, asset Asset) uint64 {
	return l.balances[balanceKey{owner, asset}]
}

func (l *mockLedger) TransferIn(grant Capability, owner crypto.Address, asset Asset, amount uint64) error {
	l.calls = append(l.calls, "transferIn")
	if l.transferInErr != nil {
		return l.transferInErr
	}
	if !grant.Valid() || grant.Owner() != owner {
		return errors.New("invalid capability")
	}
	key := balanceKey{owner, asset}
	if l.balances[key] < amount {
		return fmt.Errorf("insufficient balance: have %d want %d", l.balances[key], amount)
	}
	l.balances[key] -= amount
	l.vaults[grant.Position()] += amount
	return nil
}

func (l *mockLedger) TransferOut(grant Capability, owner crypto.Address, asset Asset, amount uint64) error {
	l.calls = append(l.calls, "transferOut")
	if l.transferOutErr != nil {
		return l.transferOutErr
	}
	if l.vaults[grant.Position()] < amount {
		return errors.New("vault underfunded")
	}
	l.vaults[grant.Position()] -= amount
	if l.vaults[grant.Position()] == 0 {
		delete(l.vaults, grant.Position())
	}
	l.balances[balanceKey{owner, asset}] += amount
	return nil
}

func (l *mockLedger) MintReward(owner crypto.Address, amount uint64) error {
	l.calls = append(l.calls, "mint")
	if l.mintErr != nil {
		return l.mintErr
	}
	l.minted[owner] += amount
	return nil
}

func (l *mockLedger) FreezeForCustody(grant Capability, owner crypto.Address, asset Asset) error {
	l.calls = append(l.calls, "freeze")
	if l.freezeErr != nil {
		return l.freezeErr
	}
	if l.balances[balanceKey{owner, asset}] != 1 {
		return errors.New("collectible not held")
	}
	if _, ok := l.frozen[grant.Position()]; ok {
		return errors.New("already frozen")
	}
	l.frozen[grant.Position()] = owner
	return nil
}

func (l *mockLedger) ThawFromCustody(grant Capability, owner crypto.Address, asset Asset) error {
	l.calls = append(l.calls, "thaw")
	if l.thawErr != nil {
		return l.thawErr
	}
	if holder, ok := l.frozen[grant.Position()]; !ok || holder != owner {
		return errors.New("not frozen")
	}
	delete(l.frozen, grant.Position())
	return nil
}

type mockMetrics struct {
	stakes   int
	unstakes int
	failures map[string]int
}

func (m *mockMetrics) ObserveStake(string, uint64, uint64) { m.stakes++ }

func (m *mockMetrics) ObserveUnstake(string, uint64, uint64, int64) { m.unstakes++ }

func (m *mockMetrics) ObserveFailure(op string, _ error) {
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[op]++
}
