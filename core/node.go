package core

import (
	"errors"
	"sync"
	"time"

	"stakingcore/core/events"
	corestate "stakingcore/core/state"
	"stakingcore/crypto"
	"stakingcore/native/staking"
	"stakingcore/state/bank"
	"stakingcore/storage"
)

var errNodeClosed = errors.New("node: closed")

// Node hosts the staking engine. It serialises every operation, commits state
// after a successful transition and publishes the transition's events only
// once the commit succeeded.
type Node struct {
	db      storage.Database
	admin   crypto.Address
	emitter events.Emitter
	metrics staking.Metrics
	nowFn   func() int64

	stateMu sync.Mutex
	closed  bool
}

// NewNode wires a node over db. admin is the only identity allowed to
// initialise the staking parameters.
func NewNode(db storage.Database, admin crypto.Address) *Node {
	return &Node{
		db:      db,
		admin:   admin,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures where committed events are published.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.stateMu.Lock()
	n.emitter = emitter
	n.stateMu.Unlock()
}

// SetMetrics configures the engine metrics sink.
func (n *Node) SetMetrics(metrics staking.Metrics) {
	n.stateMu.Lock()
	n.metrics = metrics
	n.stateMu.Unlock()
}

// SetNowFunc overrides the clock handed to the engine.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.stateMu.Lock()
	n.nowFn = now
	n.stateMu.Unlock()
}

// Admin returns the configured administrator.
func (n *Node) Admin() crypto.Address { return n.admin }

type session struct {
	manager *corestate.Manager
	ledger  *bank.Ledger
	engine  *staking.Engine
	buffer  *events.Buffer
}

func (n *Node) newSession() *session {
	manager := corestate.NewManager(n.db)
	ledger := bank.NewLedger(manager)
	buffer := &events.Buffer{}
	engine := staking.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetEmitter(buffer)
	engine.SetMetrics(n.metrics)
	engine.SetNowFunc(n.nowFn)
	return &session{manager: manager, ledger: ledger, engine: engine, buffer: buffer}
}

// apply runs fn against a fresh session and commits on success.
func (n *Node) apply(fn func(*session) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return errNodeClosed
	}
	s := n.newSession()
	if err := fn(s); err != nil {
		s.manager.Discard()
		return err
	}
	if err := s.manager.Commit(); err != nil {
		return err
	}
	s.buffer.Flush(n.emitter)
	return nil
}

// view runs fn against a fresh session without committing.
func (n *Node) view(fn func(*session) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return errNodeClosed
	}
	return fn(n.newSession())
}

// Initialize stores the staking parameters. Only the admin may call it, once.
func (n *Node) Initialize(caller crypto.Address, cfg staking.Config) error {
	return n.apply(func(s *session) error {
		store := staking.NewConfigStore(s.manager, n.admin)
		store.SetEmitter(s.buffer)
		return store.Initialize(caller, cfg)
	})
}

// Fund credits spendable balance through the reference ledger. Collectibles
// are issued to owner; amount is ignored for them.
func (n *Node) Fund(owner crypto.Address, asset staking.Asset, amount uint64) error {
	return n.apply(func(s *session) error {
		if asset.Kind == staking.AssetNonFungible {
			return s.ledger.GrantNFT(owner, asset.Mint)
		}
		return s.ledger.Credit(owner, asset, amount)
	})
}

// Stake opens a position for req.Owner.
func (n *Node) Stake(req staking.StakeRequest) (*staking.Position, error) {
	var pos *staking.Position
	err := n.apply(func(s *session) error {
		var err error
		pos, err = s.engine.Stake(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// Unstake closes the position on behalf of caller.
func (n *Node) Unstake(caller crypto.Address, id staking.PositionID) (*staking.Position, uint64, error) {
	var (
		pos    *staking.Position
		reward uint64
	)
	err := n.apply(func(s *session) error {
		var err error
		pos, reward, err = s.engine.Unstake(caller, id)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return pos, reward, nil
}

// Config returns the stored staking parameters.
func (n *Node) Config() (*staking.Config, error) {
	var cfg *staking.Config
	err := n.view(func(s *session) error {
		var err error
		cfg, err = s.engine.Config()
		return err
	})
	return cfg, err
}

// Account returns the user's staking aggregates.
func (n *Node) Account(addr crypto.Address) (*staking.UserAccount, error) {
	var acc *staking.UserAccount
	err := n.view(func(s *session) error {
		var err error
		acc, err = s.engine.Account(addr)
		return err
	})
	return acc, err
}

// Position returns an active position.
func (n *Node) Position(id staking.PositionID) (*staking.Position, error) {
	var pos *staking.Position
	err := n.view(func(s *session) error {
		var err error
		pos, err = s.engine.Position(id)
		return err
	})
	return pos, err
}

// PositionsByOwner lists the owner's active positions.
func (n *Node) PositionsByOwner(owner crypto.Address) ([]*staking.Position, error) {
	var out []*staking.Position
	err := n.view(func(s *session) error {
		var err error
		out, err = s.engine.PositionsByOwner(owner)
		return err
	})
	return out, err
}

// Positions lists every active position.
func (n *Node) Positions() ([]*staking.Position, error) {
	var out []*staking.Position
	err := n.view(func(s *session) error {
		var err error
		out, err = s.manager.StakingPositions()
		return err
	})
	return out, err
}

// PreviewUnstake reports the reward an unstake would yield now.
func (n *Node) PreviewUnstake(id staking.PositionID) (*staking.Preview, error) {
	var preview *staking.Preview
	err := n.view(func(s *session) error {
		var err error
		preview, err = s.engine.PreviewUnstake(id)
		return err
	})
	return preview, err
}

// Balance returns owner's spendable balance of asset in the reference ledger.
func (n *Node) Balance(owner crypto.Address, asset staking.Asset) (uint64, error) {
	var balance uint64
	err := n.view(func(s *session) error {
		var err error
		balance, err = s.ledger.Balance(owner, asset)
		return err
	})
	return balance, err
}

// RewardBalance returns the reward tokens minted to owner.
func (n *Node) RewardBalance(owner crypto.Address) (uint64, error) {
	var balance uint64
	err := n.view(func(s *session) error {
		var err error
		balance, err = s.ledger.RewardBalance(owner)
		return err
	})
	return balance, err
}

// Close releases the database. Further calls fail.
func (n *Node) Close() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.db.Close()
}
