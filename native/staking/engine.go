package staking

import (
	"errors"
	"fmt"
	"time"

	stakeerr "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/crypto"
)

var (
	errNilState  = errors.New("stake engine: state not configured")
	errNilLedger = errors.New("stake engine: ledger not configured")
)

// State is the persistence surface the engine needs. Writes must be
// revertible through Snapshot/RevertToSnapshot until the host commits.
type State interface {
	StakingConfig() (*Config, bool, error)
	PutStakingConfig(cfg *Config) error
	StakingAccount(addr crypto.Address) (*UserAccount, error)
	PutStakingAccount(addr crypto.Address, account *UserAccount) error
	StakingPosition(id PositionID) (*Position, bool, error)
	PutStakingPosition(pos *Position) error
	DeleteStakingPosition(pos *Position) error
	StakingPositionsByOwner(owner crypto.Address) ([]*Position, error)
	Snapshot() int
	RevertToSnapshot(id int)
}

// Metrics receives outcome observations. Implementations must tolerate being
// called for every operation.
type Metrics interface {
	ObserveStake(asset string, amount, reward uint64)
	ObserveUnstake(asset string, amount, reward uint64, elapsed int64)
	ObserveFailure(op string, err error)
}

// StakeRequest describes a deposit. Amount is ignored for collectibles.
type StakeRequest struct {
	Owner      crypto.Address
	Asset      Asset
	Amount     uint64
	Seed       uint64
	Locked     bool
	LockPeriod int64
}

// Key returns the position key the request would create.
func (r StakeRequest) Key() PositionKey {
	return PositionKey{Owner: r.Owner, Asset: r.Asset, Seed: r.Seed}
}

// Preview reports what an unstake would yield at the engine's current time.
type Preview struct {
	Position  *Position
	Elapsed   int64
	UnlocksAt int64
	Unlocked  bool
	Reward    uint64
}

// Engine applies stake and unstake transitions. It holds no locks; the host
// serialises operations that touch the same account or position.
type Engine struct {
	state   State
	ledger  Ledger
	emitter events.Emitter
	metrics Metrics
	nowFn   func() int64
}

// NewEngine creates an engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetLedger configures the custody and minting collaborator.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetMetrics configures the metrics sink. Nil disables observations.
func (e *Engine) SetMetrics(metrics Metrics) { e.metrics = metrics }

// SetNowFunc overrides the time source used by the engine. Passing nil
// restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) config() (*Config, error) {
	cfg, ok, err := e.state.StakingConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stakeerr.ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) fail(op string, err error) error {
	if e != nil && e.metrics != nil {
		e.metrics.ObserveFailure(op, err)
	}
	return err
}

func custodyError(err error) error {
	return fmt.Errorf("%w: %w", stakeerr.ErrCustodyFailure, err)
}

// lock moves the position's asset into custody.
func (e *Engine) lock(grant Capability, pos *Position) error {
	if pos.Asset.Kind == AssetNonFungible {
		return e.ledger.FreezeForCustody(grant, pos.Owner, pos.Asset)
	}
	return e.ledger.TransferIn(grant, pos.Owner, pos.Asset, pos.Amount)
}

// release returns the position's asset to its owner.
func (e *Engine) release(grant Capability, pos *Position) error {
	if pos.Asset.Kind == AssetNonFungible {
		return e.ledger.ThawFromCustody(grant, pos.Owner, pos.Asset)
	}
	return e.ledger.TransferOut(grant, pos.Owner, pos.Asset, pos.Amount)
}

// Stake opens a new position, takes custody of the deposit and mints the join
// bonus. On any error no state or custody change remains visible.
func (e *Engine) Stake(req StakeRequest) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, reward, err := e.stake(req)
	if err != nil {
		return nil, e.fail("stake", err)
	}
	e.emit(events.StakeOpened{
		PositionID: pos.ID(),
		Owner:      pos.Owner,
		Asset:      pos.Asset.Kind.String(),
		Mint:       pos.Asset.Mint,
		Seed:       pos.Seed,
		Amount:     pos.Amount,
		LockPeriod: pos.LockPeriod,
		Locked:     pos.Locked,
		StakedAt:   pos.StakedAt,
		JoinBonus:  reward,
	})
	if e.metrics != nil {
		e.metrics.ObserveStake(pos.Asset.Kind.String(), pos.Amount, reward)
	}
	return pos.Clone(), nil
}

func (e *Engine) stake(req StakeRequest) (*Position, uint64, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, 0, err
	}
	if err := req.Asset.Validate(); err != nil {
		return nil, 0, err
	}
	if req.Owner.IsZero() {
		return nil, 0, fmt.Errorf("%w: owner required", stakeerr.ErrInvalidAsset)
	}
	amount := req.Amount
	if req.Asset.Kind == AssetNonFungible {
		amount = 1
	} else if amount == 0 {
		return nil, 0, fmt.Errorf("%w: amount must be positive", stakeerr.ErrInvalidAsset)
	}
	if req.LockPeriod < 0 || req.LockPeriod < cfg.MinFreezePeriod {
		return nil, 0, fmt.Errorf("%w: %d below minimum %d", stakeerr.ErrInvalidLockPeriod, req.LockPeriod, cfg.MinFreezePeriod)
	}
	key := req.Key()
	if _, exists, err := e.state.StakingPosition(key.ID()); err != nil {
		return nil, 0, err
	} else if exists {
		return nil, 0, stakeerr.ErrDuplicatePosition
	}

	reward, err := JoinBonus(req.Asset, amount, cfg)
	if err != nil {
		return nil, 0, err
	}
	account, err := e.state.StakingAccount(req.Owner)
	if err != nil {
		return nil, 0, err
	}
	staged := account.Clone()
	if err := staged.AddPoints(reward); err != nil {
		return nil, 0, err
	}
	if err := staged.Increment(req.Asset.Kind, amount); err != nil {
		return nil, 0, err
	}
	pos := &Position{
		Owner:      req.Owner,
		Asset:      req.Asset,
		Seed:       req.Seed,
		Amount:     amount,
		StakedAt:   e.now(),
		LockPeriod: req.LockPeriod,
		Locked:     req.Locked,
		Status:     PositionActive,
	}

	snap := e.state.Snapshot()
	if err := e.state.PutStakingAccount(req.Owner, staged); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, err
	}
	if err := e.state.PutStakingPosition(pos); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, err
	}
	grant := newCapability(pos)
	if err := e.lock(grant, pos); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, custodyError(err)
	}
	if reward > 0 {
		if err := e.ledger.MintReward(req.Owner, reward); err != nil {
			if undo := e.release(grant, pos); undo != nil {
				err = errors.Join(err, fmt.Errorf("release custody: %w", undo))
			}
			e.state.RevertToSnapshot(snap)
			return nil, 0, custodyError(err)
		}
	}
	return pos, reward, nil
}

// Unstake closes an unlocked position owned by caller, releases custody and
// mints the accrued yield. It returns the closed position and the reward.
func (e *Engine) Unstake(caller crypto.Address, id PositionID) (*Position, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	pos, reward, elapsed, err := e.unstake(caller, id)
	if err != nil {
		return nil, 0, e.fail("unstake", err)
	}
	closedAt := pos.StakedAt + elapsed
	e.emit(events.StakeClosed{
		PositionID: id,
		Owner:      pos.Owner,
		Asset:      pos.Asset.Kind.String(),
		Mint:       pos.Asset.Mint,
		Seed:       pos.Seed,
		Amount:     pos.Amount,
		Elapsed:    elapsed,
		Locked:     pos.Locked,
		ClosedAt:   closedAt,
		Reward:     reward,
	})
	if e.metrics != nil {
		e.metrics.ObserveUnstake(pos.Asset.Kind.String(), pos.Amount, reward, elapsed)
	}
	return pos, reward, nil
}

func (e *Engine) unstake(caller crypto.Address, id PositionID) (*Position, uint64, int64, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, 0, 0, err
	}
	pos, err := e.activePosition(id)
	if err != nil {
		return nil, 0, 0, err
	}
	if caller != pos.Owner {
		return nil, 0, 0, stakeerr.ErrUnauthorized
	}
	elapsed := e.now() - pos.StakedAt
	if elapsed < pos.LockPeriod {
		return nil, 0, 0, fmt.Errorf("%w: unlocks at %d", stakeerr.ErrLockPeriodNotElapsed, pos.UnlocksAt())
	}
	reward, err := AccruedReward(pos, elapsed, cfg)
	if err != nil {
		return nil, 0, 0, err
	}
	account, err := e.state.StakingAccount(pos.Owner)
	if err != nil {
		return nil, 0, 0, err
	}
	staged := account.Clone()
	if err := staged.Decrement(pos.Asset.Kind, pos.Amount); err != nil {
		return nil, 0, 0, err
	}
	if err := staged.AddPoints(reward); err != nil {
		return nil, 0, 0, err
	}

	snap := e.state.Snapshot()
	if err := e.state.PutStakingAccount(pos.Owner, staged); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, 0, err
	}
	if err := e.state.DeleteStakingPosition(pos); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, 0, err
	}
	grant := newCapability(pos)
	if err := e.release(grant, pos); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, 0, 0, custodyError(err)
	}
	if reward > 0 {
		if err := e.ledger.MintReward(pos.Owner, reward); err != nil {
			if undo := e.lock(grant, pos); undo != nil {
				err = errors.Join(err, fmt.Errorf("restore custody: %w", undo))
			}
			e.state.RevertToSnapshot(snap)
			return nil, 0, 0, custodyError(err)
		}
	}
	closed := pos.Clone()
	closed.Status = PositionClosed
	return closed, reward, elapsed, nil
}

func (e *Engine) activePosition(id PositionID) (*Position, error) {
	pos, ok, err := e.state.StakingPosition(id)
	if err != nil {
		return nil, err
	}
	if !ok || pos == nil || pos.Status != PositionActive {
		return nil, stakeerr.ErrRecordNotFound
	}
	return pos, nil
}

// Config returns a copy of the stored parameters.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Position returns a copy of the active position with the given identifier.
func (e *Engine) Position(id PositionID) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// Account returns a copy of the user's aggregates. Unknown users read as zero.
func (e *Engine) Account(addr crypto.Address) (*UserAccount, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	account, err := e.state.StakingAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// PositionsByOwner lists the owner's active positions.
func (e *Engine) PositionsByOwner(owner crypto.Address) ([]*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	positions, err := e.state.StakingPositionsByOwner(owner)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(positions))
	for _, pos := range positions {
		if pos != nil && pos.Status == PositionActive {
			out = append(out, pos.Clone())
		}
	}
	return out, nil
}

// PreviewUnstake computes the yield the position would receive if unstaked
// now. Nothing is mutated.
func (e *Engine) PreviewUnstake(id PositionID) (*Preview, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	pos, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	elapsed := e.now() - pos.StakedAt
	if elapsed < 0 {
		elapsed = 0
	}
	reward, err := AccruedReward(pos, elapsed, cfg)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Position:  pos.Clone(),
		Elapsed:   elapsed,
		UnlocksAt: pos.UnlocksAt(),
		Unlocked:  elapsed >= pos.LockPeriod,
		Reward:    reward,
	}, nil
}
