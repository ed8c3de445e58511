package staking

import (
	"errors"

	stakeerr "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/crypto"
)

var errNilConfigState = errors.New("stake: config state not configured")

type configState interface {
	StakingConfig() (*Config, bool, error)
	PutStakingConfig(cfg *Config) error
}

// ConfigStore guards the one-time initialisation of the global parameters.
type ConfigStore struct {
	state   configState
	admin   crypto.Address
	emitter events.Emitter
}

// NewConfigStore binds the store to its persistence and the administrator
// allowed to initialise it.
func NewConfigStore(state configState, admin crypto.Address) *ConfigStore {
	return &ConfigStore{state: state, admin: admin, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *ConfigStore) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// Admin returns the identity allowed to call Initialize.
func (s *ConfigStore) Admin() crypto.Address { return s.admin }

// Initialize stores cfg. It succeeds exactly once and only for the admin.
func (s *ConfigStore) Initialize(caller crypto.Address, cfg Config) error {
	if s == nil || s.state == nil {
		return errNilConfigState
	}
	if s.admin.IsZero() || caller != s.admin {
		return stakeerr.ErrUnauthorized
	}
	if _, ok, err := s.state.StakingConfig(); err != nil {
		return err
	} else if ok {
		return stakeerr.ErrAlreadyInitialized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.state.PutStakingConfig(cfg.Clone()); err != nil {
		return err
	}
	s.emitter.Emit(events.StakeConfigInitialized{
		Admin:                   caller,
		PointsPerNFTStake:       cfg.PointsPerNFTStake,
		PointsPerNativeStake:    cfg.PointsPerNativeStake,
		PointsPerFungibleStake:  cfg.PointsPerFungibleStake,
		MinFreezePeriod:         cfg.MinFreezePeriod,
		AnnualPercentageRateBps: cfg.AnnualPercentageRateBps,
	})
	return nil
}

// Get returns a copy of the stored parameters.
func (s *ConfigStore) Get() (*Config, error) {
	if s == nil || s.state == nil {
		return nil, errNilConfigState
	}
	cfg, ok, err := s.state.StakingConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stakeerr.ErrNotInitialized
	}
	return cfg.Clone(), nil
}
