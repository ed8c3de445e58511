package staking

import (
	"errors"
	"testing"

	stakeerr "stakingcore/core/errors"
	"stakingcore/core/events"
)

func TestConfigStoreInitializeOnce(t *testing.T) {
	state := newMockState()
	admin := addr(0x0A)
	store := NewConfigStore(state, admin)
	recorder := &events.Recorder{}
	store.SetEmitter(recorder)

	if _, err := store.Get(); !errors.Is(err, stakeerr.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := store.Initialize(addr(0x0B), defaultConfig()); !errors.Is(err, stakeerr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if state.config != nil {
		t.Fatalf("config stored by unauthorised caller")
	}
	if err := store.Initialize(admin, defaultConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	second := defaultConfig()
	second.AnnualPercentageRateBps = 1
	if err := store.Initialize(admin, second); !errors.Is(err, stakeerr.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	cfg, err := store.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *cfg != defaultConfig() {
		t.Fatalf("unexpected config %+v", cfg)
	}
	cfg.MinFreezePeriod = 1
	again, _ := store.Get()
	if again.MinFreezePeriod != day {
		t.Fatalf("Get must return a copy")
	}

	evts := recorder.Events()
	if len(evts) != 1 || evts[0].Type != events.TypeStakeConfigInitialized {
		t.Fatalf("unexpected events %+v", evts)
	}
	if evts[0].Attr("admin") != admin.String() || evts[0].Attr("minFreezePeriod") != "86400" {
		t.Fatalf("unexpected attributes %+v", evts[0].Attributes)
	}
}

func TestConfigStoreRejectsNegativeFreeze(t *testing.T) {
	state := newMockState()
	admin := addr(0x0A)
	store := NewConfigStore(state, admin)
	cfg := defaultConfig()
	cfg.MinFreezePeriod = -5
	if err := store.Initialize(admin, cfg); !errors.Is(err, stakeerr.ErrInvalidLockPeriod) {
		t.Fatalf("expected ErrInvalidLockPeriod, got %v", err)
	}
	if state.config != nil {
		t.Fatalf("invalid config stored")
	}
}

func TestConfigStoreZeroAdminRejectsAll(t *testing.T) {
	store := NewConfigStore(newMockState(), addr(0))
	if err := store.Initialize(addr(0), defaultConfig()); !errors.Is(err, stakeerr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
