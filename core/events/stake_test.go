package events

import (
	"encoding/hex"
	"testing"

	"stakingcore/crypto"
)

func TestStakeOpenedEvent(t *testing.T) {
	var id [32]byte
	id[0] = 0xab
	owner := crypto.BytesToAddress([]byte{1, 2, 3})
	mint := crypto.BytesToAddress([]byte{9})
	evt := StakeOpened{
		PositionID: id,
		Owner:      owner,
		Asset:      " Fungible ",
		Mint:       mint,
		Seed:       4,
		Amount:     500,
		LockPeriod: 120,
		Locked:     true,
		StakedAt:   1000,
		JoinBonus:  5000,
	}.Event()
	if evt.Type != TypeStakeOpened {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	want := map[string]string{
		"positionId": hex.EncodeToString(id[:]),
		"owner":      owner.String(),
		"asset":      "fungible",
		"mint":       mint.String(),
		"seed":       "4",
		"amount":     "500",
		"lockPeriod": "120",
		"locked":     "true",
		"stakedAt":   "1000",
		"reward":     "5000",
	}
	for key, value := range want {
		if evt.Attributes[key] != value {
			t.Fatalf("attribute %s: got %q want %q", key, evt.Attributes[key], value)
		}
	}
}

func TestStakeClosedOmitsZeroMint(t *testing.T) {
	evt := StakeClosed{Owner: crypto.BytesToAddress([]byte{7}), Asset: "native", Amount: 1, Elapsed: 60, Reward: 3}.Event()
	if _, ok := evt.Attributes["mint"]; ok {
		t.Fatalf("native position must not carry a mint attribute")
	}
	if evt.Attr("elapsed") != "60" || evt.Attr("reward") != "3" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestBufferFlushesInOrderOnce(t *testing.T) {
	var buf Buffer
	buf.Emit(StakeConfigInitialized{AnnualPercentageRateBps: 500})
	buf.Emit(StakeOpened{Amount: 1})
	buf.Emit(nil)
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}

	rec := &Recorder{}
	buf.Flush(rec)
	buf.Flush(rec)
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(got))
	}
	if got[0].Type != TypeStakeConfigInitialized || got[1].Type != TypeStakeOpened {
		t.Fatalf("unexpected order: %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Attr("aprBps") != "500" {
		t.Fatalf("unexpected apr attr: %q", got[0].Attr("aprBps"))
	}
}

func TestBufferResetDropsPending(t *testing.T) {
	var buf Buffer
	buf.Emit(StakeOpened{})
	buf.Reset()
	rec := &Recorder{}
	buf.Flush(rec)
	if len(rec.Events()) != 0 {
		t.Fatalf("reset buffer must not flush")
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	MultiEmitter{first, nil, NoopEmitter{}, second}.Emit(StakeClosed{Reward: 9})
	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Fatalf("expected both recorders to receive the event")
	}
}

func TestRecorderReturnsCopies(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(StakeClosed{Reward: 9})
	rec.Events()[0].Attributes["reward"] = "tampered"
	if rec.Events()[0].Attr("reward") != "9" {
		t.Fatalf("recorder state mutated through returned event")
	}
}
