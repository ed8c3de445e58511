package common

import (
	"errors"
	"math"
	"testing"

	stakeerr "stakingcore/core/errors"
)

func TestCheckedAdd(t *testing.T) {
	sum, err := CheckedAdd(40, 2)
	if err != nil || sum != 42 {
		t.Fatalf("unexpected result: %d %v", sum, err)
	}
	if _, err := CheckedAdd(math.MaxUint64, 1); !errors.Is(err, stakeerr.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	sum, err = CheckedAdd(math.MaxUint64, 0)
	if err != nil || sum != math.MaxUint64 {
		t.Fatalf("adding zero at the limit should succeed: %d %v", sum, err)
	}
}

func TestCheckedSub(t *testing.T) {
	diff, err := CheckedSub(100, 100)
	if err != nil || diff != 0 {
		t.Fatalf("unexpected result: %d %v", diff, err)
	}
	if _, err := CheckedSub(100, 150); !errors.Is(err, stakeerr.ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
}

func TestCheckedMul(t *testing.T) {
	product, err := CheckedMul(10, 500)
	if err != nil || product != 5000 {
		t.Fatalf("unexpected result: %d %v", product, err)
	}
	product, err = CheckedMul(0, math.MaxUint64)
	if err != nil || product != 0 {
		t.Fatalf("zero operand should yield zero: %d %v", product, err)
	}
	if _, err := CheckedMul(math.MaxUint64/2+1, 2); !errors.Is(err, stakeerr.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
