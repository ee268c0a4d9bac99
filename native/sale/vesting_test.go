package sale

import (
	"errors"
	"math/big"
	"testing"
)

const monthSeconds = 30 * 24 * 60 * 60

func twoMonthSchedule() VestingSchedule {
	return VestingSchedule{
		Cliff:    8 * monthSeconds,
		Duration: 28 * monthSeconds,
		Interval: 2 * monthSeconds,
	}
}

func TestClaimableRejectsBeforeCliff(t *testing.T) {
	sched := twoMonthSchedule()
	ent := &Entitlement{Deposited: big.NewInt(1400)}
	start := int64(1_000_000)

	if _, err := claimableAmount(ent, sched, start, start); !errors.Is(err, ErrCliffNotReached) {
		t.Fatalf("expected cliff error at start, got %v", err)
	}
	justBefore := start + int64(sched.Cliff) - 1
	if _, err := claimableAmount(ent, sched, start, justBefore); !errors.Is(err, ErrCliffNotReached) {
		t.Fatalf("expected cliff error one second early, got %v", err)
	}
}

func TestClaimableFirstClaimAtCliff(t *testing.T) {
	sched := twoMonthSchedule()
	ent := &Entitlement{Deposited: big.NewInt(1400)}
	start := int64(1_000_000)
	atCliff := start + int64(sched.Cliff)

	amount, err := claimableAmount(ent, sched, start, atCliff)
	if err != nil {
		t.Fatalf("claim at cliff: %v", err)
	}
	// 1400 / 14 intervals
	if amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 at cliff, got %s", amount)
	}
}

func TestClaimableSameIntervalRejects(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	atCliff := start + int64(sched.Cliff)

	ent := &Entitlement{Deposited: big.NewInt(1300), LastClaimAt: atCliff}
	later := atCliff + int64(sched.Interval) - 1
	if _, err := claimableAmount(ent, sched, start, later); !errors.Is(err, ErrNothingClaimable) {
		t.Fatalf("expected nothing claimable within the interval, got %v", err)
	}
}

func TestClaimableNextIntervalUsesRemainingDeposit(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	atCliff := start + int64(sched.Cliff)

	// 100 was paid at the cliff, leaving 1300 on deposit.
	ent := &Entitlement{Deposited: big.NewInt(1300), LastClaimAt: atCliff}
	next := atCliff + int64(sched.Interval)
	amount, err := claimableAmount(ent, sched, start, next)
	if err != nil {
		t.Fatalf("claim one interval later: %v", err)
	}
	// floor(1300 * 1 / 14): truncation applies to the remaining deposit,
	// not the original, so this is 92 rather than a naive 100.
	if amount.Cmp(big.NewInt(92)) != 0 {
		t.Fatalf("expected 92, got %s", amount)
	}
}

func TestClaimableStraddlingBoundaryCountsOneInterval(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	atCliff := start + int64(sched.Cliff)

	lastClaim := atCliff + int64(sched.Interval)/2
	now := atCliff + int64(sched.Interval) + int64(sched.Interval)/4
	ent := &Entitlement{Deposited: big.NewInt(1400), LastClaimAt: lastClaim}

	amount, err := claimableAmount(ent, sched, start, now)
	if err != nil {
		t.Fatalf("claim across boundary: %v", err)
	}
	if amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected one interval's worth, got %s", amount)
	}
}

func TestClaimableFirstClaimCatchesUp(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	ent := &Entitlement{Deposited: big.NewInt(1400)}

	// Five full intervals past the cliff unlocks six (the cliff itself
	// opens the first).
	now := start + int64(sched.Cliff) + 5*int64(sched.Interval)
	amount, err := claimableAmount(ent, sched, start, now)
	if err != nil {
		t.Fatalf("catch-up claim: %v", err)
	}
	if amount.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected 600, got %s", amount)
	}
}

func TestClaimableFullVestingPaysRemainder(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	done := start + int64(sched.Cliff) + int64(sched.Duration)

	ent := &Entitlement{Deposited: big.NewInt(777), LastClaimAt: start + int64(sched.Cliff)}
	amount, err := claimableAmount(ent, sched, start, done)
	if err != nil {
		t.Fatalf("full-vesting claim: %v", err)
	}
	if amount.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("expected full remainder 777, got %s", amount)
	}
}

func TestClaimableDrainsToExactlyZero(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	deposited := big.NewInt(1400)
	ent := &Entitlement{Deposited: new(big.Int).Set(deposited)}

	paid := big.NewInt(0)
	for i := uint64(0); i < sched.Duration/sched.Interval; i++ {
		now := start + int64(sched.Cliff) + int64(i*sched.Interval)
		amount, err := claimableAmount(ent, sched, start, now)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		ent.Deposited.Sub(ent.Deposited, amount)
		ent.LastClaimAt = now
		paid.Add(paid, amount)
		if paid.Cmp(deposited) > 0 {
			t.Fatalf("paid %s exceeds deposit %s", paid, deposited)
		}
	}
	final := start + int64(sched.Cliff) + int64(sched.Duration)
	amount, err := claimableAmount(ent, sched, start, final)
	if err != nil {
		t.Fatalf("final claim: %v", err)
	}
	ent.Deposited.Sub(ent.Deposited, amount)
	paid.Add(paid, amount)
	if ent.Deposited.Sign() != 0 {
		t.Fatalf("deposit not drained, %s left", ent.Deposited)
	}
	if paid.Cmp(deposited) != 0 {
		t.Fatalf("total paid %s != deposited %s", paid, deposited)
	}
}

func TestClaimableTinyDepositRoundsToNothing(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	ent := &Entitlement{Deposited: big.NewInt(1)}

	now := start + int64(sched.Cliff)
	if _, err := claimableAmount(ent, sched, start, now); !errors.Is(err, ErrNothingClaimable) {
		t.Fatalf("expected nothing claimable for a 1-unit deposit, got %v", err)
	}
}

func TestClaimableEmptyDeposit(t *testing.T) {
	sched := twoMonthSchedule()
	start := int64(1_000_000)
	now := start + int64(sched.Cliff)

	if _, err := claimableAmount(&Entitlement{Deposited: big.NewInt(0)}, sched, start, now); !errors.Is(err, ErrNothingDeposited) {
		t.Fatalf("expected nothing deposited, got %v", err)
	}
	if _, err := claimableAmount(nil, sched, start, now); !errors.Is(err, ErrNothingDeposited) {
		t.Fatalf("expected nothing deposited for nil entitlement, got %v", err)
	}
}
