package sale

import "math/big"

// unlockedIntervals counts how many vesting intervals have opened at time t.
// The first interval opens at the cliff itself, each subsequent one as another
// interval elapses. The count is clamped to the schedule's total so trailing
// remainder seconds in the duration never mint an extra interval.
func unlockedIntervals(sched VestingSchedule, claimStart, t int64) uint64 {
	elapsed := t - claimStart
	if elapsed < 0 || uint64(elapsed) < sched.Cliff {
		return 0
	}
	unlocked := (uint64(elapsed)-sched.Cliff)/sched.Interval + 1
	if total := sched.TotalIntervals(); unlocked > total {
		unlocked = total
	}
	return unlocked
}

// claimableAmount computes the portion of an entitlement releasable at now.
//
// Time is measured from the claim phase start. Nothing unlocks before the
// cliff. At the cliff exactly one interval's worth of the remaining deposit
// unlocks, with a further interval each time the schedule's interval elapses,
// until everything remaining is released after cliff+duration. The payout is
// proportional to the intervals opened since the caller's last checkpoint, so
// a participant who skipped intervals catches up on their next claim. Division
// truncates at each step and the dividend is the remaining deposit, so the
// per-call split depends on when claims land relative to interval boundaries.
func claimableAmount(ent *Entitlement, sched VestingSchedule, claimStart, now int64) (*big.Int, error) {
	if ent == nil || ent.Deposited == nil || ent.Deposited.Sign() == 0 {
		return nil, ErrNothingDeposited
	}
	elapsed := now - claimStart
	if elapsed < 0 || uint64(elapsed) < sched.Cliff {
		return nil, ErrCliffNotReached
	}
	if uint64(elapsed) >= sched.Cliff+sched.Duration {
		return new(big.Int).Set(ent.Deposited), nil
	}
	totalIntervals := sched.TotalIntervals()
	if totalIntervals == 0 {
		return nil, ErrNothingClaimable
	}
	unlocked := unlockedIntervals(sched, claimStart, now)
	var delta uint64
	if ent.LastClaimAt == 0 {
		delta = unlocked
	} else if prior := unlockedIntervals(sched, claimStart, ent.LastClaimAt); unlocked > prior {
		delta = unlocked - prior
	}
	if delta == 0 {
		return nil, ErrNothingClaimable
	}
	amount := new(big.Int).Mul(ent.Deposited, new(big.Int).SetUint64(delta))
	amount.Quo(amount, new(big.Int).SetUint64(totalIntervals))
	if amount.Cmp(ent.Deposited) > 0 {
		amount.Set(ent.Deposited)
	}
	if amount.Sign() == 0 {
		return nil, ErrNothingClaimable
	}
	return amount, nil
}
