package sale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RewardToken identifies one of the two reward tokens distributed by the sale.
type RewardToken uint8

const (
	// RewardTokenA receives 1/8 of each purchase by stable value and is the
	// token whose total issuance is capped.
	RewardTokenA RewardToken = iota
	// RewardTokenB receives the remaining 7/8 of each purchase.
	RewardTokenB
)

// Valid reports whether the value names a supported reward token.
func (t RewardToken) Valid() bool {
	switch t {
	case RewardTokenA, RewardTokenB:
		return true
	default:
		return false
	}
}

func (t RewardToken) String() string {
	switch t {
	case RewardTokenA:
		return "A"
	case RewardTokenB:
		return "B"
	default:
		return fmt.Sprintf("RewardToken(%d)", uint8(t))
	}
}

// ParseRewardToken resolves the canonical "A"/"B" identifiers used on the
// public surface.
func ParseRewardToken(s string) (RewardToken, error) {
	switch s {
	case "A", "a":
		return RewardTokenA, nil
	case "B", "b":
		return RewardTokenB, nil
	default:
		return 0, fmt.Errorf("sale: unknown reward token %q", s)
	}
}

// VestingSchedule describes the release curve for one reward token. All
// durations are in seconds; Duration is split into Duration/Interval discrete
// steps after the cliff.
type VestingSchedule struct {
	Cliff    uint64
	Duration uint64
	Interval uint64
}

// TotalIntervals returns the number of discrete unlock steps in the schedule.
func (s VestingSchedule) TotalIntervals() uint64 {
	if s.Interval == 0 {
		return 0
	}
	return s.Duration / s.Interval
}

// Validate checks the schedule is internally consistent.
func (s VestingSchedule) Validate() error {
	if s.Interval == 0 {
		return fmt.Errorf("sale: vesting interval must be positive")
	}
	if s.Duration == 0 {
		return fmt.Errorf("sale: vesting duration must be positive")
	}
	if s.Duration < s.Interval {
		return fmt.Errorf("sale: vesting duration shorter than one interval")
	}
	return nil
}

// Config captures the immutable parameters of one sale instance. Prices and
// USD amounts use 18-decimal fixed point.
type Config struct {
	// PriceA and PriceB are the stable value of one whole reward token.
	PriceA *big.Int
	PriceB *big.Int
	// MinUSD and MaxUSD bound the per-transaction purchase value, inclusive.
	MinUSD *big.Int
	MaxUSD *big.Int
	// CapA caps the total issuable amount of reward token A.
	CapA *big.Int
	// Owner gates administrative transitions; Beneficiary receives payments.
	Owner       common.Address
	Beneficiary common.Address
	// FeedDecimals is the decimal convention of the price feed (8 for the
	// standard aggregator surface).
	FeedDecimals uint8
	// RewardDecimals is the native precision of both reward token contracts.
	RewardDecimals uint8
	// ScheduleA and ScheduleB may carry distinct cliffs per token.
	ScheduleA VestingSchedule
	ScheduleB VestingSchedule
}

// Schedule returns the vesting schedule for the given reward token.
func (c *Config) Schedule(token RewardToken) VestingSchedule {
	if token == RewardTokenB {
		return c.ScheduleB
	}
	return c.ScheduleA
}

// Validate verifies the configuration describes a usable sale.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("sale: config required")
	}
	if c.PriceA == nil || c.PriceA.Sign() <= 0 {
		return fmt.Errorf("sale: price for token A must be positive")
	}
	if c.PriceB == nil || c.PriceB.Sign() <= 0 {
		return fmt.Errorf("sale: price for token B must be positive")
	}
	if c.MinUSD == nil || c.MinUSD.Sign() <= 0 {
		return fmt.Errorf("sale: minimum purchase value must be positive")
	}
	if c.MaxUSD == nil || c.MaxUSD.Cmp(c.MinUSD) < 0 {
		return fmt.Errorf("sale: maximum purchase value below minimum")
	}
	if c.CapA == nil || c.CapA.Sign() <= 0 {
		return fmt.Errorf("sale: cap for token A must be positive")
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("sale: owner address required")
	}
	if c.Beneficiary == (common.Address{}) {
		return fmt.Errorf("sale: beneficiary address required")
	}
	if c.FeedDecimals == 0 || c.FeedDecimals > 18 {
		return fmt.Errorf("sale: feed decimals out of range: %d", c.FeedDecimals)
	}
	if c.RewardDecimals == 0 || c.RewardDecimals > 18 {
		return fmt.Errorf("sale: reward decimals out of range: %d", c.RewardDecimals)
	}
	if err := c.ScheduleA.Validate(); err != nil {
		return err
	}
	if err := c.ScheduleB.Validate(); err != nil {
		return err
	}
	return nil
}

// State holds the mutable sale lifecycle flags and the write-once claim-phase
// bindings.
type State struct {
	Running        bool
	Paused         bool
	ClaimStarted   bool
	ClaimStartTime int64
	RewardTokenA   common.Address
	RewardTokenB   common.Address
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return &State{}
	}
	clone := *s
	return &clone
}

// RewardTokenAddress returns the bound contract address for the token, which
// is the zero sentinel before the claim phase starts.
func (s *State) RewardTokenAddress(token RewardToken) common.Address {
	if token == RewardTokenB {
		return s.RewardTokenB
	}
	return s.RewardTokenA
}

// Entitlement tracks one participant's remaining unclaimed allocation of a
// single reward token, at 18-decimal internal precision.
type Entitlement struct {
	Deposited   *big.Int
	LastClaimAt int64
}

// Clone returns a deep copy so callers can mutate without aliasing stored
// records.
func (e *Entitlement) Clone() *Entitlement {
	if e == nil {
		return &Entitlement{Deposited: big.NewInt(0)}
	}
	clone := &Entitlement{LastClaimAt: e.LastClaimAt, Deposited: big.NewInt(0)}
	if e.Deposited != nil {
		clone.Deposited = new(big.Int).Set(e.Deposited)
	}
	return clone
}

// PurchaseReceipt records a successful purchase for the audit trail.
type PurchaseReceipt struct {
	ID        string
	Payer     common.Address
	Asset     string
	Paid      *big.Int
	USDValue  *big.Int
	AmountA   *big.Int
	AmountB   *big.Int
	Timestamp int64
}

// ClaimReceipt records a successful claim for the audit trail.
type ClaimReceipt struct {
	ID          string
	Participant common.Address
	Token       RewardToken
	Amount      *big.Int
	Timestamp   int64
}
