package sale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Storage abstracts the subset of state manager functionality required by the
// allocation ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedState struct {
	Running        bool
	Paused         bool
	ClaimStarted   bool
	ClaimStartTime uint64
	RewardTokenA   [20]byte
	RewardTokenB   [20]byte
}

type storedAmount struct {
	Value string
}

type storedEntitlement struct {
	Deposited   string
	LastClaimAt uint64
}

// Ledger persists the sale state, per-token running totals and per-participant
// entitlements in the underlying key-value store.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// State loads the sale lifecycle record, returning a zero state when the sale
// has never been touched.
func (l *Ledger) State() (*State, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("sale: ledger not initialised")
	}
	var stored storedState
	ok, err := l.store.KVGet(saleStateKey(), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &State{}, nil
	}
	return &State{
		Running:        stored.Running,
		Paused:         stored.Paused,
		ClaimStarted:   stored.ClaimStarted,
		ClaimStartTime: int64(stored.ClaimStartTime),
		RewardTokenA:   common.Address(stored.RewardTokenA),
		RewardTokenB:   common.Address(stored.RewardTokenB),
	}, nil
}

// PutState persists the sale lifecycle record.
func (l *Ledger) PutState(s *State) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("sale: ledger not initialised")
	}
	if s == nil {
		return fmt.Errorf("sale: state must not be nil")
	}
	if s.ClaimStartTime < 0 {
		return fmt.Errorf("sale: claim start time must not be negative")
	}
	stored := storedState{
		Running:        s.Running,
		Paused:         s.Paused,
		ClaimStarted:   s.ClaimStarted,
		ClaimStartTime: uint64(s.ClaimStartTime),
		RewardTokenA:   s.RewardTokenA,
		RewardTokenB:   s.RewardTokenB,
	}
	return l.store.KVPut(saleStateKey(), &stored)
}

// TotalSold returns the running total of the reward token issued so far.
func (l *Ledger) TotalSold(token RewardToken) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("sale: ledger not initialised")
	}
	var stored storedAmount
	ok, err := l.store.KVGet(totalSoldKey(token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	total, parseErr := parseAmount(stored.Value)
	if parseErr != nil {
		return nil, fmt.Errorf("sale: total sold for token %s: %w", token, parseErr)
	}
	return total, nil
}

// SetTotalSold overwrites the running total for the reward token.
func (l *Ledger) SetTotalSold(token RewardToken, total *big.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("sale: ledger not initialised")
	}
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("sale: total sold must not be negative")
	}
	return l.store.KVPut(totalSoldKey(token), &storedAmount{Value: total.String()})
}

// Entitlement loads the participant's record for the reward token, returning
// an empty entitlement when none exists yet.
func (l *Ledger) Entitlement(participant common.Address, token RewardToken) (*Entitlement, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("sale: ledger not initialised")
	}
	var stored storedEntitlement
	ok, err := l.store.KVGet(entitlementKey(participant, token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Entitlement{Deposited: big.NewInt(0)}, nil
	}
	deposited, parseErr := parseAmount(stored.Deposited)
	if parseErr != nil {
		return nil, fmt.Errorf("sale: entitlement for %s token %s: %w", participant.Hex(), token, parseErr)
	}
	return &Entitlement{Deposited: deposited, LastClaimAt: int64(stored.LastClaimAt)}, nil
}

// PutEntitlement persists the participant's record for the reward token.
func (l *Ledger) PutEntitlement(participant common.Address, token RewardToken, ent *Entitlement) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("sale: ledger not initialised")
	}
	if ent == nil || ent.Deposited == nil || ent.Deposited.Sign() < 0 {
		return fmt.Errorf("sale: entitlement must not be negative")
	}
	if ent.LastClaimAt < 0 {
		return fmt.Errorf("sale: last claim time must not be negative")
	}
	stored := storedEntitlement{
		Deposited:   ent.Deposited.String(),
		LastClaimAt: uint64(ent.LastClaimAt),
	}
	return l.store.KVPut(entitlementKey(participant, token), &stored)
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", value)
	}
	return amount, nil
}
