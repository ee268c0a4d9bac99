package bank

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Storage abstracts the subset of state manager functionality the bank needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	tokenMetaPrefix    = []byte("bank/token/meta/")
	tokenBalancePrefix = []byte("bank/token/balance/")
	allowancePrefix    = []byte("bank/token/allowance/")
	nativePrefix       = []byte("bank/native/balance/")
)

type storedTokenMeta struct {
	Symbol   string
	Decimals uint8
}

type storedAmount struct {
	Value string
}

// Ledger is a persistent registry of fungible tokens plus a native-value
// balance table, both keyed under the shared state store.
type Ledger struct {
	store Storage
}

// NewLedger constructs a bank ledger over the supplied store.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// RegisterToken records a token's metadata and returns its transfer surface.
func (l *Ledger) RegisterToken(addr common.Address, symbol string, decimals uint8) (*Token, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: ledger not configured")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("bank: token address required")
	}
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return nil, fmt.Errorf("bank: token symbol required")
	}
	if decimals == 0 || decimals > 18 {
		return nil, fmt.Errorf("bank: token decimals out of range")
	}
	key := tokenMetaKey(addr)
	var existing storedTokenMeta
	ok, err := l.store.KVGet(key, &existing)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrTokenExists
	}
	if err := l.store.KVPut(key, storedTokenMeta{Symbol: trimmed, Decimals: decimals}); err != nil {
		return nil, err
	}
	return &Token{ledger: l, addr: addr, symbol: trimmed, decimals: decimals}, nil
}

// Token resolves a previously registered token by address.
func (l *Ledger) Token(addr common.Address) (*Token, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("bank: ledger not configured")
	}
	var meta storedTokenMeta
	ok, err := l.store.KVGet(tokenMetaKey(addr), &meta)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Token{ledger: l, addr: addr, symbol: meta.Symbol, decimals: meta.Decimals}, true, nil
}

// Native returns the native-value transfer surface.
func (l *Ledger) Native() *NativeLedger {
	return &NativeLedger{ledger: l}
}

// NativeLedger moves native value between accounts.
type NativeLedger struct {
	ledger *Ledger
}

// BalanceOf returns the native balance of addr.
func (n *NativeLedger) BalanceOf(addr common.Address) (*big.Int, error) {
	if n == nil || n.ledger == nil {
		return nil, fmt.Errorf("bank: native ledger not configured")
	}
	bal, err := n.ledger.loadAmount(nativeKey(addr))
	if err != nil {
		return nil, err
	}
	return bal.ToBig(), nil
}

// Mint credits native value to addr.
func (n *NativeLedger) Mint(addr common.Address, amount *big.Int) error {
	if n == nil || n.ledger == nil {
		return fmt.Errorf("bank: native ledger not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return n.ledger.creditAmount(nativeKey(addr), value)
}

// Transfer moves native value from one account to another.
func (n *NativeLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if n == nil || n.ledger == nil {
		return fmt.Errorf("bank: native ledger not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	if err := n.ledger.debitAmount(nativeKey(from), value); err != nil {
		return err
	}
	if err := n.ledger.creditAmount(nativeKey(to), value); err != nil {
		// the debit already persisted; put it back before failing
		if restoreErr := n.ledger.creditAmount(nativeKey(from), value); restoreErr != nil {
			return fmt.Errorf("bank: credit failed and debit restore failed: %v: %w", err, restoreErr)
		}
		return err
	}
	return nil
}

func (l *Ledger) loadAmount(key []byte) (*uint256.Int, error) {
	var stored storedAmount
	ok, err := l.store.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(stored.Value, 10)
	if !ok {
		return nil, fmt.Errorf("bank: corrupted amount %q", stored.Value)
	}
	value, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

func (l *Ledger) storeAmount(key []byte, value *uint256.Int) error {
	return l.store.KVPut(key, storedAmount{Value: value.Dec()})
}

func (l *Ledger) creditAmount(key []byte, delta *uint256.Int) error {
	current, err := l.loadAmount(key)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, delta)
	if overflow {
		return ErrBalanceOverflow
	}
	return l.storeAmount(key, next)
}

func (l *Ledger) debitAmount(key []byte, delta *uint256.Int) error {
	current, err := l.loadAmount(key)
	if err != nil {
		return err
	}
	if current.Cmp(delta) < 0 {
		return ErrInsufficientBalance
	}
	return l.storeAmount(key, new(uint256.Int).Sub(current, delta))
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrAmountInvalid
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

func tokenMetaKey(addr common.Address) []byte {
	return appendKey(tokenMetaPrefix, addr.Hex())
}

func tokenBalanceKey(token, holder common.Address) []byte {
	return appendKey(tokenBalancePrefix, token.Hex(), holder.Hex())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return appendKey(allowancePrefix, owner.Hex(), spender.Hex(), token.Hex())
}

func nativeKey(addr common.Address) []byte {
	return appendKey(nativePrefix, addr.Hex())
}

func appendKey(prefix []byte, parts ...string) []byte {
	key := make([]byte, len(prefix), len(prefix)+len(parts)*48)
	copy(key, prefix)
	for i, part := range parts {
		if i > 0 {
			key = append(key, '/')
		}
		key = append(key, part...)
	}
	return key
}
