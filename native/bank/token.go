package bank

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is a registered fungible token's transfer surface. Balances and
// allowances live in the ledger's store so a token handle can be recreated
// from its address at any time.
type Token struct {
	ledger   *Ledger
	addr     common.Address
	symbol   string
	decimals uint8
}

// Address returns the token's registry address.
func (t *Token) Address() common.Address { return t.addr }

// Symbol returns the token's registered symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the token's native decimal precision.
func (t *Token) Decimals() uint8 { return t.decimals }

// Mint credits freshly issued units to the holder.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("bank: token not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return t.ledger.creditAmount(tokenBalanceKey(t.addr, to), value)
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(addr common.Address) (*big.Int, error) {
	if t == nil || t.ledger == nil {
		return nil, fmt.Errorf("bank: token not configured")
	}
	bal, err := t.ledger.loadAmount(tokenBalanceKey(t.addr, addr))
	if err != nil {
		return nil, err
	}
	return bal.ToBig(), nil
}

// Allowance returns the amount the spender may pull from the owner.
func (t *Token) Allowance(owner, spender common.Address) (*big.Int, error) {
	if t == nil || t.ledger == nil {
		return nil, fmt.Errorf("bank: token not configured")
	}
	allowed, err := t.ledger.loadAmount(allowanceKey(t.addr, owner, spender))
	if err != nil {
		return nil, err
	}
	return allowed.ToBig(), nil
}

// Approve sets the spender's allowance from the owner to exactly amount.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("bank: token not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return t.ledger.storeAmount(allowanceKey(t.addr, owner, spender), value)
}

// Transfer moves tokens between holders.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("bank: token not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return t.move(from, to, value)
}

// TransferFrom moves tokens between holders on the spender's authority,
// reducing the owner's allowance by the amount moved.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("bank: token not configured")
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	key := allowanceKey(t.addr, from, spender)
	allowed, err := t.ledger.loadAmount(key)
	if err != nil {
		return err
	}
	if allowed.Cmp(value) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, value); err != nil {
		return err
	}
	return t.ledger.storeAmount(key, new(uint256.Int).Sub(allowed, value))
}

func (t *Token) move(from, to common.Address, value *uint256.Int) error {
	if err := t.ledger.debitAmount(tokenBalanceKey(t.addr, from), value); err != nil {
		return err
	}
	if err := t.ledger.creditAmount(tokenBalanceKey(t.addr, to), value); err != nil {
		if restoreErr := t.ledger.creditAmount(tokenBalanceKey(t.addr, from), value); restoreErr != nil {
			return fmt.Errorf("bank: credit failed and debit restore failed: %v: %w", err, restoreErr)
		}
		return err
	}
	return nil
}
