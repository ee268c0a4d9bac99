package sale

import (
	"fmt"
	"math/big"
)

var (
	oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	eight    = big.NewInt(8)
	seven    = big.NewInt(7)
)

// Allocation is the pair of reward amounts carved from a single USD
// contribution.
type Allocation struct {
	AmountA *big.Int
	AmountB *big.Int
}

// Convert splits usdAmount (18-decimal fixed point) across the two reward
// tokens by value. One eighth of the value buys token A, the remaining seven
// eighths buy token B. Every division truncates toward zero and the operations
// run in a fixed order so results are reproducible.
func Convert(usdAmount, priceA, priceB *big.Int) (Allocation, error) {
	if usdAmount == nil || usdAmount.Sign() < 0 {
		return Allocation{}, fmt.Errorf("sale: usd amount must be non-negative")
	}
	if priceA == nil || priceA.Sign() <= 0 {
		return Allocation{}, fmt.Errorf("sale: price A must be positive")
	}
	if priceB == nil || priceB.Sign() <= 0 {
		return Allocation{}, fmt.Errorf("sale: price B must be positive")
	}
	usdA := new(big.Int).Quo(usdAmount, eight)
	amountA := new(big.Int).Mul(usdA, oneEther)
	amountA.Quo(amountA, priceA)

	usdB := new(big.Int).Mul(usdAmount, seven)
	usdB.Quo(usdB, eight)
	amountB := new(big.Int).Mul(usdB, oneEther)
	amountB.Quo(amountB, priceB)

	return Allocation{AmountA: amountA, AmountB: amountB}, nil
}

// latestPrice reduces an oracle round to a whole-dollar price by truncating
// the feed's fractional digits. Non-positive answers are rejected rather than
// propagated into purchase math.
func latestPrice(round RoundData, feedDecimals uint8) (*big.Int, error) {
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrNonPositivePrice
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(feedDecimals)), nil)
	price := new(big.Int).Quo(round.Answer, scale)
	if price.Sign() <= 0 {
		return nil, ErrNonPositivePrice
	}
	return price, nil
}
