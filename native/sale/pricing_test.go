package sale

import (
	"errors"
	"math/big"
	"testing"
)

func ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), oneEther)
}

func TestConvertReferenceVector(t *testing.T) {
	priceA := big.NewInt(2_500_000_000_000_000)       // 0.0025 USD
	priceB := big.NewInt(250_000_000_000_000_000)     // 0.25 USD
	alloc, err := Convert(ether(600), priceA, priceB) // 600 USD
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if alloc.AmountA.Cmp(ether(30_000)) != 0 {
		t.Fatalf("amountA = %s, want 30000e18", alloc.AmountA)
	}
	if alloc.AmountB.Cmp(ether(2_100)) != 0 {
		t.Fatalf("amountB = %s, want 2100e18", alloc.AmountB)
	}
}

func TestConvertTruncatesEachStep(t *testing.T) {
	// 9 USD / 8 truncates to 1.125e18 exactly; with a price of 3 USD the
	// token amount truncates again.
	alloc, err := Convert(ether(9), ether(3), ether(1))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// floor(9/8) = 1.125 USD (exact in 18-decimal), / 3 = 0.375
	want := big.NewInt(375_000_000_000_000_000)
	if alloc.AmountA.Cmp(want) != 0 {
		t.Fatalf("amountA = %s, want %s", alloc.AmountA, want)
	}
	// floor(9*7/8) = 7.875 USD / 1 = 7.875
	wantB := big.NewInt(7_875_000_000_000_000_000)
	if alloc.AmountB.Cmp(wantB) != 0 {
		t.Fatalf("amountB = %s, want %s", alloc.AmountB, wantB)
	}
}

func TestConvertRejectsInvalidInputs(t *testing.T) {
	if _, err := Convert(big.NewInt(-1), ether(1), ether(1)); err == nil {
		t.Fatal("expected error for negative USD value")
	}
	if _, err := Convert(ether(1), big.NewInt(0), ether(1)); err == nil {
		t.Fatal("expected error for zero price A")
	}
	if _, err := Convert(ether(1), ether(1), nil); err == nil {
		t.Fatal("expected error for nil price B")
	}
}

func TestLatestPriceTruncatesFeedDecimals(t *testing.T) {
	round := RoundData{Answer: big.NewInt(250_000_000_000)} // 2500 USD at 8 decimals
	price, err := latestPrice(round, 8)
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if price.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("price = %s, want 2500", price)
	}

	// sub-dollar fractions are discarded
	round.Answer = big.NewInt(250_099_999_999)
	price, err = latestPrice(round, 8)
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if price.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("price = %s, want 2500", price)
	}
}

func TestLatestPriceRejectsNonPositive(t *testing.T) {
	for _, answer := range []*big.Int{nil, big.NewInt(0), big.NewInt(-42)} {
		if _, err := latestPrice(RoundData{Answer: answer}, 8); !errors.Is(err, ErrNonPositivePrice) {
			t.Fatalf("answer %v: expected ErrNonPositivePrice, got %v", answer, err)
		}
	}
	// a positive answer below one whole unit truncates to zero
	if _, err := latestPrice(RoundData{Answer: big.NewInt(99_999_999)}, 8); !errors.Is(err, ErrNonPositivePrice) {
		t.Fatalf("expected ErrNonPositivePrice for sub-unit answer, got %v", err)
	}
}
