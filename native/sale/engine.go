package sale

import (
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"presale/core/events"
)

// NativeAsset is the symbol recorded on purchase receipts settled with the
// chain's native value instead of a stablecoin.
const NativeAsset = "NATIVE"

// Token is the external fungible-token surface the sale consumes. Transfers
// report failure through the returned error; implementations may call back
// into the engine from their transfer hooks, which the engine treats as
// re-entrancy.
type Token interface {
	BalanceOf(addr common.Address) (*big.Int, error)
	Allowance(owner, spender common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// NativeLedger moves native value between accounts.
type NativeLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
}

// TokenRegistry resolves a reward-token address to its transfer surface. The
// engine re-resolves from the persisted addresses after a restart so claim
// handling does not depend on in-memory wiring order.
type TokenRegistry interface {
	Resolve(addr common.Address) (Token, bool)
}

type stableAsset struct {
	token    Token
	decimals uint8
}

// Engine executes the presale state machine over a persistent ledger. All
// entry points are atomic: validations run first, ledger writes are staged
// with their pre-images, and a failed external transfer rolls the writes
// back before the error is surfaced.
type Engine struct {
	ledger      *Ledger
	cfg         Config
	feed        PriceFeed
	native      NativeLedger
	stables     map[string]stableAsset
	registry    TokenRegistry
	saleAccount common.Address
	emitter     events.Emitter
	nowFn       func() time.Time
	maxPriceAge time.Duration
	busy        atomic.Bool
}

// NewEngine constructs an engine over the supplied ledger and fixed sale
// parameters.
func NewEngine(ledger *Ledger, cfg Config, saleAccount common.Address) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("sale: ledger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if saleAccount == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	return &Engine{
		ledger:      ledger,
		cfg:         cfg,
		stables:     make(map[string]stableAsset),
		saleAccount: saleAccount,
		emitter:     events.NoopEmitter{},
		nowFn:       time.Now,
	}, nil
}

// SetFeed wires the native-asset price oracle.
func (e *Engine) SetFeed(feed PriceFeed) {
	if e == nil {
		return
	}
	e.feed = feed
}

// SetNative wires the native value ledger used by the native purchase path.
func (e *Engine) SetNative(native NativeLedger) {
	if e == nil {
		return
	}
	e.native = native
}

// SetRegistry wires the reward-token registry consulted after the claim
// phase starts.
func (e *Engine) SetRegistry(registry TokenRegistry) {
	if e == nil {
		return
	}
	e.registry = registry
}

// RegisterStable registers a stablecoin payment path under its symbol.
func (e *Engine) RegisterStable(symbol string, token Token, decimals uint8) error {
	if e == nil {
		return fmt.Errorf("sale: engine not configured")
	}
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" || trimmed == NativeAsset {
		return fmt.Errorf("sale: invalid stable asset symbol %q", symbol)
	}
	if token == nil {
		return fmt.Errorf("sale: stable asset %s requires a token", trimmed)
	}
	if decimals == 0 || decimals > 18 {
		return fmt.Errorf("sale: stable asset %s decimals out of range", trimmed)
	}
	e.stables[trimmed] = stableAsset{token: token, decimals: decimals}
	return nil
}

// SetEmitter overrides the event sink. Passing nil restores the no-op sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// SetMaxPriceAge bounds the accepted age of oracle rounds. Zero disables the
// staleness check.
func (e *Engine) SetMaxPriceAge(maxAge time.Duration) {
	if e == nil {
		return
	}
	e.maxPriceAge = maxAge
}

func (e *Engine) now() time.Time {
	if e.nowFn != nil {
		return e.nowFn()
	}
	return time.Now()
}

// enter acquires the call-scoped re-entrancy guard. External transfer hooks
// that call back into the engine observe the held guard and fail.
func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) leave() {
	e.busy.Store(false)
}

// SetRunning toggles whether purchases are admitted. Owner only.
func (e *Engine) SetRunning(caller common.Address, running bool) error {
	if e == nil {
		return fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if caller != e.cfg.Owner {
		return ErrNotOwner
	}
	state, err := e.ledger.State()
	if err != nil {
		return err
	}
	state.Running = running
	if err := e.ledger.PutState(state); err != nil {
		return err
	}
	e.emitter.Emit(NewRunningChangedEvent(running, e.now().Unix()))
	return nil
}

// Pause halts purchases and claims. Owner only.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes purchases and claims. Owner only.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	if e == nil {
		return fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if caller != e.cfg.Owner {
		return ErrNotOwner
	}
	state, err := e.ledger.State()
	if err != nil {
		return err
	}
	if paused && state.Paused {
		return ErrAlreadyPaused
	}
	if !paused && !state.Paused {
		return ErrNotPaused
	}
	state.Paused = paused
	if err := e.ledger.PutState(state); err != nil {
		return err
	}
	e.emitter.Emit(NewPauseEvent(paused, e.now().Unix()))
	return nil
}

// PurchaseWithStable settles a stablecoin purchase. rawAmount is denominated
// in the asset's own decimal precision and valued 1:1 against USD.
func (e *Engine) PurchaseWithStable(payer common.Address, symbol string, rawAmount *big.Int) (PurchaseReceipt, error) {
	if e == nil {
		return PurchaseReceipt{}, fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return PurchaseReceipt{}, err
	}
	defer e.leave()

	asset, ok := e.stables[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return PurchaseReceipt{}, ErrUnsupportedAsset
	}
	if payer == (common.Address{}) {
		return PurchaseReceipt{}, ErrZeroAddress
	}
	if rawAmount == nil || rawAmount.Sign() <= 0 {
		return PurchaseReceipt{}, ErrBelowMinimum
	}
	usdValue := scaleAmount(rawAmount, asset.decimals, 18)

	alloc, err := e.admitPurchase(usdValue)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	allowance, err := asset.token.Allowance(payer, e.saleAccount)
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if allowance == nil || allowance.Cmp(rawAmount) < 0 {
		return PurchaseReceipt{}, ErrInsufficientAllowance
	}

	undo, err := e.creditPurchase(payer, alloc)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	if err := asset.token.TransferFrom(e.saleAccount, payer, e.cfg.Beneficiary, rawAmount); err != nil {
		if restoreErr := undo(); restoreErr != nil {
			return PurchaseReceipt{}, fmt.Errorf("sale: rollback failed after transfer error %v: %w", err, restoreErr)
		}
		return PurchaseReceipt{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	receipt := PurchaseReceipt{
		ID:        uuid.NewString(),
		Payer:     payer,
		Asset:     strings.ToUpper(strings.TrimSpace(symbol)),
		Paid:      new(big.Int).Set(rawAmount),
		USDValue:  usdValue,
		AmountA:   alloc.AmountA,
		AmountB:   alloc.AmountB,
		Timestamp: e.now().Unix(),
	}
	e.emitter.Emit(NewPurchasedEvent(receipt))
	return receipt, nil
}

// PurchaseWithNative settles a purchase paid in native value. rawAmount is
// the intended purchase size and sentValue is the value actually provided;
// any excess is refunded to the payer and exactly rawAmount is forwarded to
// the beneficiary.
func (e *Engine) PurchaseWithNative(payer common.Address, rawAmount, sentValue *big.Int) (PurchaseReceipt, error) {
	if e == nil {
		return PurchaseReceipt{}, fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return PurchaseReceipt{}, err
	}
	defer e.leave()

	if e.native == nil || e.feed == nil {
		return PurchaseReceipt{}, ErrUnsupportedAsset
	}
	if payer == (common.Address{}) {
		return PurchaseReceipt{}, ErrZeroAddress
	}
	if rawAmount == nil || rawAmount.Sign() <= 0 {
		return PurchaseReceipt{}, ErrBelowMinimum
	}
	if sentValue == nil || sentValue.Cmp(rawAmount) < 0 {
		return PurchaseReceipt{}, ErrInsufficientPayment
	}
	price, err := e.resolvePrice()
	if err != nil {
		return PurchaseReceipt{}, err
	}
	usdValue := new(big.Int).Mul(rawAmount, price)

	alloc, err := e.admitPurchase(usdValue)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	undo, err := e.creditPurchase(payer, alloc)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	if err := e.settleNative(payer, rawAmount, sentValue); err != nil {
		if restoreErr := undo(); restoreErr != nil {
			return PurchaseReceipt{}, fmt.Errorf("sale: rollback failed after transfer error %v: %w", err, restoreErr)
		}
		return PurchaseReceipt{}, err
	}

	receipt := PurchaseReceipt{
		ID:        uuid.NewString(),
		Payer:     payer,
		Asset:     NativeAsset,
		Paid:      new(big.Int).Set(rawAmount),
		USDValue:  usdValue,
		AmountA:   alloc.AmountA,
		AmountB:   alloc.AmountB,
		Timestamp: e.now().Unix(),
	}
	e.emitter.Emit(NewPurchasedEvent(receipt))
	return receipt, nil
}

// settleNative pulls the sent value into the sale account, forwards the
// purchase amount to the beneficiary and refunds any excess. Partial moves
// are compensated before the error is returned.
func (e *Engine) settleNative(payer common.Address, rawAmount, sentValue *big.Int) error {
	if err := e.native.Transfer(payer, e.saleAccount, sentValue); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.native.Transfer(e.saleAccount, e.cfg.Beneficiary, rawAmount); err != nil {
		if refundErr := e.native.Transfer(e.saleAccount, payer, sentValue); refundErr != nil {
			return fmt.Errorf("sale: refund failed after forward error %v: %w", err, refundErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	excess := new(big.Int).Sub(sentValue, rawAmount)
	if excess.Sign() > 0 {
		if err := e.native.Transfer(e.saleAccount, payer, excess); err != nil {
			return fmt.Errorf("%w: refund of excess: %v", ErrTransferFailed, err)
		}
	}
	return nil
}

// admitPurchase runs the shared purchase validations and derives the reward
// allocation for the given USD value.
func (e *Engine) admitPurchase(usdValue *big.Int) (Allocation, error) {
	state, err := e.ledger.State()
	if err != nil {
		return Allocation{}, err
	}
	if !state.Running {
		return Allocation{}, ErrSaleNotRunning
	}
	if state.Paused {
		return Allocation{}, ErrSalePaused
	}
	if usdValue.Cmp(e.cfg.MinUSD) < 0 {
		return Allocation{}, ErrBelowMinimum
	}
	if usdValue.Cmp(e.cfg.MaxUSD) > 0 {
		return Allocation{}, ErrAboveMaximum
	}
	alloc, err := Convert(usdValue, e.cfg.PriceA, e.cfg.PriceB)
	if err != nil {
		return Allocation{}, err
	}
	soldA, err := e.ledger.TotalSold(RewardTokenA)
	if err != nil {
		return Allocation{}, err
	}
	if new(big.Int).Add(soldA, alloc.AmountA).Cmp(e.cfg.CapA) > 0 {
		return Allocation{}, ErrCapExceeded
	}
	return alloc, nil
}

// creditPurchase applies the ledger writes for a purchase and returns an undo
// closure restoring the pre-images.
func (e *Engine) creditPurchase(payer common.Address, alloc Allocation) (func() error, error) {
	type preimage struct {
		token RewardToken
		sold  *big.Int
		ent   *Entitlement
	}
	pre := make([]preimage, 0, 2)
	for _, item := range []struct {
		token  RewardToken
		amount *big.Int
	}{
		{RewardTokenA, alloc.AmountA},
		{RewardTokenB, alloc.AmountB},
	} {
		sold, err := e.ledger.TotalSold(item.token)
		if err != nil {
			return nil, err
		}
		ent, err := e.ledger.Entitlement(payer, item.token)
		if err != nil {
			return nil, err
		}
		pre = append(pre, preimage{token: item.token, sold: sold, ent: ent.Clone()})
		if err := e.ledger.SetTotalSold(item.token, new(big.Int).Add(sold, item.amount)); err != nil {
			return nil, err
		}
		ent.Deposited = new(big.Int).Add(ent.Deposited, item.amount)
		if err := e.ledger.PutEntitlement(payer, item.token, ent); err != nil {
			return nil, err
		}
	}
	undo := func() error {
		for _, p := range pre {
			if err := e.ledger.SetTotalSold(p.token, p.sold); err != nil {
				return err
			}
			if err := e.ledger.PutEntitlement(payer, p.token, p.ent); err != nil {
				return err
			}
		}
		return nil
	}
	return undo, nil
}

// resolvePrice reads the oracle and reduces the round to a whole-dollar
// price, applying the optional staleness bound.
func (e *Engine) resolvePrice() (*big.Int, error) {
	round, err := e.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if e.maxPriceAge > 0 {
		age := e.now().Unix() - round.UpdatedAt
		if age < 0 || time.Duration(age)*time.Second > e.maxPriceAge {
			return nil, ErrStalePrice
		}
	}
	return latestPrice(round, e.cfg.FeedDecimals)
}

// StartClaim flips the one-way claim latch. The caller must be the owner and
// the sale account must already hold reward-token balances covering every
// sold entitlement for both tokens.
func (e *Engine) StartClaim(caller, tokenA, tokenB common.Address) error {
	if e == nil {
		return fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if caller != e.cfg.Owner {
		return ErrNotOwner
	}
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return ErrZeroAddress
	}
	state, err := e.ledger.State()
	if err != nil {
		return err
	}
	if state.ClaimStarted {
		return ErrClaimAlreadyStarted
	}
	if e.registry == nil {
		return ErrUnsupportedAsset
	}
	for _, binding := range []struct {
		token RewardToken
		addr  common.Address
	}{
		{RewardTokenA, tokenA},
		{RewardTokenB, tokenB},
	} {
		asset, ok := e.registry.Resolve(binding.addr)
		if !ok {
			return ErrUnsupportedAsset
		}
		sold, err := e.ledger.TotalSold(binding.token)
		if err != nil {
			return err
		}
		escrowed, err := asset.BalanceOf(e.saleAccount)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		required := scaleAmount(sold, 18, e.cfg.RewardDecimals)
		if escrowed == nil || escrowed.Cmp(required) < 0 {
			return ErrInsufficientEscrow
		}
	}
	state.ClaimStarted = true
	state.ClaimStartTime = e.now().Unix()
	state.RewardTokenA = tokenA
	state.RewardTokenB = tokenB
	if err := e.ledger.PutState(state); err != nil {
		return err
	}
	e.emitter.Emit(NewClaimPhaseStartedEvent(state))
	return nil
}

// Claim releases the vested portion of the caller's entitlement for one
// reward token and transfers it from the sale account.
func (e *Engine) Claim(participant common.Address, token RewardToken) (ClaimReceipt, error) {
	if e == nil {
		return ClaimReceipt{}, fmt.Errorf("sale: engine not configured")
	}
	if err := e.enter(); err != nil {
		return ClaimReceipt{}, err
	}
	defer e.leave()

	if participant == (common.Address{}) {
		return ClaimReceipt{}, ErrZeroAddress
	}
	if !token.Valid() {
		return ClaimReceipt{}, ErrUnsupportedAsset
	}
	state, err := e.ledger.State()
	if err != nil {
		return ClaimReceipt{}, err
	}
	if !state.ClaimStarted {
		return ClaimReceipt{}, ErrClaimNotStarted
	}
	if state.Paused {
		return ClaimReceipt{}, ErrSalePaused
	}
	addr := state.RewardTokenAddress(token)
	if addr == (common.Address{}) {
		return ClaimReceipt{}, ErrClaimNotStarted
	}
	if e.registry == nil {
		return ClaimReceipt{}, ErrUnsupportedAsset
	}
	asset, ok := e.registry.Resolve(addr)
	if !ok {
		return ClaimReceipt{}, ErrUnsupportedAsset
	}
	ent, err := e.ledger.Entitlement(participant, token)
	if err != nil {
		return ClaimReceipt{}, err
	}
	now := e.now().Unix()
	claimable, err := claimableAmount(ent, e.cfg.Schedule(token), state.ClaimStartTime, now)
	if err != nil {
		return ClaimReceipt{}, err
	}

	pre := ent.Clone()
	ent.Deposited = new(big.Int).Sub(ent.Deposited, claimable)
	ent.LastClaimAt = now
	if err := e.ledger.PutEntitlement(participant, token, ent); err != nil {
		return ClaimReceipt{}, err
	}
	payout := scaleAmount(claimable, 18, e.cfg.RewardDecimals)
	if err := asset.Transfer(e.saleAccount, participant, payout); err != nil {
		if restoreErr := e.ledger.PutEntitlement(participant, token, pre); restoreErr != nil {
			return ClaimReceipt{}, fmt.Errorf("sale: rollback failed after transfer error %v: %w", err, restoreErr)
		}
		return ClaimReceipt{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	receipt := ClaimReceipt{
		ID:          uuid.NewString(),
		Participant: participant,
		Token:       token,
		Amount:      claimable,
		Timestamp:   now,
	}
	e.emitter.Emit(NewClaimedEvent(receipt))
	return receipt, nil
}

// Status returns a copy of the persisted sale state.
func (e *Engine) Status() (*State, error) {
	if e == nil {
		return nil, fmt.Errorf("sale: engine not configured")
	}
	return e.ledger.State()
}

// TotalSold returns the cumulative entitlement issued for the token.
func (e *Engine) TotalSold(token RewardToken) (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("sale: engine not configured")
	}
	if !token.Valid() {
		return nil, ErrUnsupportedAsset
	}
	return e.ledger.TotalSold(token)
}

// EntitlementOf returns the participant's entitlement for the token.
func (e *Engine) EntitlementOf(participant common.Address, token RewardToken) (*Entitlement, error) {
	if e == nil {
		return nil, fmt.Errorf("sale: engine not configured")
	}
	if !token.Valid() {
		return nil, ErrUnsupportedAsset
	}
	return e.ledger.Entitlement(participant, token)
}

// Params returns the fixed sale configuration.
func (e *Engine) Params() Config {
	if e == nil {
		return Config{}
	}
	return e.cfg
}

// scaleAmount rescales an integer amount between decimal precisions,
// truncating toward zero when precision shrinks.
func scaleAmount(amount *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case to > from:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	case to < from:
		out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	}
	return out
}
