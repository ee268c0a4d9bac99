package core

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"presale/core/events"
	"presale/native/sale"
	"presale/observability"
)

// Node serializes every sale entry point behind a single mutex so state
// transitions are totally ordered, and fans engine events out to the
// in-memory ring, the structured log, and the metrics registry.
type Node struct {
	mu     sync.Mutex
	engine *sale.Engine
	ring   *events.Ring
	log    *slog.Logger
}

// NewNode wires a node over the supplied engine. eventCapacity bounds the
// in-memory event ring.
func NewNode(engine *sale.Engine, logger *slog.Logger, eventCapacity int) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	ring := events.NewRing(eventCapacity)
	node := &Node{engine: engine, ring: ring, log: logger}
	engine.SetEmitter(events.Fanout{ring, logEmitter{log: logger}})
	return node
}

type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for k, v := range evt.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	l.log.Info(evt.Type, attrs...)
}

// PurchaseWithStable settles a stablecoin purchase.
func (n *Node) PurchaseWithStable(payer common.Address, symbol string, rawAmount *big.Int) (sale.PurchaseReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	receipt, err := n.engine.PurchaseWithStable(payer, symbol, rawAmount)
	observability.SaleMetrics().ObservePurchase(symbol, err == nil, usdWei(receipt.USDValue))
	return receipt, err
}

// PurchaseWithNative settles a native-value purchase.
func (n *Node) PurchaseWithNative(payer common.Address, rawAmount, sentValue *big.Int) (sale.PurchaseReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	receipt, err := n.engine.PurchaseWithNative(payer, rawAmount, sentValue)
	observability.SaleMetrics().ObservePurchase(sale.NativeAsset, err == nil, usdWei(receipt.USDValue))
	return receipt, err
}

// Claim releases the vested portion of the participant's entitlement.
func (n *Node) Claim(participant common.Address, token sale.RewardToken) (sale.ClaimReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	receipt, err := n.engine.Claim(participant, token)
	observability.SaleMetrics().ObserveClaim(token.String(), err == nil)
	return receipt, err
}

// SetRunning toggles whether purchases are admitted.
func (n *Node) SetRunning(caller common.Address, running bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.SetRunning(caller, running)
}

// Pause halts purchases and claims.
func (n *Node) Pause(caller common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.Pause(caller)
	if err == nil {
		observability.SaleMetrics().SetPaused(true)
	}
	return err
}

// Unpause resumes purchases and claims.
func (n *Node) Unpause(caller common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.Unpause(caller)
	if err == nil {
		observability.SaleMetrics().SetPaused(false)
	}
	return err
}

// StartClaim flips the one-way claim latch.
func (n *Node) StartClaim(caller, tokenA, tokenB common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.StartClaim(caller, tokenA, tokenB)
}

// Status returns the current sale state.
func (n *Node) Status() (*sale.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Status()
}

// TotalSold returns the cumulative entitlement issued for the token.
func (n *Node) TotalSold(token sale.RewardToken) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.TotalSold(token)
}

// EntitlementOf returns the participant's entitlement for the token.
func (n *Node) EntitlementOf(participant common.Address, token sale.RewardToken) (*sale.Entitlement, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.EntitlementOf(participant, token)
}

// Params returns the fixed sale configuration.
func (n *Node) Params() sale.Config {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Params()
}

// Events returns up to limit of the most recent events, oldest first. A
// non-positive limit returns everything retained.
func (n *Node) Events(limit int) []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	all := n.ring.Events()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func usdWei(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
