package sale

import (
	"fmt"
	"strconv"

	"presale/core/events"
)

const (
	EventTypePurchased         = "sale.purchased"
	EventTypeClaimed           = "sale.claimed"
	EventTypeClaimPhaseStarted = "sale.claim_phase_started"
	EventTypeRunningChanged    = "sale.running_changed"
	EventTypePaused            = "sale.paused"
	EventTypeUnpaused          = "sale.unpaused"
)

// NewPurchasedEvent emits the canonical payload for a settled purchase.
func NewPurchasedEvent(r PurchaseReceipt) events.Event {
	attrs := map[string]string{
		"id":        r.ID,
		"payer":     r.Payer.Hex(),
		"asset":     r.Asset,
		"timestamp": strconv.FormatInt(r.Timestamp, 10),
	}
	if r.Paid != nil {
		attrs["paid"] = r.Paid.String()
	}
	if r.USDValue != nil {
		attrs["usdValue"] = r.USDValue.String()
	}
	if r.AmountA != nil {
		attrs["amountA"] = r.AmountA.String()
	}
	if r.AmountB != nil {
		attrs["amountB"] = r.AmountB.String()
	}
	return events.Event{Type: EventTypePurchased, Attributes: attrs}
}

// NewClaimedEvent emits the payload for a settled claim.
func NewClaimedEvent(r ClaimReceipt) events.Event {
	attrs := map[string]string{
		"id":          r.ID,
		"participant": r.Participant.Hex(),
		"token":       r.Token.String(),
		"timestamp":   strconv.FormatInt(r.Timestamp, 10),
	}
	if r.Amount != nil {
		attrs["amount"] = r.Amount.String()
	}
	return events.Event{Type: EventTypeClaimed, Attributes: attrs}
}

// NewClaimPhaseStartedEvent emits the payload for the one-way claim latch.
func NewClaimPhaseStartedEvent(state *State) events.Event {
	if state == nil {
		return events.Event{Type: EventTypeClaimPhaseStarted, Attributes: map[string]string{}}
	}
	return events.Event{
		Type: EventTypeClaimPhaseStarted,
		Attributes: map[string]string{
			"claimStartTime": strconv.FormatInt(state.ClaimStartTime, 10),
			"rewardTokenA":   state.RewardTokenA.Hex(),
			"rewardTokenB":   state.RewardTokenB.Hex(),
		},
	}
}

// NewRunningChangedEvent emits the payload for a running toggle.
func NewRunningChangedEvent(running bool, at int64) events.Event {
	return events.Event{
		Type: EventTypeRunningChanged,
		Attributes: map[string]string{
			"running":   fmt.Sprintf("%t", running),
			"timestamp": strconv.FormatInt(at, 10),
		},
	}
}

// NewPauseEvent emits the payload for a pause or unpause transition.
func NewPauseEvent(paused bool, at int64) events.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return events.Event{
		Type:       eventType,
		Attributes: map[string]string{"timestamp": strconv.FormatInt(at, 10)},
	}
}
