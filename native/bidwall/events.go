package bidwall

import (
	"rampart/core/events"
	"rampart/core/types"
)

const (
	// EventTypeDepositReceived is emitted when swap fees are credited to a wall.
	EventTypeDepositReceived = "bidwall.deposit.received"
	// EventTypeWallInitialized is emitted the first time a pool's wall deploys liquidity.
	EventTypeWallInitialized = "bidwall.wall.initialized"
	// EventTypeWallRepositioned is emitted when a wall is moved back against spot.
	EventTypeWallRepositioned = "bidwall.wall.repositioned"
	// EventTypeRewardsTransferred is emitted when realized gains are forwarded to a treasury.
	EventTypeRewardsTransferred = "bidwall.rewards.transferred"
	// EventTypeWallClosed is emitted when a wall's holdings are swept to the treasury.
	EventTypeWallClosed = "bidwall.wall.closed"
	// EventTypeWallDisabled is emitted when a creator toggles a wall's disabled flag.
	EventTypeWallDisabled = "bidwall.wall.disabled"
	// EventTypeThresholdUpdated is emitted when the owner retunes the fee threshold.
	EventTypeThresholdUpdated = "bidwall.params.threshold_updated"
	// EventTypeStaleWindowUpdated is emitted when the owner retunes the staleness window.
	EventTypeStaleWindowUpdated = "bidwall.params.stale_window_updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// DepositReceivedEvent returns the structured payload for a fee deposit.
func DepositReceivedEvent(pool string, amount string, pendingTotal string) *types.Event {
	return &types.Event{
		Type: EventTypeDepositReceived,
		Attributes: map[string]string{
			"pool":         pool,
			"amount":       amount,
			"pendingTotal": pendingTotal,
		},
	}
}

// WallInitializedEvent records the first liquidity deployment for a pool.
func WallInitializedEvent(pool string, nativeAmount string, tickLower string, tickUpper string) *types.Event {
	return &types.Event{
		Type: EventTypeWallInitialized,
		Attributes: map[string]string{
			"pool":         pool,
			"nativeAmount": nativeAmount,
			"tickLower":    tickLower,
			"tickUpper":    tickUpper,
		},
	}
}

// WallRepositionedEvent records a completed reposition.
func WallRepositionedEvent(pool string, trigger string, nativeAmount string, tickLower string, tickUpper string) *types.Event {
	return &types.Event{
		Type: EventTypeWallRepositioned,
		Attributes: map[string]string{
			"pool":         pool,
			"trigger":      trigger,
			"nativeAmount": nativeAmount,
			"tickLower":    tickLower,
			"tickUpper":    tickUpper,
		},
	}
}

// RewardsTransferredEvent records non-native holdings forwarded to a treasury.
func RewardsTransferredEvent(pool string, token string, recipient string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsTransferred,
		Attributes: map[string]string{
			"pool":      pool,
			"token":     token,
			"recipient": recipient,
			"amount":    amount,
		},
	}
}

// WallClosedEvent records a wall teardown and the native amount swept.
func WallClosedEvent(pool string, recipient string, nativeAmount string) *types.Event {
	return &types.Event{
		Type: EventTypeWallClosed,
		Attributes: map[string]string{
			"pool":         pool,
			"recipient":    recipient,
			"nativeAmount": nativeAmount,
		},
	}
}

// WallDisabledEvent records a change to the disabled flag.
func WallDisabledEvent(pool string, disabled string) *types.Event {
	return &types.Event{
		Type: EventTypeWallDisabled,
		Attributes: map[string]string{
			"pool":     pool,
			"disabled": disabled,
		},
	}
}

// ThresholdUpdatedEvent records a retuned swap-fee threshold.
func ThresholdUpdatedEvent(amount string) *types.Event {
	return &types.Event{
		Type: EventTypeThresholdUpdated,
		Attributes: map[string]string{
			"amount": amount,
		},
	}
}

// StaleWindowUpdatedEvent records a retuned staleness window.
func StaleWindowUpdatedEvent(seconds string) *types.Event {
	return &types.Event{
		Type: EventTypeStaleWindowUpdated,
		Attributes: map[string]string{
			"seconds": seconds,
		},
	}
}
