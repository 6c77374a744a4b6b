package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TriggerKind identifies when a task becomes eligible for execution.
type TriggerKind string

const (
	// TriggerImmediate executes as soon as the intent is confirmed.
	TriggerImmediate TriggerKind = "immediate"
	// TriggerPrice executes when the observed price crosses the target.
	TriggerPrice TriggerKind = "price"
	// TriggerTime executes once StartAt has passed.
	TriggerTime TriggerKind = "time"
)

// PriceDirection is the side of the target price that satisfies the trigger.
type PriceDirection string

const (
	PriceUnder PriceDirection = "under"
	PriceOver  PriceDirection = "over"
)

// Trigger describes the condition gating a deferred task.
type Trigger struct {
	Kind        TriggerKind     `json:"kind"`
	Direction   PriceDirection  `json:"direction,omitempty"`
	TargetPrice decimal.Decimal `json:"target_price,omitempty"`
	StartAt     time.Time       `json:"start_at,omitempty"`
}

// Immediate returns a trigger that fires right away.
func Immediate() Trigger {
	return Trigger{Kind: TriggerImmediate}
}

// PriceTrigger returns a trigger that fires when the watched asset's price
// crosses target in the given direction.
func PriceTrigger(direction PriceDirection, target decimal.Decimal) Trigger {
	return Trigger{Kind: TriggerPrice, Direction: direction, TargetPrice: target}
}

// TimeTrigger returns a trigger that fires once startAt has passed.
func TimeTrigger(startAt time.Time) Trigger {
	return Trigger{Kind: TriggerTime, StartAt: startAt}
}

// WatchedMint returns the mint whose price the trigger observes. An "under"
// trigger waits for an entry price on the asset being bought; an "over"
// trigger waits for an exit price on the asset being sold.
func (t Trigger) WatchedMint(swap ResolvedSwap) string {
	if t.Direction == PriceUnder {
		return swap.OutputMint
	}
	return swap.InputMint
}

// Satisfied reports whether an observed price meets the trigger condition.
// Only meaningful for price triggers.
func (t Trigger) Satisfied(price decimal.Decimal) bool {
	switch t.Direction {
	case PriceUnder:
		return price.LessThan(t.TargetPrice)
	case PriceOver:
		return price.GreaterThan(t.TargetPrice)
	default:
		return false
	}
}

// Describe renders the trigger for confirmation prompts and logs.
func (t Trigger) Describe() string {
	switch t.Kind {
	case TriggerPrice:
		return fmt.Sprintf("when price is %s %s", t.Direction, t.TargetPrice.String())
	case TriggerTime:
		return fmt.Sprintf("starting at %s", t.StartAt.UTC().Format(time.RFC3339))
	default:
		return "immediately"
	}
}
