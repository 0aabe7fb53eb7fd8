package inventory

import (
	"context"

	"locked-study/server/logging"
)

const (
	// EventItemPicked is emitted when an item enters the shared inventory.
	EventItemPicked logging.EventType = "inventory.item_picked"
	// EventItemsCombined is emitted when key pieces become the master key.
	EventItemsCombined logging.EventType = "inventory.items_combined"
	// EventItemUsed is emitted when a held item is applied to an object.
	EventItemUsed logging.EventType = "inventory.item_used"
	// EventActionRejected is emitted when an inventory action fails a rule.
	EventActionRejected logging.EventType = "inventory.action_rejected"
)

// ItemPayload names an item.
type ItemPayload struct {
	ItemID string `json:"itemId"`
}

// CombinedPayload lists the consumed and produced items.
type CombinedPayload struct {
	Consumed []string `json:"consumed"`
	Produced string   `json:"produced"`
}

// UsedPayload describes an item applied to a target.
type UsedPayload struct {
	ItemID   string `json:"itemId"`
	TargetID string `json:"targetId"`
	Effect   string `json:"effect"`
}

// RejectedPayload records why an inventory action failed.
type RejectedPayload struct {
	Action string `json:"action"`
	ItemID string `json:"itemId,omitempty"`
	Reason string `json:"reason"`
}

func itemTarget(id string) []logging.EntityRef {
	if id == "" {
		return nil
	}
	return []logging.EntityRef{{ID: id, Kind: logging.EntityKindItem}}
}

// ItemPicked publishes an item pickup.
func ItemPicked(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventItemPicked,
		Tick:     tick,
		Actor:    actor,
		Targets:  itemTarget(payload.ItemID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	})
}

// ItemsCombined publishes the key recipe.
func ItemsCombined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CombinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventItemsCombined,
		Tick:     tick,
		Actor:    actor,
		Targets:  itemTarget(payload.Produced),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	})
}

// ItemUsed publishes an item use.
func ItemUsed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload UsedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventItemUsed,
		Tick:     tick,
		Actor:    actor,
		Targets:  itemTarget(payload.ItemID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	})
}

// ActionRejected publishes a warning for a failed inventory rule.
func ActionRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventActionRejected,
		Tick:     tick,
		Actor:    actor,
		Targets:  itemTarget(payload.ItemID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	})
}
