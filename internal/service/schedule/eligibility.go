package schedule

import (
	"github.com/curbwise/alerts-api/internal/model"
)

// EligibleFor resolves whether a subscriber receives the given slot.
// An explicit per-user override always wins; otherwise the tier default
// applies: free tier gets morning only, pro tier gets every slot.
func EligibleFor(sub *model.Subscriber, slot Slot) bool {
	if override := slotOverride(sub, slot); override != nil {
		return *override
	}

	switch sub.Tier {
	case model.TierPro:
		return true
	default:
		return slot == SlotMorning
	}
}

// ResolvedSlots lists every slot the subscriber would receive. Used by
// the admin surface; the send loop only ever asks about one slot.
func ResolvedSlots(sub *model.Subscriber) []Slot {
	var slots []Slot
	for _, cfg := range AllSlots() {
		if EligibleFor(sub, cfg.Slot) {
			slots = append(slots, cfg.Slot)
		}
	}
	return slots
}

func slotOverride(sub *model.Subscriber, slot Slot) *bool {
	switch slot {
	case SlotMorning:
		return sub.SlotMorning
	case SlotMidday:
		return sub.SlotMidday
	case SlotEvening:
		return sub.SlotEvening
	}
	return nil
}
