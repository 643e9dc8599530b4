package schedule

import (
	"fmt"
	"time"
)

type Slot string

const (
	SlotMorning Slot = "morning"
	SlotMidday  Slot = "midday"
	SlotEvening Slot = "evening"
)

// SlotConfig is the static, immutable configuration of one daily send
// window. Exactly one slot carries AllowStaleFallback: the morning
// digest goes out even when content gating says skip.
type SlotConfig struct {
	Slot             Slot
	JobName          string
	NotificationType string

	// LookBack bounds the freshness count window.
	LookBack time.Duration

	// MinFreshItems is the smallest in-window count that still counts
	// as fresh.
	MinFreshItems int

	AllowStaleFallback bool
}

var slotConfigs = map[Slot]SlotConfig{
	SlotMorning: {
		Slot:               SlotMorning,
		JobName:            "email-timeslot-morning",
		NotificationType:   "digest_morning",
		LookBack:           12 * time.Hour,
		MinFreshItems:      1,
		AllowStaleFallback: true,
	},
	SlotMidday: {
		Slot:             SlotMidday,
		JobName:          "email-timeslot-midday",
		NotificationType: "digest_midday",
		LookBack:         4 * time.Hour,
		MinFreshItems:    2,
	},
	SlotEvening: {
		Slot:             SlotEvening,
		JobName:          "email-timeslot-evening",
		NotificationType: "digest_evening",
		LookBack:         6 * time.Hour,
		MinFreshItems:    2,
	},
}

func SlotConfigFor(slot Slot) (SlotConfig, error) {
	cfg, ok := slotConfigs[slot]
	if !ok {
		return SlotConfig{}, fmt.Errorf("unknown time slot: %q", slot)
	}
	return cfg, nil
}

// SlotConfigByNotificationType maps a delivery record's notification
// type back to its slot.
func SlotConfigByNotificationType(notificationType string) (SlotConfig, error) {
	for _, cfg := range slotConfigs {
		if cfg.NotificationType == notificationType {
			return cfg, nil
		}
	}
	return SlotConfig{}, fmt.Errorf("no slot owns notification type %q", notificationType)
}

func AllSlots() []SlotConfig {
	return []SlotConfig{
		slotConfigs[SlotMorning],
		slotConfigs[SlotMidday],
		slotConfigs[SlotEvening],
	}
}
