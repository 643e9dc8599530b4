package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curbwise/alerts-api/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestEligibleForTierDefaults(t *testing.T) {
	free := &model.Subscriber{Email: "free@x.com", Tier: model.TierFree}
	pro := &model.Subscriber{Email: "pro@x.com", Tier: model.TierPro}

	assert.True(t, EligibleFor(free, SlotMorning))
	assert.False(t, EligibleFor(free, SlotMidday))
	assert.False(t, EligibleFor(free, SlotEvening))

	assert.True(t, EligibleFor(pro, SlotMorning))
	assert.True(t, EligibleFor(pro, SlotMidday))
	assert.True(t, EligibleFor(pro, SlotEvening))
}

func TestEligibleForOverrideBeatsTier(t *testing.T) {
	// Free user opted into evening; pro user opted out of morning.
	free := &model.Subscriber{
		Email:       "free@x.com",
		Tier:        model.TierFree,
		SlotEvening: boolPtr(true),
	}
	pro := &model.Subscriber{
		Email:       "pro@x.com",
		Tier:        model.TierPro,
		SlotMorning: boolPtr(false),
	}

	assert.True(t, EligibleFor(free, SlotEvening))
	assert.False(t, EligibleFor(pro, SlotMorning))
	assert.True(t, EligibleFor(pro, SlotMidday), "other slots keep the tier default")
}

func TestEligibleForExplicitOptOutOfDefaultSlot(t *testing.T) {
	free := &model.Subscriber{
		Email:       "free@x.com",
		Tier:        model.TierFree,
		SlotMorning: boolPtr(false),
	}
	assert.False(t, EligibleFor(free, SlotMorning))
}

func TestResolvedSlots(t *testing.T) {
	sub := &model.Subscriber{
		Email:       "free@x.com",
		Tier:        model.TierFree,
		SlotMidday:  boolPtr(true),
		SlotMorning: boolPtr(false),
	}
	assert.Equal(t, []Slot{SlotMidday}, ResolvedSlots(sub))
}
