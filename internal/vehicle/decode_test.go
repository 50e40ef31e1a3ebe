package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statusWith(group, field string, val any) Status {
	return Status{
		"additionalVehicleStatus": map[string]any{
			group: map[string]any{field: val},
		},
	}
}

func TestLockFieldDecoding(t *testing.T) {
	in := DefaultInterpretations()

	// "1" on a plain lock field means locked.
	st := statusWith("drivingSafetyStatus", "trunkLockStatus", "1")
	assert.Equal(t, On, in.Decode(st, "drivingSafetyStatus", "trunkLockStatus"))

	st = statusWith("drivingSafetyStatus", "trunkLockStatus", "0")
	assert.Equal(t, Off, in.Decode(st, "drivingSafetyStatus", "trunkLockStatus"))

	// "1" on an *OpenStatus field means open, so the lock view inverts.
	st = statusWith("drivingSafetyStatus", "engineHoodOpenStatus", "1")
	assert.Equal(t, Off, in.Decode(st, "drivingSafetyStatus", "engineHoodOpenStatus"))

	st = statusWith("drivingSafetyStatus", "engineHoodOpenStatus", "0")
	assert.Equal(t, On, in.Decode(st, "drivingSafetyStatus", "engineHoodOpenStatus"))
}

func TestAbsentFieldIsUnknown(t *testing.T) {
	in := DefaultInterpretations()
	st := Status{}

	v := in.Decode(st, "drivingSafetyStatus", "centralLockingStatus")
	assert.Equal(t, Unknown, v)

	_, known := v.Bool()
	assert.False(t, known)
}

func TestNumericCodesDecodeLikeStrings(t *testing.T) {
	in := DefaultInterpretations()

	// The cloud sometimes sends codes as JSON numbers.
	st := statusWith("drivingSafetyStatus", "doorLockStatusDriver", float64(1))
	assert.Equal(t, On, in.Decode(st, "drivingSafetyStatus", "doorLockStatusDriver"))
}

func TestChargerStateCodes(t *testing.T) {
	in := DefaultInterpretations()

	for _, code := range []string{"1", "2"} {
		st := statusWith("electricVehicleStatus", "chargerState", code)
		assert.Equal(t, On, in.Decode(st, "electricVehicleStatus", "chargerState"), "code %s", code)
	}

	st := statusWith("electricVehicleStatus", "chargerState", "0")
	assert.Equal(t, Off, in.Decode(st, "electricVehicleStatus", "chargerState"))
}

func TestCurtainCodes(t *testing.T) {
	in := DefaultInterpretations()

	st := statusWith("climateStatus", "curtainOpenStatus", "2")
	assert.Equal(t, On, in.Decode(st, "climateStatus", "curtainOpenStatus"))

	st = statusWith("climateStatus", "curtainOpenStatus", "1")
	assert.Equal(t, Off, in.Decode(st, "climateStatus", "curtainOpenStatus"))

	st = statusWith("climateStatus", "curtainOpenStatus", "7")
	assert.Equal(t, Unknown, in.Decode(st, "climateStatus", "curtainOpenStatus"))
}

func TestOverrideReplacesGuessedMapping(t *testing.T) {
	in := DefaultInterpretations()
	in.Override("electricVehicleStatus", "chargerState", func(raw string) Tribool {
		if raw == "3" {
			return On
		}
		return Off
	})

	st := statusWith("electricVehicleStatus", "chargerState", "3")
	assert.Equal(t, On, in.Decode(st, "electricVehicleStatus", "chargerState"))

	st = statusWith("electricVehicleStatus", "chargerState", "1")
	assert.Equal(t, Off, in.Decode(st, "electricVehicleStatus", "chargerState"))
}
