package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fryyyyy/zeekr-hass/internal/stats"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

func updateWith(level string, lat, lon float64) *Update {
	return &Update{
		Data: map[string]vehicle.Status{
			"VIN1": {
				"additionalVehicleStatus": map[string]any{
					"electricVehicleStatus": map[string]any{
						"chargeLevel": level,
					},
				},
				"basicVehicleStatus": map[string]any{
					"position": map[string]any{
						"latitude":  lat,
						"longitude": lon,
					},
				},
			},
		},
		PolledAt: time.Now(),
	}
}

func TestChangedNilHandling(t *testing.T) {
	assert.False(t, Changed(nil, nil))
	assert.True(t, Changed(nil, updateWith("50", 59.0, 18.0)))
	assert.True(t, Changed(updateWith("50", 59.0, 18.0), nil))
}

func TestChangedIgnoresBookkeeping(t *testing.T) {
	prev := updateWith("50", 59.0, 18.0)
	cur := updateWith("50", 59.0, 18.0)
	cur.PolledAt = prev.PolledAt.Add(5 * time.Minute)
	cur.Stats = stats.Counts{RequestsToday: 99}

	assert.False(t, Changed(prev, cur), "poll time and counters are not data changes")
}

func TestChangedDetectsValueChange(t *testing.T) {
	prev := updateWith("50", 59.0, 18.0)
	cur := updateWith("51", 59.0, 18.0)
	assert.True(t, Changed(prev, cur))
}

func TestChangedToleratesGPSJitter(t *testing.T) {
	prev := updateWith("50", 59.000000, 18.000000)
	// ~2 metres north
	cur := updateWith("50", 59.000018, 18.000000)
	assert.False(t, Changed(prev, cur))
}

func TestChangedDetectsRealMovement(t *testing.T) {
	prev := updateWith("50", 59.000, 18.000)
	cur := updateWith("50", 59.010, 18.000)
	assert.True(t, Changed(prev, cur))
}

func TestChangedDetectsNewVehicle(t *testing.T) {
	prev := updateWith("50", 59.0, 18.0)
	cur := updateWith("50", 59.0, 18.0)
	cur.Data["VIN2"] = vehicle.Status{}
	assert.True(t, Changed(prev, cur))
}
