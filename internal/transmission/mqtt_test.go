package transmission

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fryyyyy/zeekr-hass/internal/domain"
	"github.com/fryyyyy/zeekr-hass/internal/entities"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

type publication struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu           sync.Mutex
	publications []publication
	offline      bool
}

func (f *fakePublisher) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publications = append(f.publications, publication{topic, payload, retained})
	return nil
}

func (f *fakePublisher) IsConnected() bool { return !f.offline }

func (f *fakePublisher) topics(substr string) []publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publication
	for _, p := range f.publications {
		if strings.Contains(p.topic, substr) {
			out = append(out, p)
		}
	}
	return out
}

func testUpdate() *domain.Update {
	return &domain.Update{
		Data: map[string]vehicle.Status{
			"VIN1": {
				"additionalVehicleStatus": map[string]any{
					"electricVehicleStatus": map[string]any{
						"chargeLevel": "55",
					},
				},
				"basicVehicleStatus": map[string]any{
					"position": map[string]any{
						"latitude":  59123456.0,
						"longitude": 18123456.0,
					},
				},
			},
		},
		Models:   map[string]string{"VIN1": "Zeekr X"},
		PolledAt: time.Now(),
	}
}

func newTestTransmitter(t *testing.T) (*MQTTTransmitter, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	table := entities.Table(vehicle.DefaultInterpretations())
	return NewMQTTTransmitter(pub, "homeassistant", table, logrus.New()), pub
}

func TestTransmitFailsWhenDisconnected(t *testing.T) {
	tx, pub := newTestTransmitter(t)
	pub.offline = true
	assert.Error(t, tx.Transmit(testUpdate()))
}

func TestTransmitPublishesDiscoveryOnce(t *testing.T) {
	tx, pub := newTestTransmitter(t)

	require.NoError(t, tx.Transmit(testUpdate()))
	first := len(pub.topics("/config"))
	assert.Greater(t, first, 20, "one discovery config per entity plus tracker")

	require.NoError(t, tx.Transmit(testUpdate()))
	assert.Equal(t, first, len(pub.topics("/config")), "discovery is not republished")
}

func TestStatePayloadSkipsUnknownValues(t *testing.T) {
	tx, pub := newTestTransmitter(t)
	require.NoError(t, tx.Transmit(testUpdate()))

	states := pub.topics("zeekr/VIN1/state")
	require.Len(t, states, 1)
	assert.True(t, states[0].retained)

	var state map[string]any
	require.NoError(t, json.Unmarshal(states[0].payload, &state))
	assert.Equal(t, 55.0, state["battery_level"])
	_, hasVoltage := state["charge_voltage"]
	assert.False(t, hasVoltage, "unknown values are omitted")
	// Climate template keys come from state-only table rows.
	assert.Equal(t, "off", state["climate_mode"])
}

func TestLocationIsNormalizedFromMicroDegrees(t *testing.T) {
	tx, pub := newTestTransmitter(t)
	require.NoError(t, tx.Transmit(testUpdate()))

	locs := pub.topics("zeekr/VIN1/location")
	require.Len(t, locs, 1)

	var loc map[string]any
	require.NoError(t, json.Unmarshal(locs[0].payload, &loc))
	assert.InDelta(t, 59.123456, loc["latitude"].(float64), 1e-9)
	assert.InDelta(t, 18.123456, loc["longitude"].(float64), 1e-9)
}

func TestAvailabilityAndDiagnosticsPublished(t *testing.T) {
	tx, pub := newTestTransmitter(t)
	require.NoError(t, tx.Transmit(testUpdate()))

	avail := pub.topics("zeekr/VIN1/availability")
	require.Len(t, avail, 1)
	assert.Equal(t, "online", string(avail[0].payload))

	bridge := pub.topics("zeekr/bridge/state")
	require.Len(t, bridge, 1)
}

func TestClimateDiscoveryCarriesTemplates(t *testing.T) {
	tx, pub := newTestTransmitter(t)
	require.NoError(t, tx.Transmit(testUpdate()))

	configs := pub.topics("climate/zeekr_vin1/climate/config")
	require.Len(t, configs, 1)

	var config map[string]any
	require.NoError(t, json.Unmarshal(configs[0].payload, &config))
	assert.Equal(t, "zeekr/VIN1/climate/mode/set", config["mode_command_topic"])
	assert.Equal(t, "zeekr/VIN1/climate/temp/set", config["temperature_command_topic"])
	assert.Equal(t, "{{ value_json.climate_mode }}", config["mode_state_template"])
	_, hasPlainCommand := config["command_topic"]
	assert.False(t, hasPlainCommand)
}
