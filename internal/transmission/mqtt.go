package transmission

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fryyyyy/zeekr-hass/internal/domain"
	"github.com/fryyyyy/zeekr-hass/internal/entities"
	"github.com/fryyyyy/zeekr-hass/internal/mqtt"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// ResetStatsTopic is the command topic of the bridge's daily-counter reset
// button.
const ResetStatsTopic = mqtt.BaseTopic + "/bridge/reset_stats/set"

// Publisher is the publish-side MQTT surface the transmitter needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}

// MQTTTransmitter publishes Home Assistant discovery configs, per-vehicle
// state payloads, location documents and bridge diagnostics.
type MQTTTransmitter struct {
	client          Publisher
	discoveryPrefix string
	table           []entities.Entity
	logger          *logrus.Logger
	published       map[string]bool // discovery configs already sent
}

// haDevice is the device block shared by all discovery configs of one
// vehicle.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer"`
}

// NewMQTTTransmitter creates a transmitter over the given entity table.
func NewMQTTTransmitter(client Publisher, discoveryPrefix string, table []entities.Entity, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		table:           table,
		logger:          logger,
		published:       make(map[string]bool),
	}
}

// Transmit publishes one update: discovery configs on first sight of a VIN,
// then state, location and availability per vehicle, then bridge
// diagnostics.
func (t *MQTTTransmitter) Transmit(update *domain.Update) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	for vin, st := range update.Data {
		if err := t.publishDiscoveryConfigs(vin, update.Models[vin]); err != nil {
			t.logger.WithError(err).WithField("vin", vin).Error("Failed to publish discovery configs")
		}
		if err := t.publishState(vin, st); err != nil {
			return fmt.Errorf("state for %s: %w", vin, err)
		}
		if err := t.publishLocation(vin, st); err != nil {
			t.logger.WithError(err).WithField("vin", vin).Warn("Failed to publish location")
		}
		if err := t.client.Publish(mqtt.VehicleTopic(vin, "availability"), []byte("online"), true); err != nil {
			return fmt.Errorf("availability for %s: %w", vin, err)
		}
	}

	if err := t.publishDiagnostics(update); err != nil {
		t.logger.WithError(err).Warn("Failed to publish bridge diagnostics")
	}

	t.logger.WithField("vehicles", len(update.Data)).Debug("Update transmitted")
	return nil
}

// StatePayload renders the per-vehicle state document: one key per entity
// with a known value. Unknown values are omitted so Home Assistant keeps
// the previous reading instead of flapping to a default.
func (t *MQTTTransmitter) StatePayload(st vehicle.Status) map[string]any {
	state := make(map[string]any)
	for _, e := range t.table {
		if e.Value == nil {
			continue
		}
		if v := e.Value(st); v != nil {
			state[e.ID] = v
		}
	}
	return state
}

func (t *MQTTTransmitter) publishState(vin string, st vehicle.Status) error {
	payload, err := json.Marshal(t.StatePayload(st))
	if err != nil {
		return fmt.Errorf("failed to build state payload: %w", err)
	}

	topic := mqtt.VehicleTopic(vin, "state")
	if err := t.client.Publish(topic, payload, true); err != nil {
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"topic": topic,
		"size":  len(payload),
	}).Debug("Published vehicle state")
	return nil
}

func (t *MQTTTransmitter) publishLocation(vin string, st vehicle.Status) error {
	lat, latOK := st.Float("basicVehicleStatus", "position", "latitude")
	lon, lonOK := st.Float("basicVehicleStatus", "position", "longitude")
	if !latOK || !lonOK {
		return nil
	}

	payload := map[string]any{
		"latitude":  normalizeCoordinate(lat),
		"longitude": normalizeCoordinate(lon),
	}
	if alt, ok := st.Float("basicVehicleStatus", "position", "altitude"); ok {
		payload["altitude"] = alt
	}
	if speed, ok := st.Float("basicVehicleStatus", "speed"); ok {
		payload["speed"] = speed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	return t.client.Publish(mqtt.VehicleTopic(vin, "location"), body, false)
}

// normalizeCoordinate handles coordinates delivered as micro-degrees, which
// the cloud uses interchangeably with plain degrees.
func normalizeCoordinate(v float64) float64 {
	if math.Abs(v) > 360 {
		return v / 1e6
	}
	return v
}

func (t *MQTTTransmitter) publishDiscoveryConfigs(vin, model string) error {
	device := haDevice{
		Identifiers:  []string{"zeekr_" + strings.ToLower(vin)},
		Name:         "Zeekr " + vin,
		Model:        model,
		Manufacturer: "Zeekr",
	}

	for _, e := range t.table {
		if e.Component == "" {
			continue // state-only row, no discovery entry of its own
		}
		key := vin + "_" + e.ID
		if t.published[key] {
			continue
		}
		config := t.discoveryConfig(e, vin, device)
		topic := mqtt.DiscoveryTopic(t.discoveryPrefix, e.Component, vin, e.ID)
		if err := t.publishConfigRaw(topic, config); err != nil {
			return fmt.Errorf("discovery for %s: %w", e.ID, err)
		}
		t.published[key] = true
	}

	trackerKey := vin + "_tracker"
	if !t.published[trackerKey] {
		if err := t.publishDeviceTrackerDiscovery(vin, device); err != nil {
			return fmt.Errorf("device tracker discovery: %w", err)
		}
		t.published[trackerKey] = true
	}
	return nil
}

// discoveryConfig builds the Home Assistant discovery document for one
// entity. Component-specific keys (climate templates, command topics) are
// layered over a common base; static extras come from the entity row itself.
func (t *MQTTTransmitter) discoveryConfig(e entities.Entity, vin string, device haDevice) map[string]any {
	stateTopic := mqtt.VehicleTopic(vin, "state")
	config := map[string]any{
		"name":               e.Name,
		"unique_id":          "zeekr_" + strings.ToLower(vin) + "_" + e.ID,
		"availability_topic": mqtt.VehicleTopic(vin, "availability"),
		"device":             device,
	}

	if e.Value != nil {
		config["state_topic"] = stateTopic
		config["value_template"] = fmt.Sprintf("{{ value_json.%s }}", e.ID)
	}
	if e.Command != nil && e.Component != "climate" {
		config["command_topic"] = mqtt.VehicleTopic(vin, e.ID, "set")
	}

	switch e.Component {
	case "climate":
		config["mode_state_topic"] = stateTopic
		config["mode_state_template"] = "{{ value_json.climate_mode }}"
		config["mode_command_topic"] = mqtt.VehicleTopic(vin, e.ID, "mode", "set")
		config["temperature_state_topic"] = stateTopic
		config["temperature_state_template"] = "{{ value_json.climate_target_temp }}"
		config["temperature_command_topic"] = mqtt.VehicleTopic(vin, e.ID, "temp", "set")
		config["current_temperature_topic"] = stateTopic
		config["current_temperature_template"] = "{{ value_json.interior_temp }}"
		config["temperature_unit"] = "C"
	case "cover":
		config["state_open"] = "open"
		config["state_closed"] = "closed"
	}

	if e.DeviceClass != "" {
		config["device_class"] = e.DeviceClass
	}
	if e.Unit != "" {
		config["unit_of_measurement"] = e.Unit
	}
	if e.StateClass != "" {
		config["state_class"] = e.StateClass
	}
	if e.Icon != "" {
		config["icon"] = e.Icon
	}
	if e.Category != "" {
		config["entity_category"] = e.Category
	}
	for k, v := range e.Config {
		config[k] = v
	}
	return config
}

func (t *MQTTTransmitter) publishDeviceTrackerDiscovery(vin string, device haDevice) error {
	config := map[string]any{
		"name":                  "Location",
		"unique_id":             "zeekr_" + strings.ToLower(vin) + "_location",
		"json_attributes_topic": mqtt.VehicleTopic(vin, "location"),
		"source_type":           "gps",
		"device":                device,
		"availability_topic":    mqtt.VehicleTopic(vin, "availability"),
	}
	topic := mqtt.DiscoveryTopic(t.discoveryPrefix, "device_tracker", vin, "location")
	return t.publishConfigRaw(topic, config)
}

// publishDiagnostics exposes the bridge's own request counters as diagnostic
// sensors under a synthetic bridge device.
func (t *MQTTTransmitter) publishDiagnostics(update *domain.Update) error {
	device := haDevice{
		Identifiers:  []string{"zeekr_bridge"},
		Name:         "Zeekr Bridge",
		Manufacturer: "Zeekr",
	}

	diagnostics := []struct {
		id, name string
	}{
		{"api_requests_today", "API Requests Today"},
		{"api_invokes_today", "API Invokes Today"},
		{"api_requests_total", "API Requests Total"},
		{"api_invokes_total", "API Invokes Total"},
	}
	for _, d := range diagnostics {
		if t.published["bridge_"+d.id] {
			continue
		}
		config := map[string]any{
			"name":            d.name,
			"unique_id":       "zeekr_bridge_" + d.id,
			"state_topic":     mqtt.BaseTopic + "/bridge/state",
			"value_template":  fmt.Sprintf("{{ value_json.%s }}", d.id),
			"state_class":     "total_increasing",
			"entity_category": "diagnostic",
			"device":          device,
		}
		topic := fmt.Sprintf("%s/sensor/zeekr_bridge/%s/config", t.discoveryPrefix, d.id)
		if err := t.publishConfigRaw(topic, config); err != nil {
			return err
		}
		t.published["bridge_"+d.id] = true
	}

	if !t.published["bridge_reset"] {
		config := map[string]any{
			"name":            "Reset API Counters",
			"unique_id":       "zeekr_bridge_reset_api_stats",
			"command_topic":   ResetStatsTopic,
			"entity_category": "diagnostic",
			"icon":            "mdi:counter",
			"device":          device,
		}
		topic := fmt.Sprintf("%s/button/zeekr_bridge/reset_api_stats/config", t.discoveryPrefix)
		if err := t.publishConfigRaw(topic, config); err != nil {
			return err
		}
		t.published["bridge_reset"] = true
	}

	payload, err := json.Marshal(map[string]any{
		"api_requests_today": update.Stats.RequestsToday,
		"api_invokes_today":  update.Stats.InvokesToday,
		"api_requests_total": update.Stats.RequestsTotal,
		"api_invokes_total":  update.Stats.InvokesTotal,
		"last_poll":          update.PolledAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	return t.client.Publish(mqtt.BaseTopic+"/bridge/state", payload, true)
}

func (t *MQTTTransmitter) publishConfigRaw(topic string, config any) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}
	if err := t.client.Publish(topic, payload, true); err != nil {
		return fmt.Errorf("failed to publish discovery config to %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the underlying MQTT client is connected.
func (t *MQTTTransmitter) IsConnected() bool {
	return t.client.IsConnected()
}
