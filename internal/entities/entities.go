package entities

import (
	"context"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// Dispatcher is the command-side surface entities need: issue remote-control
// commands, submit plans, read and patch the cached snapshot, and trigger an
// out-of-schedule refresh.
type Dispatcher interface {
	Dispatch(ctx context.Context, vin string, cmd coordinator.Command) coordinator.CommandResult
	SubmitTravelPlan(ctx context.Context, vin string, plan api.TravelPlan) error
	SubmitChargingPlan(ctx context.Context, vin string, plan api.ChargingPlan) error
	Status(vin string) (vehicle.Status, bool)
	Patch(vin string, value any, path ...string)
	RequestRefresh()
	LastPoll() time.Time
}

// Entity is one declarative row of the entity table: where its state comes
// from in the snapshot and, for controls, what command its payloads map to.
// A nil Value means the entity is stateless (buttons); a Value returning nil
// means unknown for this cycle. An empty Component contributes state to the
// per-vehicle payload without its own discovery entry (used by climate
// templates).
type Entity struct {
	ID          string
	Name        string
	Component   string
	DeviceClass string
	Unit        string
	StateClass  string
	Icon        string
	Category    string // entity_category, e.g. "diagnostic"
	Config      map[string]any

	Value   func(st vehicle.Status) any
	Command func(ctx context.Context, d Dispatcher, vin, sub, payload string) error
}

// Table builds the full entity table. All vendor-code interpretation goes
// through the shared decode table so guessed mappings stay overridable in
// one place.
func Table(interp vehicle.Interpretations) []Entity {
	var table []Entity
	table = append(table, sensorRows()...)
	table = append(table, binarySensorRows(interp)...)
	table = append(table, lockRows(interp)...)
	table = append(table, switchRows(interp)...)
	table = append(table, climateRows(interp)...)
	table = append(table, coverRows(interp)...)
	table = append(table, buttonRows()...)
	table = append(table, timeRows()...)
	table = append(table, numberRows()...)
	return table
}

func sensorRows() []Entity {
	rows := []Entity{
		{
			ID:          "battery_level",
			Name:        "Battery Level",
			Component:   "sensor",
			DeviceClass: "battery",
			Unit:        "%",
			StateClass:  "measurement",
			Value:       floatValue("additionalVehicleStatus", "electricVehicleStatus", "chargeLevel"),
		},
		{
			ID:          "range",
			Name:        "Range",
			Component:   "sensor",
			DeviceClass: "distance",
			Unit:        "km",
			StateClass:  "measurement",
			Value:       floatValue("additionalVehicleStatus", "electricVehicleStatus", "distanceToEmptyOnBatteryOnly"),
		},
		{
			ID:          "odometer",
			Name:        "Odometer",
			Component:   "sensor",
			DeviceClass: "distance",
			Unit:        "km",
			StateClass:  "total_increasing",
			Value:       floatValue("additionalVehicleStatus", "maintenanceStatus", "odometer"),
		},
		{
			ID:          "interior_temp",
			Name:        "Interior Temperature",
			Component:   "sensor",
			DeviceClass: "temperature",
			Unit:        "°C",
			StateClass:  "measurement",
			Value:       floatValue("additionalVehicleStatus", "climateStatus", "interiorTemp"),
		},
		{
			ID:          "exterior_temp",
			Name:        "Exterior Temperature",
			Component:   "sensor",
			DeviceClass: "temperature",
			Unit:        "°C",
			StateClass:  "measurement",
			Value:       floatValue("additionalVehicleStatus", "climateStatus", "exteriorTemp"),
		},
		{
			ID:         "sunshade_position",
			Name:       "Sunshade Position",
			Component:  "sensor",
			Unit:       "%",
			StateClass: "measurement",
			Icon:       "mdi:blinds-horizontal",
			Value:      floatValue("additionalVehicleStatus", "climateStatus", "curtainPos"),
		},
	}

	for _, tire := range []struct{ suffix, label string }{
		{"Driver", "Driver"},
		{"Passenger", "Passenger"},
		{"DriverRear", "Driver Rear"},
		{"PassengerRear", "Passenger Rear"},
	} {
		rows = append(rows, Entity{
			ID:          "tire_pressure_" + snake(tire.suffix),
			Name:        "Tire Pressure " + tire.label,
			Component:   "sensor",
			DeviceClass: "pressure",
			Unit:        "kPa",
			StateClass:  "measurement",
			Value:       floatValue("additionalVehicleStatus", "maintenanceStatus", "tyreStatus"+tire.suffix),
		})
	}

	// Charging telemetry, present only while a charger session is merged in.
	charge := []struct {
		id, name, field, class, unit string
	}{
		{"charge_voltage", "Charge Voltage", "chargeVoltage", "voltage", "V"},
		{"charge_current", "Charge Current", "chargeCurrent", "current", "A"},
		{"charge_power", "Charge Power", "chargePower", "power", "kW"},
		{"charge_speed", "Charge Speed", "chargeSpeed", "", ""},
	}
	for _, cs := range charge {
		rows = append(rows, Entity{
			ID:          cs.id,
			Name:        cs.name,
			Component:   "sensor",
			DeviceClass: cs.class,
			Unit:        cs.unit,
			StateClass:  "measurement",
			Value:       floatValue("chargingStatus", cs.field),
		})
	}

	return rows
}

func binarySensorRows(interp vehicle.Interpretations) []Entity {
	rows := []Entity{
		{
			ID:          "charging",
			Name:        "Charging",
			Component:   "binary_sensor",
			DeviceClass: "battery_charging",
			Value:       triValue(interp, "electricVehicleStatus", "chargerState"),
		},
		{
			ID:          "plugged_in",
			Name:        "Plugged In",
			Component:   "binary_sensor",
			DeviceClass: "plug",
			Value:       triValue(interp, "electricVehicleStatus", "statusOfChargerConnection"),
		},
		{
			ID:          "washer_fluid_low",
			Name:        "Washer Fluid Low",
			Component:   "binary_sensor",
			DeviceClass: "problem",
			Value:       triValue(interp, "maintenanceStatus", "washerFluidLevelStatus"),
		},
		{
			ID:        "camping_mode",
			Name:      "Camping Mode",
			Component: "binary_sensor",
			Icon:      "mdi:tent",
			Value:     triValue(interp, "sentry", "campingModeState"),
		},
		{
			ID:        "car_wash_mode",
			Name:      "Car Wash Mode",
			Component: "binary_sensor",
			Icon:      "mdi:car-wash",
			Value:     triValue(interp, "sentry", "washCarModeState"),
		},
	}

	doors := []struct {
		id, name, field string
	}{
		{"door_open_driver", "Driver Door", "doorOpenStatusDriver"},
		{"door_open_passenger", "Passenger Door", "doorOpenStatusPassenger"},
		{"door_open_driver_rear", "Driver Rear Door", "doorOpenStatusDriverRear"},
		{"door_open_passenger_rear", "Passenger Rear Door", "doorOpenStatusPassengerRear"},
		{"trunk_open", "Trunk", "trunkOpenStatus"},
		{"hood_open", "Hood", "engineHoodOpenStatus"},
	}
	for _, d := range doors {
		field := d.field
		rows = append(rows, Entity{
			ID:          d.id,
			Name:        d.name,
			Component:   "binary_sensor",
			DeviceClass: "door",
			Value: func(st vehicle.Status) any {
				// Door sensors report open directly: "1" = open = ON.
				raw, ok := st.String("additionalVehicleStatus", "drivingSafetyStatus", field)
				if !ok {
					return nil
				}
				return onOff(raw == "1")
			},
		})
	}

	for _, tire := range []string{"Driver", "Passenger", "DriverRear", "PassengerRear"} {
		preField := "tyrePreWarning" + tire
		tempField := "tyreTempWarning" + tire
		rows = append(rows,
			Entity{
				ID:          "tire_pre_warning_" + snake(tire),
				Name:        "Tire Pre-Warning " + spaced(tire),
				Component:   "binary_sensor",
				DeviceClass: "problem",
				Value:       warningValue("maintenanceStatus", preField),
			},
			Entity{
				ID:          "tire_temp_warning_" + snake(tire),
				Name:        "Tire Temp Warning " + spaced(tire),
				Component:   "binary_sensor",
				DeviceClass: "problem",
				Value:       warningValue("maintenanceStatus", tempField),
			},
		)
	}

	return rows
}

// lockRows exposes the central lock as a controllable lock entity and the
// remaining latch states as read-only lock-class binary sensors.
func lockRows(interp vehicle.Interpretations) []Entity {
	rows := []Entity{
		{
			ID:        "central_locking",
			Name:      "Central Locking",
			Component: "lock",
			Value:     lockValue(interp, "centralLockingStatus"),
			Command:   centralLockCommand,
		},
	}

	latches := []struct {
		id, name, field string
	}{
		{"door_lock_driver", "Driver Door Lock", "doorLockStatusDriver"},
		{"door_lock_passenger", "Passenger Door Lock", "doorLockStatusPassenger"},
		{"door_lock_driver_rear", "Driver Rear Door Lock", "doorLockStatusDriverRear"},
		{"door_lock_passenger_rear", "Passenger Rear Door Lock", "doorLockStatusPassengerRear"},
		{"trunk_locked", "Trunk Lock", "trunkLockStatus"},
		{"hood_closed", "Hood Latch", "engineHoodOpenStatus"},
		{"park_brake", "Electric Park Brake", "electricParkBrakeStatus"},
		{"fuel_flap_closed", "Fuel Flap", "tankFlapStatus"},
	}
	for _, l := range latches {
		field := l.field
		rows = append(rows, Entity{
			ID:          l.id,
			Name:        l.name,
			Component:   "binary_sensor",
			DeviceClass: "lock",
			Value: func(st vehicle.Status) any {
				// HA lock-class binary sensors use ON = unlocked.
				locked, known := interp.Decode(st, "drivingSafetyStatus", field).Bool()
				if !known {
					return nil
				}
				return onOff(!locked)
			},
		})
	}

	return rows
}

func switchRows(interp vehicle.Interpretations) []Entity {
	return []Entity{
		{
			ID:        "defroster",
			Name:      "Defroster",
			Component: "switch",
			Icon:      "mdi:car-defrost-front",
			Value: func(st vehicle.Status) any {
				raw, ok := st.String("additionalVehicleStatus", "climateStatus", "defrost")
				if !ok {
					return nil
				}
				return onOff(raw == "1")
			},
			Command: defrosterCommand,
		},
		{
			ID:        "charging_switch",
			Name:      "Charging",
			Component: "switch",
			Icon:      "mdi:ev-station",
			Value:     triValue(interp, "electricVehicleStatus", "chargerState"),
			Command:   chargingCommand,
		},
	}
}

func climateRows(interp vehicle.Interpretations) []Entity {
	return []Entity{
		{
			ID:        "climate",
			Name:      "Climate",
			Component: "climate",
			Config: map[string]any{
				"modes":     []string{"off", "heat_cool"},
				"min_temp":  16,
				"max_temp":  28,
				"temp_step": 0.5,
			},
			Command: climateCommand,
		},
		// State-only rows feeding the climate templates.
		{
			ID: "climate_mode",
			Value: func(st vehicle.Status) any {
				if on, known := interp.Decode(st, "climateStatus", "preClimateActive").Bool(); known && on {
					return "heat_cool"
				}
				return "off"
			},
		},
		{
			ID: "climate_target_temp",
			Value: func(st vehicle.Status) any {
				return climateTarget(st)
			},
		},
	}
}

func coverRows(interp vehicle.Interpretations) []Entity {
	return []Entity{
		{
			ID:          "sunshade",
			Name:        "Sunshade",
			Component:   "cover",
			DeviceClass: "blind",
			Value: func(st vehicle.Status) any {
				open, known := interp.Decode(st, "climateStatus", "curtainOpenStatus").Bool()
				if !known {
					return nil
				}
				if open {
					return "open"
				}
				return "closed"
			},
			Command: sunshadeCommand,
		},
	}
}

func buttonRows() []Entity {
	return []Entity{
		{
			ID:        "flash_blinkers",
			Name:      "Flash Blinkers",
			Component: "button",
			Icon:      "mdi:car-light-alert",
			Command:   flashBlinkersCommand,
		},
		{
			ID:        "force_update",
			Name:      "Poll Vehicle Data",
			Component: "button",
			Icon:      "mdi:refresh",
			Command: func(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
				d.RequestRefresh()
				return nil
			},
		},
	}
}

func timeRows() []Entity {
	return []Entity{
		{
			ID:        "travel_departure",
			Name:      "Travel Departure",
			Component: "time",
			Icon:      "mdi:clock-outline",
			Value:     travelDepartureValue,
			Command:   travelDepartureCommand,
		},
	}
}

func numberRows() []Entity {
	return []Entity{
		{
			ID:        "charge_limit",
			Name:      "Charge Limit",
			Component: "number",
			Unit:      "%",
			Icon:      "mdi:battery-charging-80",
			Config: map[string]any{
				"min":  50,
				"max":  100,
				"step": 5,
				"mode": "slider",
			},
			Value:   floatValue("chargingLimit", "targetLevel"),
			Command: chargeLimitCommand,
		},
	}
}

// travelDepartureValue surfaces the first valid schedule entry as "HH:MM:SS".
func travelDepartureValue(st vehicle.Status) any {
	list, ok := st.Get("travelPlan", "scheduleList")
	if !ok {
		return nil
	}
	entries, ok := list.([]any)
	if !ok {
		return nil
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		start, _ := entry["startTime"].(string)
		if hhmm, ok := parseHHMM(start); ok {
			return hhmm + ":00"
		}
	}
	return nil
}

func floatValue(path ...string) func(st vehicle.Status) any {
	return func(st vehicle.Status) any {
		f, ok := st.Float(path...)
		if !ok {
			return nil
		}
		return f
	}
}

func triValue(interp vehicle.Interpretations, group, field string) func(st vehicle.Status) any {
	return func(st vehicle.Status) any {
		on, known := interp.Decode(st, group, field).Bool()
		if !known {
			return nil
		}
		return onOff(on)
	}
}

func warningValue(group, field string) func(st vehicle.Status) any {
	return func(st vehicle.Status) any {
		raw, ok := st.String("additionalVehicleStatus", group, field)
		if !ok {
			return nil
		}
		on, known := vehicle.WarningDecode(raw).Bool()
		if !known {
			return nil
		}
		return onOff(on)
	}
}

func lockValue(interp vehicle.Interpretations, field string) func(st vehicle.Status) any {
	return func(st vehicle.Status) any {
		locked, known := interp.Decode(st, "drivingSafetyStatus", field).Bool()
		if !known {
			return nil
		}
		if locked {
			return "LOCKED"
		}
		return "UNLOCKED"
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func snake(camel string) string {
	switch camel {
	case "Driver":
		return "driver"
	case "Passenger":
		return "passenger"
	case "DriverRear":
		return "driver_rear"
	case "PassengerRear":
		return "passenger_rear"
	}
	return camel
}

func spaced(camel string) string {
	switch camel {
	case "DriverRear":
		return "Driver Rear"
	case "PassengerRear":
		return "Passenger Rear"
	}
	return camel
}
