package entities

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// Vendor service IDs for the remote-control endpoint.
const (
	serviceClimate  = "ZAF" // climate + defroster
	serviceSunshade = "RWS"
	serviceLights   = "RHL"
	serviceCharging = "RCS"
	serviceLock     = "RDL"
	serviceUnlock   = "RDU"
)

const defaultClimateTemp = 20.0

func centralLockCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	switch payload {
	case "LOCK":
		d.Dispatch(ctx, vin, coordinator.Command{
			Name:        "lock",
			Action:      "start",
			ServiceID:   serviceLock,
			AssumeState: "locked",
			Assume: []coordinator.StatePatch{
				{Value: "1", Path: []string{"additionalVehicleStatus", "drivingSafetyStatus", "centralLockingStatus"}},
			},
		})
	case "UNLOCK":
		d.Dispatch(ctx, vin, coordinator.Command{
			Name:        "unlock",
			Action:      "start",
			ServiceID:   serviceUnlock,
			AssumeState: "unlocked",
			Assume: []coordinator.StatePatch{
				{Value: "0", Path: []string{"additionalVehicleStatus", "drivingSafetyStatus", "centralLockingStatus"}},
			},
		})
	default:
		return fmt.Errorf("unsupported lock payload %q", payload)
	}
	return nil
}

func defrosterCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	on, err := parseOnOff(payload)
	if err != nil {
		return err
	}

	// The vendor encodes off in the parameter; the command verb stays "start".
	cmd := coordinator.Command{
		Name:      "defrost_off",
		Action:    "start",
		ServiceID: serviceClimate,
		Parameters: []api.ServiceParameter{
			{Key: "DF", Value: "false"},
		},
		AssumeState: "off",
		Assume: []coordinator.StatePatch{
			{Value: "0", Path: []string{"additionalVehicleStatus", "climateStatus", "defrost"}},
		},
	}
	if on {
		cmd = coordinator.Command{
			Name:      "defrost_on",
			Action:    "start",
			ServiceID: serviceClimate,
			Parameters: []api.ServiceParameter{
				{Key: "DF", Value: "true"},
				{Key: "DF.level", Value: "2"},
			},
			AssumeState: "on",
			Assume: []coordinator.StatePatch{
				{Value: "1", Path: []string{"additionalVehicleStatus", "climateStatus", "defrost"}},
			},
		}
	}

	d.Dispatch(ctx, vin, cmd)
	return nil
}

// chargingCommand starts or stops a charging session. The vendor confirms
// asynchronously, so the dispatch polls the charging endpoint before settling
// on a state.
func chargingCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	on, err := parseOnOff(payload)
	if err != nil {
		return err
	}

	action, name := "stop", "charging_stop"
	assumed, reverted := "0", "1"
	if on {
		action, name = "start", "charging_start"
		assumed, reverted = "1", "0"
	}
	statePath := []string{"additionalVehicleStatus", "electricVehicleStatus", "chargerState"}

	d.Dispatch(ctx, vin, coordinator.Command{
		Name:        name,
		Action:      action,
		ServiceID:   serviceCharging,
		AssumeState: payload,
		Assume:      []coordinator.StatePatch{{Value: assumed, Path: statePath}},
		RevertState: onOff(!on),
		Revert:      []coordinator.StatePatch{{Value: reverted, Path: statePath}},
		Confirm: &coordinator.Confirmation{
			Check: coordinator.ChargerConfirmed(on),
		},
	})
	return nil
}

// climateCommand handles both sub-topics of the climate entity: "mode"
// carries the HVAC mode and "temp" the target temperature. Changing the
// target while climate runs re-sends the start command with the new value.
func climateCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	switch sub {
	case "mode":
		return climateSetMode(ctx, d, vin, payload != "off")
	case "temp":
		target, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			return fmt.Errorf("climate temperature %q: %w", payload, err)
		}
		d.Patch(vin, target, "localSettings", "climateTargetTemp")
		if st, ok := d.Status(vin); ok {
			if active, known := st.String("additionalVehicleStatus", "climateStatus", "preClimateActive"); known && isTruthy(active) {
				return climateSetMode(ctx, d, vin, true)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported climate sub-topic %q", sub)
	}
}

func climateSetMode(ctx context.Context, d Dispatcher, vin string, on bool) error {
	// Climate off is "start" with AC=false; only the sunshade uses "stop".
	cmd := coordinator.Command{
		Name:      "climate_off",
		Action:    "start",
		ServiceID: serviceClimate,
		Parameters: []api.ServiceParameter{
			{Key: "AC", Value: "false"},
		},
		AssumeState: "off",
		Assume: []coordinator.StatePatch{
			{Value: "false", Path: []string{"additionalVehicleStatus", "climateStatus", "preClimateActive"}},
		},
	}
	if on {
		target := defaultClimateTemp
		if st, ok := d.Status(vin); ok {
			target = climateTarget(st)
		}
		cmd = coordinator.Command{
			Name:      "climate_on",
			Action:    "start",
			ServiceID: serviceClimate,
			Parameters: []api.ServiceParameter{
				{Key: "AC", Value: "true"},
				{Key: "AC.temp", Value: strconv.FormatFloat(target, 'f', 1, 64)},
				{Key: "AC.duration", Value: "15"},
			},
			AssumeState: "heat_cool",
			Assume: []coordinator.StatePatch{
				{Value: "true", Path: []string{"additionalVehicleStatus", "climateStatus", "preClimateActive"}},
			},
		}
	}

	d.Dispatch(ctx, vin, cmd)
	return nil
}

// climateTarget reads the locally persisted target temperature, falling back
// to a comfortable default before the user ever sets one.
func climateTarget(st vehicle.Status) float64 {
	if target, ok := st.Float("localSettings", "climateTargetTemp"); ok {
		return target
	}
	return defaultClimateTemp
}

func sunshadeCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	statePath := []string{"additionalVehicleStatus", "climateStatus", "curtainOpenStatus"}
	switch payload {
	case "OPEN":
		d.Dispatch(ctx, vin, coordinator.Command{
			Name:      "sunshade_open",
			Action:    "start",
			ServiceID: serviceSunshade,
			Parameters: []api.ServiceParameter{
				{Key: "target", Value: "sunshade"},
			},
			AssumeState: "open",
			Assume:      []coordinator.StatePatch{{Value: "2", Path: statePath}},
		})
	case "CLOSE":
		d.Dispatch(ctx, vin, coordinator.Command{
			Name:      "sunshade_close",
			Action:    "stop",
			ServiceID: serviceSunshade,
			Parameters: []api.ServiceParameter{
				{Key: "target", Value: "sunshade"},
			},
			AssumeState: "closed",
			Assume:      []coordinator.StatePatch{{Value: "1", Path: statePath}},
		})
	default:
		return fmt.Errorf("unsupported cover payload %q", payload)
	}
	return nil
}

func flashBlinkersCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	d.Dispatch(ctx, vin, coordinator.Command{
		Name:      "flash_blinkers",
		Action:    "start",
		ServiceID: serviceLights,
		Parameters: []api.ServiceParameter{
			{Key: "rhl", Value: "light-flash"},
		},
	})
	return nil
}

func travelDepartureCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	hhmm, ok := parseHHMM(payload)
	if !ok {
		return fmt.Errorf("invalid departure time %q", payload)
	}
	return d.SubmitTravelPlan(ctx, vin, api.TravelPlan{
		Enabled:      true,
		ScheduleList: []api.TravelSchedule{{StartTime: hhmm}},
	})
}

func chargeLimitCommand(ctx context.Context, d Dispatcher, vin, sub, payload string) error {
	level, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return fmt.Errorf("charge limit %q: %w", payload, err)
	}
	if level < 0 || level > 100 {
		return fmt.Errorf("charge limit %v out of range", level)
	}
	return d.SubmitChargingPlan(ctx, vin, api.ChargingPlan{TargetLevel: int(level)})
}

// parseHHMM accepts "HH:MM" or "HH:MM:SS" and returns the normalized "HH:MM".
func parseHHMM(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	}
	return false, fmt.Errorf("unsupported switch payload %q", payload)
}

func isTruthy(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "running", "on":
		return true
	}
	return false
}
