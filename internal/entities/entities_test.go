package entities

import (
	"context"
	"testing"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	status vehicle.Status

	commands      []coordinator.Command
	travelPlans   []api.TravelPlan
	chargingPlans []api.ChargingPlan
	refreshes     int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, vin string, cmd coordinator.Command) coordinator.CommandResult {
	f.commands = append(f.commands, cmd)
	for _, p := range cmd.Assume {
		f.Patch(vin, p.Value, p.Path...)
	}
	return coordinator.CommandResult{Sent: true, AssumedState: cmd.AssumeState}
}

func (f *fakeDispatcher) SubmitTravelPlan(_ context.Context, vin string, plan api.TravelPlan) error {
	f.travelPlans = append(f.travelPlans, plan)
	return nil
}

func (f *fakeDispatcher) SubmitChargingPlan(_ context.Context, vin string, plan api.ChargingPlan) error {
	f.chargingPlans = append(f.chargingPlans, plan)
	return nil
}

func (f *fakeDispatcher) Status(string) (vehicle.Status, bool) {
	return f.status, f.status != nil
}

func (f *fakeDispatcher) Patch(_ string, value any, path ...string) {
	if f.status == nil {
		f.status = vehicle.Status{}
	}
	f.status.Patch(value, path...)
}

func (f *fakeDispatcher) RequestRefresh() { f.refreshes++ }

func (f *fakeDispatcher) LastPoll() time.Time { return time.Time{} }

func statusDoc() vehicle.Status {
	return vehicle.Status{
		"additionalVehicleStatus": map[string]any{
			"electricVehicleStatus": map[string]any{
				"chargeLevel":                  "76",
				"distanceToEmptyOnBatteryOnly": float64(312),
				"chargerState":                 "0",
				"statusOfChargerConnection":    "0",
			},
			"climateStatus": map[string]any{
				"interiorTemp":      "21.5",
				"defrost":           "0",
				"preClimateActive":  "false",
				"curtainOpenStatus": "2",
			},
			"drivingSafetyStatus": map[string]any{
				"centralLockingStatus": "1",
				"doorLockStatusDriver": "0",
				"doorOpenStatusDriver": "0",
				"trunkOpenStatus":      "1",
			},
			"maintenanceStatus": map[string]any{
				"odometer":             "12345.6",
				"tyreStatusDriver":     "245",
				"tyrePreWarningDriver": "0",
			},
		},
	}
}

func entityByID(t *testing.T, id string) Entity {
	t.Helper()
	for _, e := range Table(vehicle.DefaultInterpretations()) {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entity %q not in table", id)
	return Entity{}
}

func TestTableIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Table(vehicle.DefaultInterpretations()) {
		assert.False(t, seen[e.ID], "duplicate entity id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestSensorValues(t *testing.T) {
	st := statusDoc()

	assert.Equal(t, 76.0, entityByID(t, "battery_level").Value(st))
	assert.Equal(t, 312.0, entityByID(t, "range").Value(st))
	assert.Equal(t, 12345.6, entityByID(t, "odometer").Value(st))
	assert.Equal(t, 21.5, entityByID(t, "interior_temp").Value(st))
	assert.Equal(t, 245.0, entityByID(t, "tire_pressure_driver").Value(st))

	// No charging session merged in: charging telemetry reads unknown.
	assert.Nil(t, entityByID(t, "charge_voltage").Value(st))
}

func TestBinarySensorValues(t *testing.T) {
	st := statusDoc()

	assert.Equal(t, "OFF", entityByID(t, "charging").Value(st))
	assert.Equal(t, "OFF", entityByID(t, "plugged_in").Value(st))
	assert.Equal(t, "OFF", entityByID(t, "door_open_driver").Value(st))
	assert.Equal(t, "ON", entityByID(t, "trunk_open").Value(st))
	assert.Equal(t, "OFF", entityByID(t, "tire_pre_warning_driver").Value(st))

	// Absent field stays unknown rather than guessing a side.
	assert.Nil(t, entityByID(t, "washer_fluid_low").Value(st))
}

func TestLockValues(t *testing.T) {
	st := statusDoc()

	assert.Equal(t, "LOCKED", entityByID(t, "central_locking").Value(st))
	// Lock-class binary sensor: ON means unlocked.
	assert.Equal(t, "ON", entityByID(t, "door_lock_driver").Value(st))
	assert.Nil(t, entityByID(t, "trunk_locked").Value(st))
}

func TestClimateModeAndTarget(t *testing.T) {
	st := statusDoc()

	assert.Equal(t, "off", entityByID(t, "climate_mode").Value(st))
	assert.Equal(t, defaultClimateTemp, entityByID(t, "climate_target_temp").Value(st))

	st.Patch("true", "additionalVehicleStatus", "climateStatus", "preClimateActive")
	st.Patch(22.5, "localSettings", "climateTargetTemp")
	assert.Equal(t, "heat_cool", entityByID(t, "climate_mode").Value(st))
	assert.Equal(t, 22.5, entityByID(t, "climate_target_temp").Value(st))
}

func TestSunshadeValue(t *testing.T) {
	st := statusDoc()
	assert.Equal(t, "open", entityByID(t, "sunshade").Value(st))

	st.Patch("1", "additionalVehicleStatus", "climateStatus", "curtainOpenStatus")
	assert.Equal(t, "closed", entityByID(t, "sunshade").Value(st))
}

func TestCentralLockCommand(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "central_locking")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "UNLOCK"))
	require.Len(t, d.commands, 1)
	assert.Equal(t, serviceUnlock, d.commands[0].ServiceID)

	val, _ := d.status.String("additionalVehicleStatus", "drivingSafetyStatus", "centralLockingStatus")
	assert.Equal(t, "0", val)

	assert.Error(t, e.Command(context.Background(), d, "VIN1", "", "EXPLODE"))
}

func TestDefrosterCommand(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "defroster")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "ON"))
	require.Len(t, d.commands, 1)
	cmd := d.commands[0]
	assert.Equal(t, serviceClimate, cmd.ServiceID)
	assert.Equal(t, "start", cmd.Action)
	require.Len(t, cmd.Parameters, 2)
	assert.Equal(t, "DF", cmd.Parameters[0].Key)
	assert.Equal(t, "true", cmd.Parameters[0].Value)

	// Off is still the "start" verb; the parameter carries the off-ness.
	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "OFF"))
	require.Len(t, d.commands, 2)
	off := d.commands[1]
	assert.Equal(t, "start", off.Action)
	require.Len(t, off.Parameters, 1)
	assert.Equal(t, "DF", off.Parameters[0].Key)
	assert.Equal(t, "false", off.Parameters[0].Value)
}

func TestClimateModeOffSendsStartWithFalse(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "climate")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "mode", "off"))
	require.Len(t, d.commands, 1)
	cmd := d.commands[0]
	assert.Equal(t, "climate_off", cmd.Name)
	assert.Equal(t, "start", cmd.Action)
	require.Len(t, cmd.Parameters, 1)
	assert.Equal(t, "AC", cmd.Parameters[0].Key)
	assert.Equal(t, "false", cmd.Parameters[0].Value)
}

func TestSunshadeCloseUsesStop(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "sunshade")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "CLOSE"))
	require.Len(t, d.commands, 1)
	assert.Equal(t, "stop", d.commands[0].Action)
}

func TestChargingCommandCarriesConfirmation(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "charging_switch")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "ON"))
	require.Len(t, d.commands, 1)
	cmd := d.commands[0]
	assert.Equal(t, serviceCharging, cmd.ServiceID)
	require.NotNil(t, cmd.Confirm)
	assert.NotNil(t, cmd.Confirm.Check)
	assert.NotEmpty(t, cmd.Revert)
}

func TestClimateModeCommandUsesStoredTarget(t *testing.T) {
	st := statusDoc()
	st.Patch(23.0, "localSettings", "climateTargetTemp")
	d := &fakeDispatcher{status: st}
	e := entityByID(t, "climate")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "mode", "heat_cool"))
	require.Len(t, d.commands, 1)
	params := d.commands[0].Parameters
	require.Len(t, params, 3)
	assert.Equal(t, "AC.temp", params[1].Key)
	assert.Equal(t, "23.0", params[1].Value)
}

func TestClimateTempCommandResendsWhileActive(t *testing.T) {
	st := statusDoc()
	st.Patch("true", "additionalVehicleStatus", "climateStatus", "preClimateActive")
	d := &fakeDispatcher{status: st}
	e := entityByID(t, "climate")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "temp", "24.5"))
	require.Len(t, d.commands, 1, "active climate re-sends the start command")
	assert.Equal(t, "climate_on", d.commands[0].Name)

	target, _ := d.status.Float("localSettings", "climateTargetTemp")
	assert.Equal(t, 24.5, target)
}

func TestClimateTempCommandOnlyStoresWhileOff(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "climate")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "temp", "18"))
	assert.Empty(t, d.commands)

	target, _ := d.status.Float("localSettings", "climateTargetTemp")
	assert.Equal(t, 18.0, target)
}

func TestTravelDepartureRoundTrip(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "travel_departure")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "07:30:00"))
	require.Len(t, d.travelPlans, 1)
	require.Len(t, d.travelPlans[0].ScheduleList, 1)
	assert.Equal(t, "07:30", d.travelPlans[0].ScheduleList[0].StartTime)

	assert.Error(t, e.Command(context.Background(), d, "VIN1", "", "25:99"))

	st := vehicle.Status{
		"travelPlan": map[string]any{
			"scheduleList": []any{
				map[string]any{"startTime": "07:30"},
			},
		},
	}
	assert.Equal(t, "07:30:00", e.Value(st))
}

func TestChargeLimitCommand(t *testing.T) {
	d := &fakeDispatcher{status: statusDoc()}
	e := entityByID(t, "charge_limit")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "80"))
	require.Len(t, d.chargingPlans, 1)
	assert.Equal(t, 80, d.chargingPlans[0].TargetLevel)

	assert.Error(t, e.Command(context.Background(), d, "VIN1", "", "140"))
	assert.Error(t, e.Command(context.Background(), d, "VIN1", "", "lots"))
}

func TestForceUpdateButton(t *testing.T) {
	d := &fakeDispatcher{}
	e := entityByID(t, "force_update")

	require.NoError(t, e.Command(context.Background(), d, "VIN1", "", "PRESS"))
	assert.Equal(t, 1, d.refreshes)
}
