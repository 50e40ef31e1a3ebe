package coordinator

import (
	"context"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/config"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
	"github.com/sirupsen/logrus"
)

// StatePatch is one optimistic snapshot mutation applied after a command.
type StatePatch struct {
	Value any
	Path  []string
}

// Confirmation describes how to verify that a command took effect on the
// vendor side: poll Check at a fixed interval until it reports true or the
// timeout elapses. Timing out is a negative outcome, not an error.
type Confirmation struct {
	Timeout  time.Duration
	Interval time.Duration
	Check    func(ctx context.Context, v VehicleAPI) (bool, error)
}

// Command is one remote-control request plus the local bookkeeping around
// it: the optimistic patches to apply and, optionally, how to confirm it.
type Command struct {
	Name       string
	Action     string // vendor command verb, usually "start" or "stop"
	ServiceID  string
	Parameters []api.ServiceParameter

	Assume      []StatePatch // applied when the command was sent (and confirmed, if polled)
	AssumeState string       // human-readable state the cache now reflects
	Revert      []StatePatch // applied instead when confirmation times out
	RevertState string

	Confirm *Confirmation
}

// CommandResult reports what happened to a dispatched command, so callers
// can decide whether to trust the optimistic value or wait for the next
// scheduled refresh.
type CommandResult struct {
	Sent         bool
	Confirmed    bool
	AssumedState string
}

// Dispatch resolves the vehicle by VIN, counts the invoke, issues the
// command, optionally polls for confirmation, and patches the cached
// snapshot with the observed outcome. An unknown VIN is a logged no-op.
func (c *Coordinator) Dispatch(ctx context.Context, vin string, cmd Command) CommandResult {
	v := c.VehicleByVIN(vin)
	if v == nil {
		c.logger.WithField("vin", vin).Warn("Command for unknown vehicle ignored")
		return CommandResult{}
	}

	c.stats.IncInvoke()
	if err := v.RemoteControl(ctx, cmd.Action, cmd.ServiceID, cmd.Parameters); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"vin":     vin,
			"command": cmd.Name,
		}).Warn("Remote control command failed")
		return CommandResult{}
	}

	res := CommandResult{Sent: true, AssumedState: cmd.AssumeState}
	patches := cmd.Assume

	if cmd.Confirm != nil {
		res.Confirmed = c.awaitConfirmation(ctx, v, cmd.Confirm)
		if !res.Confirmed {
			patches = cmd.Revert
			res.AssumedState = cmd.RevertState
		}
	}

	for _, p := range patches {
		c.Patch(vin, p.Value, p.Path...)
	}

	c.logger.WithFields(logrus.Fields{
		"vin":       vin,
		"command":   cmd.Name,
		"confirmed": res.Confirmed,
		"state":     res.AssumedState,
	}).Info("Command dispatched")
	return res
}

// awaitConfirmation polls at a fixed interval until Check reports true or
// the timeout elapses. Probe errors only end that probe.
func (c *Coordinator) awaitConfirmation(ctx context.Context, v VehicleAPI, conf *Confirmation) bool {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = config.ConfirmPollTimeout
	}
	interval := conf.Interval
	if interval <= 0 {
		interval = config.ConfirmPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			c.stats.IncRequest()
			ok, err := conf.Check(ctx, v)
			if err != nil {
				c.logger.WithError(err).WithField("vin", v.VIN()).Debug("Confirmation probe failed")
				continue
			}
			if ok {
				return true
			}
		}
	}
}

// SubmitTravelPlan sends a scheduled travel plan and optimistically mirrors
// its schedule into the snapshot.
func (c *Coordinator) SubmitTravelPlan(ctx context.Context, vin string, plan api.TravelPlan) error {
	v := c.VehicleByVIN(vin)
	if v == nil {
		c.logger.WithField("vin", vin).Warn("Travel plan for unknown vehicle ignored")
		return nil
	}

	c.stats.IncInvoke()
	if err := v.SetTravelPlan(ctx, plan); err != nil {
		return err
	}

	schedules := make([]any, 0, len(plan.ScheduleList))
	for _, s := range plan.ScheduleList {
		schedules = append(schedules, map[string]any{"startTime": s.StartTime})
	}
	c.Patch(vin, schedules, "travelPlan", "scheduleList")
	return nil
}

// SubmitChargingPlan sends a scheduled charging plan and optimistically
// mirrors the target level into the snapshot.
func (c *Coordinator) SubmitChargingPlan(ctx context.Context, vin string, plan api.ChargingPlan) error {
	v := c.VehicleByVIN(vin)
	if v == nil {
		c.logger.WithField("vin", vin).Warn("Charging plan for unknown vehicle ignored")
		return nil
	}

	c.stats.IncInvoke()
	if err := v.SetChargingPlan(ctx, plan); err != nil {
		return err
	}

	if plan.TargetLevel > 0 {
		c.Patch(vin, plan.TargetLevel, "chargingLimit", "targetLevel")
	}
	return nil
}

// ChargerConfirmed reports whether the charging-status endpoint shows an
// active charger session. Used as the confirmation probe for charging
// start/stop commands.
func ChargerConfirmed(want bool) func(ctx context.Context, v VehicleAPI) (bool, error) {
	return func(ctx context.Context, v VehicleAPI) (bool, error) {
		charging, err := v.ChargingStatus(ctx)
		if err != nil {
			return false, err
		}
		st := vehicle.Status(charging)
		state, ok := st.String("chargerState")
		if !ok {
			return false, nil
		}
		active := state == "1" || state == "2"
		return active == want, nil
	}
}
