package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/stats"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
	"github.com/sirupsen/logrus"
)

// VehicleAPI is the per-vehicle surface of the Zeekr cloud client.
type VehicleAPI interface {
	VIN() string
	Model() string
	Status(ctx context.Context) (vehicle.Status, error)
	ChargingStatus(ctx context.Context) (map[string]any, error)
	ChargingLimit(ctx context.Context) (map[string]any, error)
	RemoteControl(ctx context.Context, command, serviceID string, params []api.ServiceParameter) error
	SetTravelPlan(ctx context.Context, plan api.TravelPlan) error
	SetChargingPlan(ctx context.Context, plan api.ChargingPlan) error
}

// ListFunc fetches the account's vehicle list.
type ListFunc func(ctx context.Context) ([]VehicleAPI, error)

// Coordinator periodically refreshes a merged per-VIN status mapping that is
// the single source of truth for all entity adapters. A refresh either
// replaces the whole mapping or, on vehicle-list/primary-status failure,
// leaves the previous one untouched and reports a single unified failure.
type Coordinator struct {
	list   ListFunc
	stats  *stats.Tracker
	logger *logrus.Logger
	now    func() time.Time

	mu       sync.RWMutex
	vehicles []VehicleAPI
	data     map[string]vehicle.Status
	lastPoll time.Time
}

// New creates a coordinator. The vehicle list is fetched lazily on the first
// refresh and kept for the coordinator's lifetime.
func New(list ListFunc, tracker *stats.Tracker, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		list:   list,
		stats:  tracker,
		logger: logger,
		now:    time.Now,
		data:   map[string]vehicle.Status{},
	}
}

// Refresh performs one full update cycle: vehicle list (first run only),
// then per vehicle the primary status followed by charging telemetry.
// Charging status and charging limit are soft fetches: a failure there is
// logged and only degrades that vehicle's snapshot for this cycle. Any other
// failure aborts the cycle without touching the cached snapshot.
func (c *Coordinator) Refresh(ctx context.Context) error {
	vehicles, err := c.vehicleList(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	data := make(map[string]vehicle.Status, len(vehicles))
	for _, v := range vehicles {
		c.stats.IncRequest()
		st, err := v.Status(ctx)
		if err != nil {
			return fmt.Errorf("refresh: vehicle %s: %w", v.VIN(), err)
		}
		data[v.VIN()] = st

		// Supplementary telemetry is only worth fetching while a charger
		// session is reported.
		if state, ok := st.String("additionalVehicleStatus", "electricVehicleStatus", "chargerState"); ok && state != "" {
			c.stats.IncRequest()
			if charging, err := v.ChargingStatus(ctx); err != nil {
				c.logger.WithError(err).WithField("vin", v.VIN()).Debug("Charging status fetch failed")
			} else {
				st.Merge("chargingStatus", charging)
			}

			c.stats.IncRequest()
			if limit, err := v.ChargingLimit(ctx); err != nil {
				c.logger.WithError(err).WithField("vin", v.VIN()).Debug("Charging limit fetch failed")
			} else {
				st.Merge("chargingLimit", limit)
			}
		}
	}

	c.mu.Lock()
	for vin, st := range data {
		// Bridge-local settings (climate setpoint) have no cloud source, so
		// the wholesale snapshot replace must carry them across.
		if old, ok := c.data[vin]; ok {
			if local, ok := old["localSettings"]; ok {
				st["localSettings"] = local
			}
		}
	}
	c.data = data
	c.lastPoll = c.now()
	c.mu.Unlock()

	c.logger.WithField("vehicles", len(data)).Debug("Refresh cycle complete")
	return nil
}

// vehicleList returns the cached list, fetching it once. A device-list
// change on the account requires a restart to pick up.
func (c *Coordinator) vehicleList(ctx context.Context) ([]VehicleAPI, error) {
	c.mu.RLock()
	cached := c.vehicles
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	c.stats.IncRequest()
	vehicles, err := c.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}

	c.mu.Lock()
	c.vehicles = vehicles
	c.mu.Unlock()
	return vehicles, nil
}

// VehicleByVIN returns the cached vehicle handle, or nil when unknown.
func (c *Coordinator) VehicleByVIN(vin string) VehicleAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.vehicles {
		if v.VIN() == vin {
			return v
		}
	}
	return nil
}

// Data returns a deep copy of the current per-VIN snapshot mapping. Handing
// out copies keeps command-side patches from racing readers that walk the
// nested maps outside the coordinator's lock, and lets consumers compare
// successive snapshots for changes.
func (c *Coordinator) Data() map[string]vehicle.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]vehicle.Status, len(c.data))
	for vin, st := range c.data {
		out[vin] = st.Clone()
	}
	return out
}

// Status returns a deep copy of one vehicle's snapshot.
func (c *Coordinator) Status(vin string) (vehicle.Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.data[vin]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Patch applies an optimistic in-place update to a vehicle's snapshot. It is
// a no-op for unknown VINs. The next successful refresh overwrites it; that
// inconsistency window is accepted in a polling design.
func (c *Coordinator) Patch(vin string, value any, path ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.data[vin]; ok {
		st.Patch(value, path...)
	}
}

// LastPoll returns the wall-clock time of the last successful refresh.
func (c *Coordinator) LastPoll() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPoll
}

// Stats exposes the request-stats tracker.
func (c *Coordinator) Stats() *stats.Tracker { return c.stats }
