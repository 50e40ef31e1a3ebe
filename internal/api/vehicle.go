package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// Vehicle is a handle for a single vehicle: its VIN plus the capability to
// fetch status and issue remote commands through the owning client.
type Vehicle struct {
	vin    string
	model  string
	client *Client
}

// VIN returns the vehicle identification number.
func (v *Vehicle) VIN() string { return v.vin }

// Model returns the vendor model name, or empty when unknown.
func (v *Vehicle) Model() string { return v.model }

// Status fetches the primary vehicle status document.
func (v *Vehicle) Status(ctx context.Context) (vehicle.Status, error) {
	var resp envelope
	path := "/remote-control/vehicle/status/" + v.vin
	if err := v.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("status %s: %w", v.vin, err)
	}
	return vehicle.Status(resp.Data), nil
}

// ChargingStatus fetches live charging telemetry.
func (v *Vehicle) ChargingStatus(ctx context.Context) (map[string]any, error) {
	var resp envelope
	path := "/remote-control/vehicle/charging/status/" + v.vin
	if err := v.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("charging status %s: %w", v.vin, err)
	}
	return resp.Data, nil
}

// ChargingLimit fetches the configured charging limit.
func (v *Vehicle) ChargingLimit(ctx context.Context) (map[string]any, error) {
	var resp envelope
	path := "/remote-control/vehicle/charging/limit/" + v.vin
	if err := v.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("charging limit %s: %w", v.vin, err)
	}
	return resp.Data, nil
}

// RemoteControl issues a remote-control command (lock, climate, lights, ...).
func (v *Vehicle) RemoteControl(ctx context.Context, command, serviceID string, params []ServiceParameter) error {
	body := RemoteControlRequest{
		Command:           command,
		ServiceID:         serviceID,
		ServiceParameters: params,
	}
	path := "/remote-control/vehicle/command/" + v.vin
	if err := v.client.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("remote control %s/%s for %s: %w", serviceID, command, v.vin, err)
	}
	return nil
}

// SetTravelPlan submits a scheduled travel (departure/preheat) plan.
func (v *Vehicle) SetTravelPlan(ctx context.Context, plan TravelPlan) error {
	path := "/remote-control/vehicle/travel-plan/" + v.vin
	if err := v.client.do(ctx, http.MethodPost, path, plan, nil); err != nil {
		return fmt.Errorf("travel plan for %s: %w", v.vin, err)
	}
	return nil
}

// SetChargingPlan submits a scheduled charging plan.
func (v *Vehicle) SetChargingPlan(ctx context.Context, plan ChargingPlan) error {
	path := "/remote-control/vehicle/charging-plan/" + v.vin
	if err := v.client.do(ctx, http.MethodPost, path, plan, nil); err != nil {
		return fmt.Errorf("charging plan for %s: %w", v.vin, err)
	}
	return nil
}
