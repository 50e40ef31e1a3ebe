package transmission

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/entities"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

type recordingDispatcher struct {
	status   vehicle.Status
	commands []coordinator.Command
	vins     []string
}

func (r *recordingDispatcher) Dispatch(_ context.Context, vin string, cmd coordinator.Command) coordinator.CommandResult {
	r.vins = append(r.vins, vin)
	r.commands = append(r.commands, cmd)
	return coordinator.CommandResult{Sent: true}
}

func (r *recordingDispatcher) SubmitTravelPlan(context.Context, string, api.TravelPlan) error {
	return nil
}

func (r *recordingDispatcher) SubmitChargingPlan(context.Context, string, api.ChargingPlan) error {
	return nil
}

func (r *recordingDispatcher) Status(string) (vehicle.Status, bool) {
	return r.status, r.status != nil
}

func (r *recordingDispatcher) Patch(string, any, ...string) {}

func (r *recordingDispatcher) RequestRefresh() {}

func (r *recordingDispatcher) LastPoll() time.Time { return time.Time{} }

func newTestRouter(t *testing.T) (*Router, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{status: vehicle.Status{}}
	table := entities.Table(vehicle.DefaultInterpretations())
	return NewRouter(table, d, logrus.New()), d
}

func TestRouterDispatchesLockCommand(t *testing.T) {
	r, d := newTestRouter(t)

	r.HandleMessage(context.Background(), "zeekr/VIN1/central_locking/set", []byte("LOCK"))

	require.Len(t, d.commands, 1)
	assert.Equal(t, []string{"VIN1"}, d.vins)
	assert.Equal(t, "lock", d.commands[0].Name)
}

func TestRouterRoutesSubTopics(t *testing.T) {
	r, d := newTestRouter(t)

	r.HandleMessage(context.Background(), "zeekr/VIN1/climate/mode/set", []byte("heat_cool"))

	require.Len(t, d.commands, 1)
	assert.Equal(t, "climate_on", d.commands[0].Name)
}

func TestRouterIgnoresUnknownEntity(t *testing.T) {
	r, d := newTestRouter(t)

	r.HandleMessage(context.Background(), "zeekr/VIN1/warp_drive/set", []byte("ON"))
	assert.Empty(t, d.commands)
}

func TestRouterIgnoresMalformedTopics(t *testing.T) {
	r, d := newTestRouter(t)

	r.HandleMessage(context.Background(), "zeekr/VIN1/state", []byte("{}"))
	r.HandleMessage(context.Background(), "other/VIN1/central_locking/set", []byte("LOCK"))
	assert.Empty(t, d.commands)
}
