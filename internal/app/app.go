package app

import (
	"context"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fryyyyy/zeekr-hass/internal/api"
	"github.com/fryyyyy/zeekr-hass/internal/bus"
	"github.com/fryyyyy/zeekr-hass/internal/config"
	"github.com/fryyyyy/zeekr-hass/internal/coordinator"
	"github.com/fryyyyy/zeekr-hass/internal/domain"
	"github.com/fryyyyy/zeekr-hass/internal/entities"
	"github.com/fryyyyy/zeekr-hass/internal/mqtt"
	"github.com/fryyyyy/zeekr-hass/internal/transmission"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// maxQuietInterval bounds how long we go without retransmitting unchanged
// data, so Home Assistant keeps seeing a fresh retained state.
const maxQuietInterval = 15 * time.Minute

// dispatcher glues the coordinator's command surface to the manual-refresh
// channel and the message bus, satisfying what the entity table needs. Every
// command pushes the optimistically patched state straight onto the bus so
// Home Assistant sees it immediately instead of after the next poll.
type dispatcher struct {
	*coordinator.Coordinator
	refresh chan struct{}
	bus     *bus.Bus
}

// RequestRefresh asks the collector for an immediate out-of-schedule poll.
// Coalesces when one is already pending.
func (d *dispatcher) RequestRefresh() {
	select {
	case d.refresh <- struct{}{}:
	default:
	}
}

// publishNow pushes the coordinator's current state, including any optimistic
// patch just applied, to the transmit scheduler.
func (d *dispatcher) publishNow() {
	d.bus.Publish(buildUpdate(d.Coordinator))
}

func (d *dispatcher) Dispatch(ctx context.Context, vin string, cmd coordinator.Command) coordinator.CommandResult {
	res := d.Coordinator.Dispatch(ctx, vin, cmd)
	if res.Sent {
		d.publishNow()
	}
	return res
}

func (d *dispatcher) Patch(vin string, value any, path ...string) {
	d.Coordinator.Patch(vin, value, path...)
	d.publishNow()
}

func (d *dispatcher) SubmitTravelPlan(ctx context.Context, vin string, plan api.TravelPlan) error {
	if err := d.Coordinator.SubmitTravelPlan(ctx, vin, plan); err != nil {
		return err
	}
	d.publishNow()
	return nil
}

func (d *dispatcher) SubmitChargingPlan(ctx context.Context, vin string, plan api.ChargingPlan) error {
	if err := d.Coordinator.SubmitChargingPlan(ctx, vin, plan); err != nil {
		return err
	}
	d.publishNow()
	return nil
}

// Run launches the poll/transmit pipeline and blocks until ctx is cancelled.
// A nil mqttClient runs the collector without a transmitter, which is only
// useful for verifying cloud connectivity.
func Run(
	parentCtx context.Context,
	cfg *config.Config,
	coord *coordinator.Coordinator,
	mqttClient *mqtt.Client,
	logger *logrus.Logger,
) {
	ctx, cancel := context.WithCancel(parentCtx)
	go func() {
		<-parentCtx.Done()
		cancel()
	}()

	messageBus := bus.New()
	disp := &dispatcher{Coordinator: coord, refresh: make(chan struct{}, 1), bus: messageBus}
	table := entities.Table(vehicle.DefaultInterpretations())

	var mqttTx *transmission.MQTTTransmitter
	if mqttClient != nil {
		mqttTx = transmission.NewMQTTTransmitter(mqttClient, cfg.DiscoveryPrefix, table, logger)
		router := transmission.NewRouter(table, disp, logger)
		if err := router.Start(ctx, mqttClient); err != nil {
			logger.WithError(err).Error("Failed to subscribe to command topics")
		}
		err := mqttClient.Subscribe(transmission.ResetStatsTopic, func(_ pahomqtt.Client, _ pahomqtt.Message) {
			coord.Stats().ResetToday()
			logger.Info("Daily API counters reset")
		})
		if err != nil {
			logger.WithError(err).Error("Failed to subscribe to stats reset topic")
		}
	} else {
		logger.Warn("No MQTT broker configured; data will only be logged")
	}

	grp, ctx := errgroup.WithContext(ctx)

	// Collector -----------------------------------------------------------
	grp.Go(func() error {
		refresh := func() {
			if err := coord.Refresh(ctx); err != nil {
				logger.WithError(err).Warn("collector: refresh failed")
				return
			}
			messageBus.Publish(buildUpdate(coord))
		}

		refresh()
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				refresh()
			case <-disp.refresh:
				logger.Debug("collector: manual refresh requested")
				refresh()
			}
		}
	})

	// Transmit scheduler ---------------------------------------------------
	sub := messageBus.Subscribe()
	grp.Go(func() error {
		var latest, lastSent *domain.Update
		var lastSentAt time.Time
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case u, ok := <-sub:
				if !ok {
					return nil
				}
				latest = u
			case <-ticker.C:
				if latest == nil || mqttTx == nil {
					continue
				}
				fresh := time.Since(lastSentAt) < maxQuietInterval
				if fresh && !domain.Changed(lastSent, latest) {
					continue
				}
				if err := mqttTx.Transmit(latest); err != nil {
					logger.WithError(err).Warn("MQTT transmit failed")
					// Retry on the next tick even without a data change.
					lastSent = nil
					continue
				}
				lastSent = latest
				lastSentAt = time.Now()
			}
		}
	})

	if err := grp.Wait(); err != nil && err != context.Canceled {
		logger.WithError(err).Warn("app: background group exited")
	}

	// Flush any debounced counter writes before the process exits.
	coord.Stats().Shutdown()
}

func buildUpdate(coord *coordinator.Coordinator) *domain.Update {
	data := coord.Data()
	models := make(map[string]string, len(data))
	for vin := range data {
		if v := coord.VehicleByVIN(vin); v != nil {
			models[vin] = v.Model()
		}
	}
	return &domain.Update{
		Data:     data,
		Models:   models,
		PolledAt: coord.LastPoll(),
		Stats:    coord.Stats().Counts(),
	}
}
