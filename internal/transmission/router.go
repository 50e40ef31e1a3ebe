package transmission

import (
	"context"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/fryyyyy/zeekr-hass/internal/entities"
	"github.com/fryyyyy/zeekr-hass/internal/mqtt"
)

// Subscriber is the subscribe-side MQTT surface the router needs.
type Subscriber interface {
	Subscribe(topic string, handler pahomqtt.MessageHandler) error
}

// Router receives Home Assistant command payloads and routes them to the
// owning entity. Topics follow zeekr/<vin>/<entity>/set, with an optional
// sub-topic (zeekr/<vin>/<entity>/<sub>/set) for multi-channel entities like
// climate.
type Router struct {
	table      map[string]entities.Entity
	dispatcher entities.Dispatcher
	logger     *logrus.Logger
}

// NewRouter indexes the entity table by ID.
func NewRouter(table []entities.Entity, d entities.Dispatcher, logger *logrus.Logger) *Router {
	index := make(map[string]entities.Entity, len(table))
	for _, e := range table {
		if e.Command != nil {
			index[e.ID] = e
		}
	}
	return &Router{table: index, dispatcher: d, logger: logger}
}

// Start subscribes to both command topic shapes.
func (r *Router) Start(ctx context.Context, sub Subscriber) error {
	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		r.HandleMessage(ctx, msg.Topic(), msg.Payload())
	}
	if err := sub.Subscribe(mqtt.BaseTopic+"/+/+/set", handler); err != nil {
		return err
	}
	return sub.Subscribe(mqtt.BaseTopic+"/+/+/+/set", handler)
}

// HandleMessage parses a command topic and runs the entity's command.
// Malformed topics and unknown entities are logged and dropped; a broker
// retry cannot fix either.
func (r *Router) HandleMessage(ctx context.Context, topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[0] != mqtt.BaseTopic || parts[len(parts)-1] != "set" {
		r.logger.WithField("topic", topic).Debug("Ignoring unrecognized command topic")
		return
	}

	vin, entityID := parts[1], parts[2]
	sub := ""
	if len(parts) == 5 {
		sub = parts[3]
	}

	entity, ok := r.table[entityID]
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"topic":  topic,
			"entity": entityID,
		}).Warn("Command for unknown entity ignored")
		return
	}

	if err := entity.Command(ctx, r.dispatcher, vin, sub, string(payload)); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"vin":     vin,
			"entity":  entityID,
			"payload": string(payload),
		}).Warn("Command failed")
		return
	}

	r.logger.WithFields(logrus.Fields{
		"vin":    vin,
		"entity": entityID,
		"sub":    sub,
	}).Info("Command handled")
}
