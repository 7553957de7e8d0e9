package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the part of the MQTT client the MQTTNotifier uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// alertPayload is the JSON document published for each alert.
type alertPayload struct {
	Processes   []Record `json:"processes"`
	MaxRestarts int      `json:"max_restarts"`
	Timestamp   string   `json:"timestamp"`
}

// MQTTNotifier publishes alerts as JSON to an MQTT topic.
// Alerts are events, so they are never retained.
type MQTTNotifier struct {
	publisher   Publisher
	topic       string
	qos         byte
	maxRestarts int
	now         func() time.Time
}

// NewMQTTNotifier creates a notifier publishing to topic with qos.
func NewMQTTNotifier(publisher Publisher, topic string, qos byte, maxRestarts int) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topic:       topic,
		qos:         qos,
		maxRestarts: maxRestarts,
		now:         time.Now,
	}
}

// Name implements Notifier.
func (n *MQTTNotifier) Name() string {
	return "mqtt"
}

// Notify publishes one alert message for batch.
func (n *MQTTNotifier) Notify(_ context.Context, batch []Record) (Receipt, error) {
	if len(batch) == 0 {
		return Receipt{}, ErrEmptyBatch
	}

	payload, err := json.Marshal(alertPayload{
		Processes:   batch,
		MaxRestarts: n.maxRestarts,
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding alert: %w", err)
	}

	if err := n.publisher.Publish(n.topic, payload, n.qos, false); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Channel:      n.Name(),
		Confirmation: fmt.Sprintf("published %d bytes to %s", len(payload), n.topic),
	}, nil
}
