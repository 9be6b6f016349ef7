package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/stasyk411/gbr/core/notify"
)

// alertMessage is published on <prefix>/<handle>/alert.
type alertMessage struct {
	NotificationID string `json:"notification_id"`
	notify.Alert
	SentAt int64 `json:"sent_at"`
}

// Notifier delivers crew alerts over MQTT and optionally waits for the crew
// to acknowledge them on <prefix>/<handle>/ack.
type Notifier struct {
	client *Client

	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewNotifier returns a notify.Notifier publishing through client. When acks
// are required it subscribes to the ack topic of every crew.
func NewNotifier(client *Client) (*Notifier, error) {
	n := &Notifier{client: client, pending: make(map[string]chan struct{})}
	if client.cfg.RequireAck {
		topic := client.cfg.TopicPrefix + "/+/ack"
		if err := client.Subscribe(topic, client.cfg.qos("ack"), n.onAck); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Notifier) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		NotificationID string `json:"notification_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		n.client.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	n.mu.Lock()
	ch, ok := n.pending[m.NotificationID]
	n.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	n.client.logger.Infof("received ack %s", m.NotificationID)
}

// Notify publishes the alert to the crew identified by contactHandle. With
// acks required it blocks until the ack arrives or ctx ends, in which case
// notify.ErrAckTimeout is returned.
func (n *Notifier) Notify(ctx context.Context, contactHandle string, alert notify.Alert) error {
	if contactHandle == "" {
		return notify.ErrNoContact
	}
	id := uuid.NewString()
	payload, err := json.Marshal(alertMessage{NotificationID: id, Alert: alert, SentAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	var ack chan struct{}
	if n.client.cfg.RequireAck {
		ack = make(chan struct{}, 1)
		n.mu.Lock()
		n.pending[id] = ack
		n.mu.Unlock()
		defer func() {
			n.mu.Lock()
			delete(n.pending, id)
			n.mu.Unlock()
		}()
	}

	topic := n.client.cfg.topic(contactHandle, "alert")
	tags := map[string]string{"contact": contactHandle, "call_id": fmt.Sprint(alert.CallID)}
	if err := n.client.publish(topic, n.client.cfg.qos("alert"), payload, tags); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	n.client.logger.Infof("sent alert %s for call %d to %s", id, alert.CallID, topic)
	if ack == nil {
		return nil
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("alert %s: %w", id, notify.ErrAckTimeout)
		}
		return ctx.Err()
	}
}
