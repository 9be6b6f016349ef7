package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/stasyk411/gbr/core/monitoring"
)

// CommandFunc handles one crew command and returns the reply to publish.
type CommandFunc func(ctx context.Context, handle, text string) any

// CrewListener receives crew commands on <prefix>/<handle>/status and
// answers on <prefix>/<handle>/reply. The crew is identified by the topic,
// never by the payload.
type CrewListener struct {
	client  *Client
	handle  CommandFunc
	timeout time.Duration
}

// ListenCrewCommands subscribes to the status topic of every crew.
func ListenCrewCommands(client *Client, fn CommandFunc) (*CrewListener, error) {
	l := &CrewListener{client: client, handle: fn, timeout: 10 * time.Second}
	topic := client.cfg.TopicPrefix + "/+/status"
	if err := client.Subscribe(topic, client.cfg.qos("status"), l.onMessage); err != nil {
		return nil, err
	}
	return l, nil
}

// commandText accepts {"text": "..."} or a bare text payload.
func commandText(payload []byte) string {
	var m struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &m); err == nil && m.Text != "" {
		return strings.TrimSpace(m.Text)
	}
	return strings.TrimSpace(string(payload))
}

func (l *CrewListener) onMessage(_ paho.Client, msg paho.Message) {
	handle, ok := l.client.cfg.handleFromTopic(msg.Topic())
	if !ok {
		l.client.logger.Warnf("ignoring crew message on %s", msg.Topic())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	reply := l.handle(ctx, handle, commandText(msg.Payload()))
	payload, err := json.Marshal(reply)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "contact": handle})
		return
	}
	topic := l.client.cfg.topic(handle, "reply")
	if err := l.client.publish(topic, l.client.cfg.qos("reply"), payload, map[string]string{"contact": handle}); err != nil {
		l.client.logger.Errorf("reply to %s: %v", handle, err)
	}
}
