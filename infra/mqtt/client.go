package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/stasyk411/gbr/core/monitoring"
	"github.com/stasyk411/gbr/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// TopicPrefix roots every crew topic, "gbr/crew" by default.
	TopicPrefix string `json:"topic_prefix"`
	// QoS per topic kind: "alert", "ack", "status", "reply".
	QoS map[string]byte `json:"qos"`
	// RequireAck makes Notify wait for the crew acknowledgment.
	RequireAck bool        `json:"require_ack"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	LWTQoS     byte        `json:"lwt_qos"`
	LWTRetain  bool        `json:"lwt_retain"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "gbr-dispatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "gbr/crew"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

func (c Config) qos(kind string) byte {
	return c.QoS[kind]
}

// topic builds "<prefix>/<handle>/<kind>". Handles are used verbatim apart
// from MQTT wildcard and separator characters.
func (c Config) topic(handle, kind string) string {
	return c.TopicPrefix + "/" + topicSafe.Replace(handle) + "/" + kind
}

var topicSafe = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// handleFromTopic extracts the crew handle from "<prefix>/<handle>/<kind>".
func (c Config) handleFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, c.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	handle, _, ok := strings.Cut(rest, "/")
	return handle, ok && handle != ""
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// Client is a broker connection shared by the crew notifier and the crew
// command listener. Subscriptions are restored on every reconnect.
type Client struct {
	cfg    Config
	cli    pahoClient
	logger logger.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient connects to the MQTT broker.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, logger: logger.New("mqtt_client"), subs: make(map[string]subscription)}
	opts.OnConnect = func(pc paho.Client) {
		c.logger.Infof("MQTT connected to %s", cfg.Broker)
		c.resubscribe(pc)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		c.logger.Warnf("reconnecting to MQTT broker")
	}
	pc := newMQTTClient(opts)
	c.mu.Lock()
	c.cli = pc
	c.mu.Unlock()
	if token := pc.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificates", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Subscribe registers handler for topic and subscribes immediately when
// connected.
func (c *Client) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	cli := c.cli
	c.mu.Unlock()
	if cli == nil || !cli.IsConnected() {
		return nil
	}
	if token := cli.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (c *Client) resubscribe(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()
	for topic, s := range subs {
		if token := pc.Subscribe(topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
			c.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

// publish sends payload with retries and exponential backoff. The final
// failure is reported to the error monitor.
func (c *Client) publish(topic string, qos byte, payload []byte, tags map[string]string) error {
	backoff := time.Duration(c.cfg.BackoffMS) * time.Millisecond
	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff * time.Duration(1<<(attempt-1)))
		}
		token := c.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		c.logger.Warnf("publish to %s attempt %d failed: %v", topic, attempt+1, err)
	}
	t := map[string]string{"module": "mqtt", "topic": topic}
	for k, v := range tags {
		t[k] = v
	}
	coremon.CaptureException(err, t)
	return err
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
