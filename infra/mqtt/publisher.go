// Package mqtt publishes scheduler decisions and session reports to an MQTT
// broker so external dashboards can follow sessions live.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/maelqr/carbonsched/core/logger"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/core/report"
)

// Config defines the broker connection and topic layout.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "carbonsched"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "carbonsched"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

// pahoClient is the subset of the Paho client the publisher relies on.
// Narrowing the dependency keeps the publisher testable without a broker.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher sends JSON-encoded decisions and reports to the broker.
type Publisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewPublisher connects to the broker described by cfg.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	cli := paho.NewClient(opts)
	p := &Publisher{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// newWithClient injects a client. Used by tests.
func newWithClient(cli pahoClient, prefix string, qos byte, log logger.Logger) *Publisher {
	return &Publisher{cli: cli, prefix: prefix, qos: qos, log: log}
}

func (p *Publisher) connect() error {
	tok := p.cli.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tok := p.cli.Publish(topic, p.qos, false, payload)
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish timeout on %s", topic)
	}
	return tok.Error()
}

type decisionPayload struct {
	SessionID string                   `json:"session_id"`
	Decision  model.SchedulingDecision `json:"decision"`
}

// PublishDecision sends a gate evaluation to <prefix>/decisions.
func (p *Publisher) PublishDecision(sessionID string, d model.SchedulingDecision) error {
	return p.publish(p.prefix+"/decisions", decisionPayload{SessionID: sessionID, Decision: d})
}

// PublishReport sends a finalized session report to <prefix>/sessions.
func (p *Publisher) PublishReport(r report.SessionReport) error {
	return p.publish(p.prefix+"/sessions", r)
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
