package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/dailyusage/internal/config"
	"github.com/jgoulah/dailyusage/pkg/models"
)

const publishTimeout = 10 * time.Second

// Publisher sends written daily usage rows to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the broker configured in cfg
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.GetClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newWithClient(client, cfg.GetTopicPrefix()), nil
}

func newWithClient(client mqtt.Client, topicPrefix string) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
	}
}

// Payload is the retained message body for one source and date
type Payload struct {
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	First       *float64 `json:"first"`
	Last        *float64 `json:"last"`
	Consumption *float64 `json:"consumption,omitempty"`
	RunID       string   `json:"run_id"`
}

// Topic returns the topic a source's daily usage is published on
func Topic(prefix, name string) string {
	return fmt.Sprintf("%s/%s/daily", prefix, name)
}

// NewPayload builds the message body for a row
func NewPayload(usage models.DailyUsage, runID string) Payload {
	p := Payload{
		Date:  usage.DateString(),
		Name:  usage.Name,
		First: usage.First,
		Last:  usage.Last,
		RunID: runID,
	}
	if c, ok := usage.Consumption(); ok {
		p.Consumption = &c
	}
	return p
}

// Publish sends a retained message for the row
func (p *Publisher) Publish(usage models.DailyUsage, runID string) error {
	body, err := json.Marshal(NewPayload(usage, runID))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.topicPrefix, usage.Name)
	token := p.client.Publish(topic, 1, true, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
