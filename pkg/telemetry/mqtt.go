// Package telemetry publishes session lifecycle events and completed
// measurements to an MQTT broker for downstream consumers.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/optiscope/go-pdmeter/internal/log"
	"github.com/optiscope/go-pdmeter/pkg/metrology"
)

// Config holds broker settings. An empty Broker disables telemetry.
type Config struct {
	Broker      string `yaml:"broker"`       // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`    // default "pdmeter"
	TopicPrefix string `yaml:"topic_prefix"` // default "pdmeter"
}

// Publisher sends measurement telemetry over MQTT.
type Publisher struct {
	client mqtt.Client
	prefix string
}

type resultPayload struct {
	SessionID   string                `json:"session_id"`
	Timestamp   time.Time             `json:"timestamp"`
	Final       metrology.Measurement `json:"final"`
	SampleCount int                   `json:"sample_count"`
}

type eventPayload struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

// New connects to the broker. Returns (nil, nil) when telemetry is
// disabled by an empty broker address.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, nil
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pdmeter"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "pdmeter"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", cfg.Broker, token.Error())
	}
	log.Info("telemetry connected", "broker", cfg.Broker)

	return &Publisher{client: client, prefix: cfg.TopicPrefix}, nil
}

// PublishResult sends a completed session's final measurement.
func (p *Publisher) PublishResult(sessionID string, final metrology.Measurement, sampleCount int) error {
	return p.publish(p.prefix+"/result", resultPayload{
		SessionID:   sessionID,
		Timestamp:   time.Now().UTC(),
		Final:       final,
		SampleCount: sampleCount,
	})
}

// PublishEvent sends a session lifecycle event (started, complete,
// aborted, reset).
func (p *Publisher) PublishEvent(sessionID, event string) error {
	return p.publish(p.prefix+"/session", eventPayload{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Event:     event,
	})
}

func (p *Publisher) publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, 0, false, data)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
