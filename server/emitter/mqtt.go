// Package emitter publishes session events (counted reps, resets) to an MQTT
// broker so dashboards can follow a workout without holding a socket open.
package emitter

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/san-kum/pushup-cv/server/models"
	"go.uber.org/zap"
)

// Publisher is what the processor needs from an event sink.
type Publisher interface {
	Publish(event models.Event) error
	Close()
}

// publisher is the subset of mqtt.Client the emitter uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTConfig struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
}

type MQTTEmitter struct {
	cfg    MQTTConfig
	client publisher
	logger *zap.Logger
	close  func()

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

func NewMQTTEmitter(cfg MQTTConfig, logger *zap.Logger) *MQTTEmitter {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger,
		published: make(map[string]uint64),
	}
}

// Connect dials the broker. Reconnection after a drop is left to paho.
func (e *MQTTEmitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("MQTT connection established",
			zap.String("broker", e.cfg.Broker),
			zap.String("client_id", e.cfg.ClientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("MQTT connection lost, will auto-reconnect",
			zap.Error(err),
			zap.String("broker", e.cfg.Broker))
	}

	client := mqtt.NewClient(opts)

	e.logger.Info("Connecting to MQTT broker", zap.String("broker", e.cfg.Broker))
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.client = client
	e.close = func() { client.Disconnect(250) }
	e.setConnected(true)
	return nil
}

func (e *MQTTEmitter) Topic(sessionID string) string {
	return fmt.Sprintf("%s/%s/events", e.cfg.TopicPrefix, sessionID)
}

func (e *MQTTEmitter) Publish(event models.Event) error {
	if e.client == nil {
		return fmt.Errorf("mqtt emitter not connected")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := e.Topic(event.SessionID)
	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(e.cfg.PublishTimeout) {
		e.recordError()
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		e.recordError()
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
	return nil
}

type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for topic, count := range e.published {
		published[topic] = count
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors}
}

func (e *MQTTEmitter) Close() {
	if e.close != nil {
		e.close()
	}
	e.setConnected(false)
}

func (e *MQTTEmitter) setConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
}

func (e *MQTTEmitter) recordError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
