package report

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Publisher is the part of an MQTT client the reporter needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Sample is the JSON payload published for each row.
type Sample struct {
	Model  string         `json:"model"`
	Time   float64        `json:"t"`
	Values map[string]any `json:"values"`
	SentAt time.Time      `json:"sent_at"`
}

// MQTT publishes every row as a JSON sample.
type MQTT struct {
	pub     Publisher
	topic   string
	qos     byte
	model   string
	names   []string
	timeout time.Duration
	close   func()
	logger  zerolog.Logger
}

func NewMQTT(pub Publisher, topic, model string, qos byte, logger zerolog.Logger) *MQTT {
	return &MQTT{
		pub:     pub,
		topic:   topic,
		qos:     qos,
		model:   model,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// DialMQTT connects to the broker and returns a reporter owning the client.
func DialMQTT(cfg MQTTConfig, model string, logger zerolog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}
	logger.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("connected to mqtt broker")

	r := NewMQTT(client, cfg.Topic, model, cfg.QoS, logger)
	r.close = func() { client.Disconnect(250) }
	return r, nil
}

func (m *MQTT) Header(names []string) error {
	m.names = append([]string(nil), names...)
	return nil
}

func (m *MQTT) Row(t float64, values []dynamo.Value) error {
	if len(values) != len(m.names) {
		return fmt.Errorf("row has %d values for %d columns", len(values), len(m.names))
	}
	sample := Sample{
		Model:  m.model,
		Time:   t,
		Values: make(map[string]any, len(values)),
		SentAt: time.Now().UTC(),
	}
	for i, v := range values {
		sample.Values[m.names[i]] = native(v)
	}
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	token := m.pub.Publish(m.topic, m.qos, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish to %s timed out", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
		m.close = nil
	}
	return nil
}
