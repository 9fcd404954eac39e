package progress

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transfer"
)

// Config holds the broker settings
type Config struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Client is the part of the MQTT client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Message is the JSON body of a progress event
type Message struct {
	Run        string    `json:"run"`
	Kind       string    `json:"kind"`
	State      string    `json:"state,omitempty"`
	Label      string    `json:"label,omitempty"`
	Command    string    `json:"command,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Curve      string    `json:"curve,omitempty"`
	Floats     int       `json:"floats,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms,omitempty"`
	Extensions int       `json:"extensions,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends transfer events to an MQTT broker
type Publisher struct {
	client Client
	config Config
	logger *slog.Logger
	run    string
}

// generateRunID creates a random id shared by every message of one run
func generateRunID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Connect creates a publisher connected to config.Broker.
// A broker that is unreachable at start is logged and retried in the background;
// progress reporting never blocks the transfer.
func Connect(config Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)

	clientID := config.ClientID
	if clientID == "" {
		clientID = "ocatransfer"
	}
	opts.SetClientID(clientID + "_" + generateRunID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info("MQTT connected to broker", slog.String("broker", config.Broker))
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost, will auto-reconnect", slog.String("error", err.Error()))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(5 * time.Second) {
		if token.Error() != nil {
			logger.Warn("MQTT initial connection failed, will retry in background",
				slog.String("error", token.Error().Error()))
		}
	} else {
		logger.Warn("MQTT connection timeout, will retry in background")
	}

	return NewPublisher(client, config, logger)
}

// NewPublisher wraps an existing client
func NewPublisher(client Client, config Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		config: config,
		logger: logger,
		run:    generateRunID(),
	}
}

// RunID returns the id stamped on every message
func (p *Publisher) RunID() string {
	return p.run
}

// Topic returns the topic for an event kind: {prefix}/{kind}
func (p *Publisher) Topic(kind transfer.EventKind) string {
	return fmt.Sprintf("%s/%s", p.config.TopicPrefix, kind)
}

// Observe implements transfer.Observer. Successful per-packet commands and
// stream packets are not published; state, channel, decimation, failures and
// the final result are.
func (p *Publisher) Observe(e transfer.Event) {
	switch e.Kind {
	case transfer.EventStream:
		return
	case transfer.EventCommand:
		if e.Err == nil && e.Command == "SET_COEFDT" {
			return
		}
	}

	msg := Message{
		Run:        p.run,
		Kind:       e.Kind.String(),
		Label:      e.Label,
		Command:    e.Command,
		Outcome:    e.Outcome,
		Channel:    e.Channel,
		Curve:      e.Curve,
		Floats:     e.Floats,
		ElapsedMs:  e.Elapsed.Milliseconds(),
		Extensions: e.Extensions,
		Timestamp:  e.At.UTC(),
	}
	if e.Kind == transfer.EventState {
		msg.State = e.State.String()
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}

	// The latest state and result stay retained for late subscribers
	retained := e.Kind == transfer.EventState || e.Kind == transfer.EventDone

	if err := p.publish(p.Topic(e.Kind), retained, msg); err != nil {
		p.logger.Debug("Progress event not published", slog.String("error", err.Error()))
	}
}

func (p *Publisher) publish(topic string, retained bool, msg Message) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("MQTT not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	token := p.client.Publish(topic, p.config.QoS, retained, data)

	// Wait for completion in background
	go func() {
		if token.Wait() && token.Error() != nil {
			p.logger.Warn("Failed to publish progress event",
				slog.String("topic", topic),
				slog.String("error", token.Error().Error()))
		}
	}()

	return nil
}

// Close disconnects from the broker after letting queued messages drain
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected from broker")
	}
}
