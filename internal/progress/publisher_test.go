package progress

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transfer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// doneToken is a completed mqtt.Token
type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }

func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	messages     []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &doneToken{}
}

func (c *fakeClient) IsConnected() bool {
	return c.connected
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
	c.connected = false
}

func TestObserve(t *testing.T) {
	client := &fakeClient{connected: true}
	pub := NewPublisher(client, Config{TopicPrefix: "home/avr", QoS: 1}, testLogger())

	now := time.Now()
	events := []transfer.Event{
		{Kind: transfer.EventState, At: now, State: transfer.StateStreamingChannels},
		{Kind: transfer.EventStream, At: now, Floats: 128},
		{Kind: transfer.EventCommand, At: now, Command: "SET_COEFDT", Outcome: "acked"},
		{Kind: transfer.EventCommand, At: now, Command: "SET_COEFDT", Outcome: "rejected", Err: errors.New("NAK")},
		{Kind: transfer.EventChannel, At: now, Channel: "SW1"},
		{Kind: transfer.EventDone, At: now, Elapsed: 2 * time.Second},
	}
	for _, e := range events {
		pub.Observe(e)
	}

	tests := []struct {
		topic    string
		retained bool
		check    func(m Message) bool
	}{
		{"home/avr/state", true, func(m Message) bool { return m.State == "streaming_channels" }},
		{"home/avr/command", false, func(m Message) bool { return m.Outcome == "rejected" && m.Error == "NAK" }},
		{"home/avr/channel", false, func(m Message) bool { return m.Channel == "SW1" }},
		{"home/avr/done", true, func(m Message) bool { return m.ElapsedMs == 2000 && m.Error == "" }},
	}

	if len(client.messages) != len(tests) {
		t.Fatalf("Expected %d messages, got %d", len(tests), len(client.messages))
	}
	for i, tt := range tests {
		got := client.messages[i]
		if got.topic != tt.topic {
			t.Errorf("Message %d: expected topic %s, got %s", i, tt.topic, got.topic)
		}
		if got.retained != tt.retained {
			t.Errorf("Message %d: expected retained=%v", i, tt.retained)
		}
		if got.qos != 1 {
			t.Errorf("Message %d: expected qos 1, got %d", i, got.qos)
		}
		var msg Message
		if err := json.Unmarshal(got.payload, &msg); err != nil {
			t.Fatalf("Message %d: invalid JSON: %v", i, err)
		}
		if msg.Run != pub.RunID() {
			t.Errorf("Message %d: expected run %s, got %s", i, pub.RunID(), msg.Run)
		}
		if !tt.check(msg) {
			t.Errorf("Message %d: unexpected body %s", i, got.payload)
		}
	}
}

func TestObserveDisconnected(t *testing.T) {
	client := &fakeClient{connected: false}
	pub := NewPublisher(client, Config{TopicPrefix: "ocatransfer"}, testLogger())

	pub.Observe(transfer.Event{Kind: transfer.EventState, State: transfer.StateConnected})
	if len(client.messages) != 0 {
		t.Errorf("Expected nothing published while disconnected, got %d", len(client.messages))
	}
}

func TestClose(t *testing.T) {
	client := &fakeClient{connected: true}
	pub := NewPublisher(client, Config{TopicPrefix: "ocatransfer"}, testLogger())
	pub.Close()
	if !client.disconnected {
		t.Errorf("Expected client to be disconnected")
	}
}
