package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quells/managedmodel/internal/infrastructure/config"
	"github.com/quells/managedmodel/internal/model"
)

// testConfig returns an MQTT configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "managedmodel-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{name: "empty topic", topic: "", qos: 1, want: ErrInvalidTopic},
		{name: "invalid qos", topic: "t", qos: 3, want: ErrInvalidQoS},
		{name: "oversized", topic: "t", payload: make([]byte, maxPayloadSize+1), qos: 1, want: ErrPublishFailed},
		{name: "disconnected", topic: "t", payload: []byte("{}"), qos: 1, want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type warnRecorder struct {
	warnings []string
}

func (w *warnRecorder) Error(msg string, _ ...any) {}
func (w *warnRecorder) Warn(msg string, _ ...any)  { w.warnings = append(w.warnings, msg) }

func TestPublishChangeDisconnected(t *testing.T) {
	rec := &warnRecorder{}
	client := &Client{cfg: testConfig()}
	client.SetLogger(rec)

	err := client.PublishChange(context.Background(), model.ChangeEvent{
		Table:  "Person",
		Action: model.ActionInsert,
		Key:    "abc",
		At:     time.Unix(1700000000, 0).UTC(),
	})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("PublishChange() error = %v, want ErrNotConnected", err)
	}
	if len(rec.warnings) != 1 {
		t.Errorf("logged %d warnings, want 1", len(rec.warnings))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishChange(ctx, model.ChangeEvent{Table: "Person"}); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishChange(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestEncodeChange(t *testing.T) {
	payload, err := encodeChange(model.ChangeEvent{
		Table:  "Person",
		Action: model.ActionRemove,
		Key:    "abc",
		At:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("encodeChange() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := map[string]any{
		"table":  "Person",
		"action": "remove",
		"key":    "abc",
		"at":     "2024-01-02T03:04:05Z",
	}
	for k, v := range want {
		if decoded[k] != v {
			t.Errorf("payload[%s] = %v, want %v", k, decoded[k], v)
		}
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "entity change", got: topics.EntityChange("Person", model.ActionUpdate), want: "managedmodel/entity/Person/update"},
		{name: "table changes", got: topics.TableChanges("People"), want: "managedmodel/entity/People/+"},
		{name: "all changes", got: topics.AllEntityChanges(), want: "managedmodel/entity/#"},
		{name: "system status", got: topics.SystemStatus(), want: "managedmodel/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "svc"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "managedmodel-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "svc" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}

	cfg.Broker.ClientID = ""
	generated := buildClientOptions(cfg).ClientID
	if !strings.HasPrefix(generated, "managedmodel-") || len(generated) != len("managedmodel-")+8 {
		t.Errorf("generated ClientID = %q", generated)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		status  string
		reason  string
	}{
		{name: "online", payload: buildOnlinePayload("c1"), status: "online"},
		{name: "offline", payload: buildOfflinePayload("c1"), status: "offline", reason: "graceful_shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p statusPayload
			if err := json.Unmarshal([]byte(tt.payload), &p); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if p.Status != tt.status || p.Reason != tt.reason || p.ClientID != "c1" {
				t.Errorf("payload = %+v", p)
			}
		})
	}
}
