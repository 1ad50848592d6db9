package transport

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttQueueSize = 128

// MQTTOptions configures an MQTT-backed radio transport.
type MQTTOptions struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string
	// TopicPrefix is the topic root; frames are published to
	// "{prefix}/{meshID}" as base64. Defaults to "meshcore".
	TopicPrefix string
	// MeshID identifies this node's transmissions so they can be skipped
	// on receive.
	MeshID   string
	Username string
	Password string
	Logger   *slog.Logger
}

// MQTTTransport carries MeshCore packets over an MQTT broker, base64
// encoded on "{prefix}/{meshID}" topics. The inbound buffered channel is
// the synchronization boundary between the broker client's goroutines and
// the engine's single-threaded update loop.
type MQTTTransport struct {
	client  mqtt.Client
	topic   string
	inbound chan RxPacket
	log     *slog.Logger
}

// NewMQTT connects to the broker and subscribes to all mesh topics under
// the prefix.
func NewMQTT(opts MQTTOptions) (*MQTTTransport, error) {
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = "meshcore"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	t := &MQTTTransport{
		topic:   prefix + "/" + opts.MeshID,
		inbound: make(chan RxPacket, mqttQueueSize),
		log:     log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID("ezmesh-" + opts.MeshID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	t.client = mqtt.NewClient(clientOpts)
	if token := t.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	subTopic := prefix + "/+"
	token := t.client.Subscribe(subTopic, 0, t.onMessage)
	if token.Wait() && token.Error() != nil {
		t.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt subscribe %q: %w", subTopic, token.Error())
	}

	log.Info("mqtt transport connected",
		"broker", opts.BrokerURL,
		"topic", t.topic)
	return t, nil
}

func (t *MQTTTransport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if msg.Topic() == t.topic {
		return // our own transmission
	}

	data, err := base64.StdEncoding.DecodeString(string(msg.Payload()))
	if err != nil {
		t.log.Debug("failed to decode base64 payload",
			"topic", msg.Topic(),
			"error", err)
		return
	}

	select {
	case t.inbound <- RxPacket{Data: data}:
	default:
		t.log.Warn("inbound queue full, dropping frame", "topic", msg.Topic())
	}
}

// Send publishes a frame on this node's topic.
func (t *MQTTTransport) Send(data []byte) error {
	payload := base64.StdEncoding.EncodeToString(data)
	token := t.client.Publish(t.topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, token.Error())
	}
	return nil
}

// TryReceive returns the next queued inbound frame, if any.
func (t *MQTTTransport) TryReceive() (RxPacket, bool) {
	select {
	case pkt := <-t.inbound:
		return pkt, true
	default:
		return RxPacket{}, false
	}
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() {
	t.client.Disconnect(250)
}
