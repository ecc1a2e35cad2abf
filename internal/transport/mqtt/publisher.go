package mqtt

import (
	"time"

	"github.com/bytedance/sonic"
	paho "github.com/eclipse/paho.mqtt.golang"

	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // ms
)

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Subscriber is the part of the event bus the publisher listens on.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
	Unsubscribe(topic string, fn interface{}) error
}

// AlertMessage is the JSON body published for every drone alert.
type AlertMessage struct {
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	EventID     string    `json:"eventId"`
	ObjectType  string    `json:"objectType"`
	Explanation string    `json:"explanation"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// Dial connects a paho client to the configured broker.
func Dial(cfg config.MQTTConfig, logger *logging.Logger) (paho.Client, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.InfoTag("MQTT", "connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.WarnTag("MQTT", "connection lost: %v", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New(errors.KindTransport, "mqtt.dial", "connect to "+cfg.Broker+" timed out")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(errors.KindTransport, "mqtt.dial", "connect to "+cfg.Broker, err)
	}
	return client, nil
}

// Publisher forwards alerts from the event bus to an MQTT topic.
type Publisher struct {
	client Client
	topic  string
	qos    byte
	logger *logging.Logger

	bus     Subscriber
	onAlert func(eventbus.AlertData)
}

// NewPublisher wires a publisher for topic. QoS is clamped to 0..2.
func NewPublisher(client Client, topic string, qos int, logger *logging.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New(errors.KindConfig, "mqtt.publisher", "client is required")
	}
	if topic == "" {
		return nil, errors.New(errors.KindConfig, "mqtt.publisher", "topic is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	qos = min(max(qos, 0), 2)
	p := &Publisher{client: client, topic: topic, qos: byte(qos), logger: logger}
	p.onAlert = func(a eventbus.AlertData) {
		if err := p.PublishAlert(a); err != nil {
			p.logger.WarnTag("MQTT", "alert not published: event=%s err=%v", a.Event.ID, err)
		}
	}
	return p, nil
}

// Attach subscribes the publisher to alert notifications.
func (p *Publisher) Attach(bus Subscriber) error {
	if err := bus.Subscribe(eventbus.TopicAlert, p.onAlert); err != nil {
		return errors.Wrap(errors.KindTransport, "mqtt.attach", "subscribe to alerts", err)
	}
	p.bus = bus
	return nil
}

// PublishAlert sends one alert and waits for the client to hand it off.
func (p *Publisher) PublishAlert(alert eventbus.AlertData) error {
	payload, err := sonic.Marshal(AlertMessage{
		Title:       alert.Title,
		Message:     alert.Message,
		EventID:     alert.Event.ID,
		ObjectType:  string(alert.Event.ObjectType),
		Explanation: alert.Event.Explanation,
		DetectedAt:  alert.Event.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(errors.KindTransport, "mqtt.publish", "encode alert", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New(errors.KindTransport, "mqtt.publish", "publish timed out")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(errors.KindTransport, "mqtt.publish", "publish alert", err)
	}
	p.logger.InfoTag("MQTT", "alert published: topic=%s event=%s", p.topic, alert.Event.ID)
	return nil
}

// Close detaches from the bus and disconnects.
func (p *Publisher) Close() {
	if p.bus != nil {
		_ = p.bus.Unsubscribe(eventbus.TopicAlert, p.onAlert)
		p.bus = nil
	}
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectWait)
	}
}
