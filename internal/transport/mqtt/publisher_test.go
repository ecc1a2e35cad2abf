package mqtt

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/platform/errors"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []published
	err          error
	connected    bool
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(f.err)
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Disconnect(uint)   { f.disconnected = true }

func (f *fakeClient) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func TestPublisherForwardsAlerts(t *testing.T) {
	client := &fakeClient{connected: true}
	pub, err := NewPublisher(client, "dronewatch/alerts", 1, nil)
	require.NoError(t, err)

	bus := eventbus.New(eventbus.Options{})
	defer bus.Stop()
	require.NoError(t, pub.Attach(bus))

	created := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	bus.PublishAsync(eventbus.TopicAlert, eventbus.AlertData{
		Title:   "Drone Detected!",
		Message: "quadcopter",
		Event:   detection.Event{ID: "evt-9", ObjectType: detection.ObjectDrone, Explanation: "quadcopter", CreatedAt: created},
	})
	bus.Flush()

	sent := client.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "dronewatch/alerts", sent[0].topic)
	assert.Equal(t, byte(1), sent[0].qos)

	var msg AlertMessage
	require.NoError(t, sonic.Unmarshal(sent[0].payload, &msg))
	assert.Equal(t, "evt-9", msg.EventID)
	assert.Equal(t, "drone", msg.ObjectType)
	assert.True(t, created.Equal(msg.DetectedAt))

	pub.Close()
	assert.True(t, client.disconnected)
	bus.PublishAsync(eventbus.TopicAlert, eventbus.AlertData{Event: detection.Event{ID: "evt-10"}})
	bus.Flush()
	assert.Len(t, client.sent(), 1, "detached publisher ignores later alerts")
}

func TestPublishAlertError(t *testing.T) {
	client := &fakeClient{err: stderrors.New("broker gone")}
	pub, err := NewPublisher(client, "alerts", 7, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(2), pub.qos)

	err = pub.PublishAlert(eventbus.AlertData{Event: detection.Event{ID: "evt-1"}})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTransport))
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(nil, "alerts", 0, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	_, err = NewPublisher(&fakeClient{}, "", 0, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
