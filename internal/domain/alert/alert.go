package alert

import (
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

const (
	alertTitle     = "Drone Detected!"
	defaultMessage = "A drone was detected in the camera feed."
)

// Policy decides whether an event interrupts the user. It only decides;
// presentation belongs to the bus subscribers.
type Policy struct{}

// ShouldAlert is true iff the event's object type is drone.
func (Policy) ShouldAlert(event detection.Event) bool {
	return detection.NormalizeObjectType(string(event.ObjectType)) == detection.ObjectDrone
}

// Publisher is the part of the event bus the dispatcher needs.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// Dispatcher notifies presentation of recorded events and alerts.
type Dispatcher struct {
	policy  Policy
	bus     Publisher
	logger  *logging.Logger
	metrics *observability.Metrics
}

// NewDispatcher wires a dispatcher onto bus.
func NewDispatcher(bus Publisher, logger *logging.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Dispatcher{bus: bus, logger: logger, metrics: metrics}
}

// Dispatch publishes event on the recorded topic and, when the policy says so,
// on the alert topic. It reports whether an alert was raised.
func (d *Dispatcher) Dispatch(event detection.Event) bool {
	if d.metrics != nil {
		d.metrics.EventsRecorded.Inc()
	}
	d.bus.PublishAsync(eventbus.TopicEventRecorded, event)

	if !d.policy.ShouldAlert(event) {
		d.logger.InfoTag("ALERT", "event logged without alert: id=%s object_type=%s", event.ID, event.ObjectType)
		return false
	}

	message := event.Explanation
	if message == "" {
		message = defaultMessage
	}
	if d.metrics != nil {
		d.metrics.Alerts.Inc()
	}
	d.logger.WarnTag("ALERT", "drone detected: id=%s explanation=%q", event.ID, event.Explanation)
	d.bus.PublishAsync(eventbus.TopicAlert, eventbus.AlertData{
		Title:   alertTitle,
		Message: message,
		Event:   event,
	})
	return true
}
