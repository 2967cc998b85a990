package event

import (
	"context"
	"time"

	"github.com/vinayprograms/taskwire/bus"
	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/logging"
)

// Dispatcher connects a handler registry to the broker. Each worker
// process runs exactly one dispatcher with one receive loop; concurrency
// comes from running more worker processes, not more loops.
type Dispatcher struct {
	bus      bus.MessageBus
	registry *Registry
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher over the given bus and registry.
func NewDispatcher(b bus.MessageBus, r *Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      b,
		registry: r,
		log:      log.WithComponent("event"),
	}
}

// Publish sends an event to the bus. Fire-and-forget: success means the
// broker accepted the message, not that any listener ran. Fails only if
// the broker channel is unreachable.
func (d *Dispatcher) Publish(topic string, payload map[string]interface{}) error {
	evt := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := Marshal(evt)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidEvent, "encode event",
			errors.WithTopic(topic))
	}

	if err := d.bus.Publish(topic, data); err != nil {
		return errors.WrapWithCode(err, errors.CodeConnection, "publish event",
			errors.WithTopic(topic))
	}

	d.log.Debug("published", map[string]interface{}{"topic": topic})
	return nil
}

// Run blocks on the receive loop until ctx is canceled or the broker
// channel closes. A closed channel is a CONNECTION failure: the error is
// returned so the process can crash and restart under supervision.
//
// Handlers execute synchronously on this loop and must be short or
// delegate long-running work themselves.
func (d *Dispatcher) Run(ctx context.Context) error {
	sub, err := d.bus.Subscribe(bus.FirehoseSubject)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeConnection, "subscribe firehose")
	}
	defer sub.Unsubscribe()

	d.log.Info("receive loop started")

	for {
		select {
		case <-ctx.Done():
			d.log.Info("receive loop stopped")
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return errors.New(errors.CodeConnection, "broker subscription closed")
			}
			d.dispatch(msg)
		}
	}
}

// dispatch decodes one message and invokes every matching handler in
// order. One listener's failure never blocks or crashes its siblings or
// the loop.
func (d *Dispatcher) dispatch(msg *bus.Message) {
	evt, err := Unmarshal(msg.Subject, msg.Data)
	if err != nil {
		d.log.Warn("undecodable event dropped", map[string]interface{}{
			"topic": msg.Subject,
			"error": err.Error(),
		})
		return
	}

	for _, b := range d.registry.matches(evt.Topic) {
		d.invoke(b, evt)
	}
}

// invoke runs a single handler with panic and error isolation.
func (d *Dispatcher) invoke(b binding, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			perr := errors.RecoverPanic(r)
			d.log.Error("handler panicked", map[string]interface{}{
				"handler": b.name,
				"topic":   evt.Topic,
				"task_id": evt.TaskID(),
				"error":   perr.Error(),
			})
		}
	}()

	if err := b.handler(evt); err != nil {
		d.log.Error("handler failed", map[string]interface{}{
			"handler": b.name,
			"topic":   evt.Topic,
			"task_id": evt.TaskID(),
			"attempt": errors.Attempt(err),
			"error":   err.Error(),
		})
	}
}
