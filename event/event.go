package event

import (
	"encoding/json"
	"time"
)

// Topics published and consumed by the orchestration core.
const (
	// TopicTaskCreated announces a new task: {task_id, goal}.
	TopicTaskCreated = "task.created"

	// TopicPlanApproved carries an approved execution plan: {task_id, plan}.
	TopicPlanApproved = "plan.approved"

	// TopicTaskCompleted announces success: {task_id, result}.
	TopicTaskCompleted = "task.completed"

	// TopicTaskFailed announces terminal failure:
	// {task_id, error, attempt_count}.
	TopicTaskFailed = "task.failed"

	// TopicStepCompleted reports per-step progress during execution:
	// {task_id, step, tool, result}.
	TopicStepCompleted = "task.step.completed"
)

// Event is an immutable record delivered by the bus. Events are
// append-only; the dispatcher never mutates a published event.
type Event struct {
	// Topic is the dot-delimited event category, e.g. "task.created".
	Topic string `json:"topic"`

	// Payload is structured key/value data. Task-related events carry
	// at minimum the task identifier under "task_id".
	Payload map[string]interface{} `json:"payload"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
}

// TaskID returns the task identifier from the payload, or "" if absent.
func (e Event) TaskID() string {
	id, _ := e.Payload["task_id"].(string)
	return id
}

// envelope is the wire form. The topic travels as the broker subject, so
// only payload and timestamp are serialized.
type envelope struct {
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Marshal encodes an event for publication.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(envelope{Payload: e.Payload, Timestamp: e.Timestamp})
}

// Unmarshal decodes an event received on the given subject.
func Unmarshal(topic string, data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, err
	}
	return Event{
		Topic:     topic,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	}, nil
}
