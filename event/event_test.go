package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/taskwire/bus"
	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/logging"
)

func testLogger() *logging.Logger {
	l := logging.New()
	l.SetLevel(logging.LevelError)
	return l
}

func TestEventRoundTrip(t *testing.T) {
	evt := Event{
		Topic:     TopicTaskCreated,
		Payload:   map[string]interface{}{"task_id": "T1", "goal": "Calculate: 2+2"},
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := Marshal(evt)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	got, err := Unmarshal(TopicTaskCreated, data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if got.TaskID() != "T1" {
		t.Errorf("TaskID = %q, want T1", got.TaskID())
	}
	if got.Payload["goal"] != "Calculate: 2+2" {
		t.Errorf("goal = %v", got.Payload["goal"])
	}
	if !got.Timestamp.Equal(evt.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, evt.Timestamp)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"task.created", "task.created", true},
		{"task.created", "task.completed", false},
		{"task.*", "task.created", true},
		{"task.*", "task.completed", true},
		{"task.*", "task.failed", true},
		{"task.*", "plan.approved", false},
		{"*", "task.created", true},
		{"*", "plan.approved", true},
	}

	for _, tt := range tests {
		if got := match(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestRegistryDispatchOrder(t *testing.T) {
	r := NewRegistry()

	var order []string
	record := func(name string) Handler {
		return func(Event) error {
			order = append(order, name)
			return nil
		}
	}

	// Registered interleaved; dispatch must still be exact, wildcard,
	// universal.
	r.Register(Universal, "audit", record("audit"))
	r.Register("task.*", "task-watcher", record("task-watcher"))
	r.Register(TopicTaskCreated, "planner", record("planner"))
	r.Register(TopicTaskCreated, "second-exact", record("second-exact"))

	for _, b := range r.matches(TopicTaskCreated) {
		b.handler(Event{Topic: TopicTaskCreated})
	}

	want := []string{"planner", "second-exact", "task-watcher", "audit"}
	if len(order) != len(want) {
		t.Fatalf("invoked %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("invoked %v, want %v", order, want)
		}
	}
}

func TestWildcardRouting(t *testing.T) {
	// task.* receives task.created, task.completed, task.failed but not
	// plan.approved.
	r := NewRegistry()

	var mu sync.Mutex
	var seen []string
	r.Register("task.*", "watcher", func(evt Event) error {
		mu.Lock()
		seen = append(seen, evt.Topic)
		mu.Unlock()
		return nil
	})

	b := bus.NewMemoryBus(bus.DefaultConfig())
	defer b.Close()
	d := NewDispatcher(b, r, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond) // let the loop subscribe

	for _, topic := range []string{TopicTaskCreated, TopicPlanApproved, TopicTaskCompleted, TopicTaskFailed} {
		if err := d.Publish(topic, map[string]interface{}{"task_id": "T1"}); err != nil {
			t.Fatalf("Publish(%s) error: %v", topic, err)
		}
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("saw %d task.* events, want 3", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, topic := range seen {
		if topic == TopicPlanApproved {
			t.Error("task.* must not receive plan.approved")
		}
	}
	if len(seen) != 3 {
		t.Errorf("seen = %v, want exactly the three task.* topics", seen)
	}
}

func TestHandlerIsolation(t *testing.T) {
	r := NewRegistry()

	var ran []string
	r.Register(TopicTaskCreated, "panicker", func(Event) error {
		ran = append(ran, "panicker")
		panic("boom")
	})
	r.Register(TopicTaskCreated, "failer", func(Event) error {
		ran = append(ran, "failer")
		return errors.New(errors.CodeToolFailure, "nope", errors.WithAttempt(1))
	})
	r.Register(TopicTaskCreated, "survivor", func(Event) error {
		ran = append(ran, "survivor")
		return nil
	})

	b := bus.NewMemoryBus(bus.DefaultConfig())
	defer b.Close()
	d := NewDispatcher(b, r, testLogger())

	// Dispatch directly; isolation must hold without the loop too.
	data, _ := Marshal(Event{Topic: TopicTaskCreated, Payload: map[string]interface{}{"task_id": "T1"}})
	d.dispatch(&bus.Message{Subject: TopicTaskCreated, Data: data})

	if len(ran) != 3 {
		t.Fatalf("ran %v, want all three handlers", ran)
	}
	if ran[2] != "survivor" {
		t.Errorf("survivor did not run last: %v", ran)
	}
}

func TestDispatchSkipsUndecodable(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(Universal, "audit", func(Event) error {
		called = true
		return nil
	})

	b := bus.NewMemoryBus(bus.DefaultConfig())
	defer b.Close()
	d := NewDispatcher(b, r, testLogger())

	d.dispatch(&bus.Message{Subject: TopicTaskCreated, Data: []byte("{not json")})
	if called {
		t.Error("handler invoked for undecodable payload")
	}
}

func TestRunReturnsConnectionErrorOnClosedBus(t *testing.T) {
	b := bus.NewMemoryBus(bus.DefaultConfig())
	d := NewDispatcher(b, NewRegistry(), testLogger())

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if !errors.Is(err, errors.CodeConnection) {
			t.Errorf("Run returned %v, want CONNECTION error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after bus close")
	}
}

func TestUniversalListenerSeesEverything(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	count := 0
	r.Register(Universal, "audit", func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	b := bus.NewMemoryBus(bus.DefaultConfig())
	defer b.Close()
	d := NewDispatcher(b, r, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	topics := []string{TopicTaskCreated, TopicPlanApproved, TopicTaskCompleted, TopicTaskFailed, TopicStepCompleted}
	for i, topic := range topics {
		d.Publish(topic, map[string]interface{}{"task_id": fmt.Sprintf("T%d", i)})
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := count
		mu.Unlock()
		if n == len(topics) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("audit saw %d events, want %d", n, len(topics))
		case <-time.After(10 * time.Millisecond):
		}
	}
}
