package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// --- Unit Tests ---

func TestValidateSubject(t *testing.T) {
	tests := []struct {
		subject string
		wantErr bool
	}{
		{"foo", false},
		{"foo.bar", false},
		{"task.created", false},
		{">", false},
		{"", true},
		{"has space", true},
	}

	for _, tt := range tests {
		err := ValidateSubject(tt.subject)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSubject(%q) = %v, wantErr %v", tt.subject, err, tt.wantErr)
		}
	}
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"task.created", "task.created", true},
		{"task.created", "task.completed", false},
		{"task.*", "task.created", true},
		{"task.*", "task.completed", true},
		{"task.*", "plan.approved", false},
		{"task.*", "task.step.completed", false},
		{">", "task.created", true},
		{">", "plan.approved", true},
		{"task.>", "task.step.completed", true},
		{"task.>", "task.created", true},
		{"task.>", "plan.approved", false},
		{"*", "task", true},
		{"*", "task.created", false},
	}

	for _, tt := range tests {
		if got := SubjectMatches(tt.pattern, tt.subject); got != tt.want {
			t.Errorf("SubjectMatches(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
		}
	}
}

func TestMemoryBus_Publish(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	// Publish without subscribers should not error
	err := bus.Publish("test", []byte("hello"))
	if err != nil {
		t.Errorf("Publish error: %v", err)
	}
}

func TestMemoryBus_PublishInvalidSubject(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	err := bus.Publish("", []byte("hello"))
	if err != ErrInvalidSubject {
		t.Errorf("expected ErrInvalidSubject, got %v", err)
	}
}

// --- Integration Tests ---

func TestMemoryBus_Subscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, err := bus.Subscribe("test")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish("test", []byte("hello"))

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "hello" {
			t.Errorf("data = %q, want %q", msg.Data, "hello")
		}
		if msg.Subject != "test" {
			t.Errorf("subject = %q, want %q", msg.Subject, "test")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestMemoryBus_WildcardSubscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, err := bus.Subscribe("task.*")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish("task.created", []byte("a"))
	bus.Publish("plan.approved", []byte("b"))
	bus.Publish("task.completed", []byte("c"))

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-sub.Messages():
			got = append(got, msg.Subject)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}

	if got[0] != "task.created" || got[1] != "task.completed" {
		t.Errorf("got subjects %v, want [task.created task.completed]", got)
	}

	select {
	case msg := <-sub.Messages():
		t.Errorf("unexpected message on %q", msg.Subject)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Firehose(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, _ := bus.Subscribe(FirehoseSubject)
	defer sub.Unsubscribe()

	subjects := []string{"task.created", "plan.approved", "task.step.completed"}
	for _, s := range subjects {
		bus.Publish(s, []byte("x"))
	}

	for _, want := range subjects {
		select {
		case msg := <-sub.Messages():
			if msg.Subject != want {
				t.Errorf("subject = %q, want %q", msg.Subject, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub1, _ := bus.Subscribe("test")
	sub2, _ := bus.Subscribe("test")
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	bus.Publish("test", []byte("hello"))

	for i, sub := range []Subscription{sub1, sub2} {
		select {
		case msg := <-sub.Messages():
			if string(msg.Data) != "hello" {
				t.Errorf("sub%d: data = %q, want %q", i+1, msg.Data, "hello")
			}
		case <-time.After(time.Second):
			t.Errorf("sub%d: timeout", i+1)
		}
	}
}

func TestMemoryBus_QueueSubscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	var subs []Subscription
	for i := 0; i < 3; i++ {
		sub, _ := bus.QueueSubscribe("test", "workers")
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	const n = 9
	for i := 0; i < n; i++ {
		bus.Publish("test", []byte(fmt.Sprintf("msg-%d", i)))
	}

	// Each message should be delivered to exactly one queue member.
	total := 0
	deadline := time.After(time.Second)
	for total < n {
		progressed := false
		for _, sub := range subs {
			select {
			case <-sub.Messages():
				total++
				progressed = true
			default:
			}
		}
		if !progressed {
			select {
			case <-deadline:
				t.Fatalf("received %d messages, want %d", total, n)
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	// No duplicates should remain.
	for _, sub := range subs {
		select {
		case <-sub.Messages():
			t.Error("unexpected extra delivery to queue group")
		default:
		}
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, _ := bus.Subscribe("test")
	sub.Unsubscribe()

	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed channel after Unsubscribe")
	}

	// Publishing after unsubscribe should not panic.
	bus.Publish("test", []byte("hello"))
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())

	sub, _ := bus.Subscribe("test")

	if err := bus.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed channel after Close")
	}

	if err := bus.Publish("test", nil); err != ErrClosed {
		t.Errorf("Publish after close = %v, want ErrClosed", err)
	}
	if _, err := bus.Subscribe("test"); err != ErrClosed {
		t.Errorf("Subscribe after close = %v, want ErrClosed", err)
	}

	// Double close is a no-op.
	if err := bus.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}

func TestMemoryBus_ConcurrentPublish(t *testing.T) {
	bus := NewMemoryBus(Config{BufferSize: 1024})
	defer bus.Close()

	sub, _ := bus.Subscribe(FirehoseSubject)
	defer sub.Unsubscribe()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				bus.Publish("stress.test", []byte{byte(w)})
			}
		}(w)
	}
	wg.Wait()

	count := 0
	for {
		select {
		case <-sub.Messages():
			count++
		case <-time.After(100 * time.Millisecond):
			if count != writers*perWriter {
				t.Errorf("received %d messages, want %d", count, writers*perWriter)
			}
			return
		}
	}
}
