package task

import (
	"testing"

	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/state"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusPlanning, true},
		{StatusPlanning, StatusPlanned, true},
		{StatusPlanning, StatusFailed, true},
		{StatusPlanned, StatusExecuting, true},
		{StatusExecuting, StatusExecuting, true}, // retry re-entry
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},

		// No backward edges.
		{StatusPlanning, StatusCreated, false},
		{StatusPlanned, StatusPlanning, false},
		{StatusExecuting, StatusPlanned, false},
		{StatusCompleted, StatusExecuting, false},

		// Nothing leaves a terminal state.
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCreated, false},
		{StatusFailed, StatusExecuting, false},

		// No skipping ahead.
		{StatusCreated, StatusExecuting, false},
		{StatusCreated, StatusCompleted, false},
		{StatusPlanned, StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusCreated:   false,
		StatusPlanning:  false,
		StatusPlanned:   false,
		StatusExecuting: false,
		StatusCompleted: true,
		StatusFailed:    true,
	}
	for s, want := range terminal {
		if s.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, s.IsTerminal(), want)
		}
	}
}

func TestTransition(t *testing.T) {
	tk := New("Calculate: 2+2")

	if tk.Status != StatusCreated {
		t.Fatalf("new task status = %s, want CREATED", tk.Status)
	}
	if tk.ID == "" {
		t.Fatal("new task has no ID")
	}

	for _, next := range []Status{StatusPlanning, StatusPlanned, StatusExecuting, StatusCompleted} {
		if err := tk.Transition(next); err != nil {
			t.Fatalf("Transition(%s) error: %v", next, err)
		}
	}

	if err := tk.Transition(StatusExecuting); err != ErrInvalidTransition {
		t.Errorf("transition out of COMPLETED = %v, want ErrInvalidTransition", err)
	}
}

func TestStoreSaveGet(t *testing.T) {
	store := NewStore(newMemoryStore(t))

	tk := New("echo: hello")
	tk.AttemptCount = 2
	tk.LastError = errors.New(errors.CodeToolFailure, "flaky tool",
		errors.WithTaskID(tk.ID), errors.WithAttempt(2))

	if err := store.Save(tk); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Get(tk.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Goal != tk.Goal || got.Status != StatusCreated {
		t.Errorf("got %+v", got)
	}
	if got.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", got.AttemptCount)
	}
	if got.LastError == nil || got.LastError.Code() != errors.CodeToolFailure {
		t.Errorf("LastError = %v, want TOOL_FAILURE", got.LastError)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	store := NewStore(newMemoryStore(t))

	if _, err := store.Get("nope"); err != ErrNotFound {
		t.Errorf("Get of missing task = %v, want ErrNotFound", err)
	}
	if _, err := store.Status("nope"); err != ErrNotFound {
		t.Errorf("Status of missing task = %v, want ErrNotFound", err)
	}
}

func TestStoreStatus(t *testing.T) {
	store := NewStore(newMemoryStore(t))

	tk := New("echo: hi")
	tk.Transition(StatusPlanning)
	store.Save(tk)

	status, err := store.Status(tk.ID)
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if status != StatusPlanning {
		t.Errorf("Status = %s, want PLANNING", status)
	}
}

func TestStoreList(t *testing.T) {
	store := NewStore(newMemoryStore(t))

	a := New("a")
	b := New("b")
	b.Transition(StatusPlanning)
	store.Save(a)
	store.Save(b)

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List(\"\") = %d tasks, want 2", len(all))
	}

	planning, _ := store.List(StatusPlanning)
	if len(planning) != 1 || planning[0].ID != b.ID {
		t.Errorf("List(PLANNING) = %+v, want just %s", planning, b.ID)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(newMemoryStore(t))

	tk := New("bye")
	store.Save(tk)

	if err := store.Delete(tk.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Get(tk.ID); err != ErrNotFound {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func newMemoryStore(t *testing.T) state.StateStore {
	t.Helper()
	s := state.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}
