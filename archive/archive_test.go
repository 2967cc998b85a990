package archive

import (
	"testing"

	"github.com/vinayprograms/taskwire/task"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func terminalTask(t *testing.T, goal string, status task.Status) *task.Task {
	t.Helper()
	tk := task.New(goal)
	path := []task.Status{task.StatusPlanning, task.StatusPlanned, task.StatusExecuting, status}
	if status == task.StatusFailed {
		// A planning failure is the shortest path to FAILED.
		path = []task.Status{task.StatusPlanning, task.StatusFailed}
	}
	for _, s := range path {
		if err := tk.Transition(s); err != nil {
			t.Fatalf("setup transition to %s: %v", s, err)
		}
	}
	return tk
}

func TestArchiveAndGet(t *testing.T) {
	s := openStore(t)

	tk := terminalTask(t, "Calculate: 2+2", task.StatusCompleted)
	tk.Result = "4"
	tk.AttemptCount = 1

	if err := s.Archive(tk); err != nil {
		t.Fatalf("Archive error: %v", err)
	}

	got, err := s.Get(tk.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Goal != tk.Goal || got.Status != task.StatusCompleted {
		t.Errorf("got %+v", got)
	}
	if got.Result != "4" {
		t.Errorf("Result = %v, want 4", got.Result)
	}
}

func TestArchiveRejectsLiveTask(t *testing.T) {
	s := openStore(t)

	tk := task.New("still running")
	if err := s.Archive(tk); err != ErrNotTerminal {
		t.Errorf("Archive of CREATED task = %v, want ErrNotTerminal", err)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	s := openStore(t)

	tk := terminalTask(t, "dup", task.StatusFailed)
	if err := s.Archive(tk); err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	if err := s.Archive(tk); err != nil {
		t.Fatalf("second Archive: %v", err)
	}

	n, err := s.Count("")
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Errorf("archived rows = %d, want 1", n)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openStore(t)

	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestRecent(t *testing.T) {
	s := openStore(t)

	var ids []string
	for _, goal := range []string{"a", "b", "c"} {
		tk := terminalTask(t, goal, task.StatusCompleted)
		if err := s.Archive(tk); err != nil {
			t.Fatalf("Archive(%s): %v", goal, err)
		}
		ids = append(ids, tk.ID)
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) = %d tasks", len(recent))
	}
}

func TestCountByStatus(t *testing.T) {
	s := openStore(t)

	s.Archive(terminalTask(t, "ok", task.StatusCompleted))
	s.Archive(terminalTask(t, "bad", task.StatusFailed))
	s.Archive(terminalTask(t, "also bad", task.StatusFailed))

	if n, _ := s.Count(task.StatusFailed); n != 2 {
		t.Errorf("Count(FAILED) = %d, want 2", n)
	}
	if n, _ := s.Count(task.StatusCompleted); n != 1 {
		t.Errorf("Count(COMPLETED) = %d, want 1", n)
	}
	if n, _ := s.Count(""); n != 3 {
		t.Errorf("Count(all) = %d, want 3", n)
	}
}
