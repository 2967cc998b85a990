package worker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/taskwire/archive"
	"github.com/vinayprograms/taskwire/bus"
	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/event"
	"github.com/vinayprograms/taskwire/heartbeat"
	"github.com/vinayprograms/taskwire/lock"
	"github.com/vinayprograms/taskwire/logging"
	"github.com/vinayprograms/taskwire/retry"
	"github.com/vinayprograms/taskwire/state"
	"github.com/vinayprograms/taskwire/task"
	"github.com/vinayprograms/taskwire/tool"
)

// ErrInvalidConfig indicates the worker configuration is incomplete.
var ErrInvalidConfig = stderrors.New("invalid worker configuration")

// Config configures a worker.
type Config struct {
	// Bus is the shared message bus.
	Bus bus.MessageBus

	// Store is the shared key-value store for task records and locks.
	Store state.StateStore

	// Tools is the tool collaborator plans are executed through.
	Tools tool.Invoker

	// WorkerID uniquely identifies this worker. Generated if empty.
	WorkerID string

	// LockTTL is the lease duration for task locks. Must exceed the
	// worst-case duration of a single plan step.
	// Default: 30 seconds
	LockTTL time.Duration

	// RetryPolicy is the backoff schedule for failed attempts.
	RetryPolicy retry.Policy

	// HeartbeatInterval between liveness reports. Zero uses the
	// heartbeat package default; negative disables heartbeats.
	HeartbeatInterval time.Duration

	// Archive receives terminal tasks. Optional.
	Archive *archive.Store

	// Log is the structured logger. A default stdout logger is used if
	// nil.
	Log *logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Bus == nil || c.Store == nil || c.Tools == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults. Bus,
// Store, and Tools must still be supplied.
func DefaultConfig() Config {
	return Config{
		LockTTL:     30 * time.Second,
		RetryPolicy: retry.DefaultPolicy(),
	}
}

// Worker is one orchestration process: a planner, an executor, and an
// auditor sharing a single receive loop. Workers replicate horizontally;
// every instance subscribes to everything and contends on task locks, so
// adding workers adds throughput without any assignment step.
type Worker struct {
	id         string
	log        *logging.Logger
	dispatcher *event.Dispatcher
	registry   *event.Registry
	executor   *Executor
	hb         *heartbeat.Sender
	archive    *archive.Store
	tasks      *task.Store
}

// New creates a worker and registers its handlers.
func New(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := cfg.WorkerID
	if id == "" {
		id = "worker-" + uuid.NewString()[:8]
	}

	log := cfg.Log
	if log == nil {
		log = logging.New()
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultConfig().LockTTL
	}

	tasks := task.NewStore(cfg.Store)
	locks := lock.NewManager(cfg.Store)
	registry := event.NewRegistry()
	dispatcher := event.NewDispatcher(cfg.Bus, registry, log)

	coord := retry.NewCoordinator(cfg.RetryPolicy, tasks, locks, dispatcher, log, lockTTL)
	planner := NewPlanner(tasks, locks, dispatcher, log, id, lockTTL)
	executor := NewExecutor(tasks, locks, dispatcher, coord, cfg.Tools, log, id, lockTTL)
	auditor := NewAuditor(log)

	w := &Worker{
		id:         id,
		log:        log.WithComponent("worker"),
		dispatcher: dispatcher,
		registry:   registry,
		executor:   executor,
		archive:    cfg.Archive,
		tasks:      tasks,
	}

	if cfg.HeartbeatInterval >= 0 {
		hb, err := heartbeat.NewSender(heartbeat.SenderConfig{
			Bus:      cfg.Bus,
			WorkerID: id,
			Interval: cfg.HeartbeatInterval,
		})
		if err != nil {
			return nil, err
		}
		w.hb = hb
	}

	registry.Register(event.TopicTaskCreated, "planner",
		w.withStatus(heartbeat.StatusPlanning, planner.HandleTaskCreated))
	registry.Register(event.TopicPlanApproved, "executor",
		w.withStatus(heartbeat.StatusExecuting, executor.HandlePlanApproved))
	registry.Register(event.TopicTaskCompleted, "archiver", w.archiveTerminal)
	registry.Register(event.TopicTaskFailed, "archiver", w.archiveTerminal)
	registry.Register(event.Universal, "auditor", auditor.Handle)

	return w, nil
}

// ID returns the worker's identifier.
func (w *Worker) ID() string {
	return w.id
}

// Publish sends an event through the worker's dispatcher.
func (w *Worker) Publish(topic string, payload map[string]interface{}) error {
	return w.dispatcher.Publish(topic, payload)
}

// Run starts the heartbeat and blocks on the receive loop until ctx is
// canceled or the broker connection is lost. A connection loss is
// returned as a CONNECTION error; the process should exit and restart
// under supervision.
func (w *Worker) Run(ctx context.Context) error {
	w.executor.SetContext(ctx)

	if w.hb != nil {
		if err := w.hb.Start(ctx); err != nil {
			return err
		}
		defer w.hb.Stop()
	}

	w.log.Info("worker started", map[string]interface{}{"worker_id": w.id})
	return w.dispatcher.Run(ctx)
}

// withStatus wraps a handler so heartbeats reflect what the worker is
// doing while it runs.
func (w *Worker) withStatus(status string, h event.Handler) event.Handler {
	return func(evt event.Event) error {
		if w.hb != nil {
			w.hb.SetStatus(status)
			defer w.hb.SetStatus(heartbeat.StatusIdle)
		}
		return h(evt)
	}
}

// archiveTerminal copies a finished task into the local archive. Archive
// writes are idempotent, so every worker hearing the terminal event may
// archive it safely.
func (w *Worker) archiveTerminal(evt event.Event) error {
	if w.hb != nil {
		w.hb.TaskHandled()
	}
	if w.archive == nil {
		return nil
	}

	taskID := evt.TaskID()
	if taskID == "" {
		return errors.New(errors.CodeInvalidEvent, "terminal event without task_id",
			errors.WithTopic(evt.Topic))
	}

	t, err := w.tasks.Get(taskID)
	if stderrors.Is(err, task.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load task for archive", errors.WithTaskID(taskID))
	}
	if !t.Status.IsTerminal() {
		// Event raced ahead of the store write; the next terminal event
		// for this task will archive it.
		return nil
	}

	if err := w.archive.Archive(t); err != nil {
		return errors.Wrap(err, "archive task", errors.WithTaskID(taskID))
	}
	return nil
}
