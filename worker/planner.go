package worker

import (
	stderrors "errors"
	"time"

	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/event"
	"github.com/vinayprograms/taskwire/lock"
	"github.com/vinayprograms/taskwire/logging"
	"github.com/vinayprograms/taskwire/plan"
	"github.com/vinayprograms/taskwire/task"
)

// Publisher publishes orchestration events. Satisfied by
// event.Dispatcher.
type Publisher interface {
	Publish(topic string, payload map[string]interface{}) error
}

// Planner reacts to task.created: it claims the task, synthesizes an
// execution plan, and publishes plan.approved. Every worker's planner
// receives every task.created; the task lock decides which one does the
// work and the rest drop the event silently.
type Planner struct {
	tasks    *task.Store
	locks    *lock.Manager
	pub      Publisher
	log      *logging.Logger
	workerID string
	lockTTL  time.Duration
}

// NewPlanner creates a planner.
func NewPlanner(tasks *task.Store, locks *lock.Manager, pub Publisher,
	log *logging.Logger, workerID string, lockTTL time.Duration) *Planner {
	return &Planner{
		tasks:    tasks,
		locks:    locks,
		pub:      pub,
		log:      log.WithComponent("planner"),
		workerID: workerID,
		lockTTL:  lockTTL,
	}
}

// HandleTaskCreated processes one task.created event.
func (p *Planner) HandleTaskCreated(evt event.Event) error {
	taskID := evt.TaskID()
	if taskID == "" {
		return errors.New(errors.CodeInvalidEvent, "task.created without task_id",
			errors.WithTopic(evt.Topic))
	}
	goal, _ := evt.Payload["goal"].(string)

	acquired, err := p.locks.TryAcquire(taskID, p.workerID, p.lockTTL)
	if err != nil {
		return errors.Wrap(err, "acquire task lock", errors.WithTaskID(taskID))
	}
	if !acquired {
		// Another worker won the race. Normal operation, not an error.
		p.log.Debug("task claimed elsewhere", map[string]interface{}{"task_id": taskID})
		return nil
	}
	defer p.release(taskID)

	t, err := p.tasks.Get(taskID)
	switch {
	case stderrors.Is(err, task.ErrNotFound):
		// First delivery: the winning worker creates the record.
		t = task.New(goal)
		t.ID = taskID
	case err != nil:
		return errors.Wrap(err, "load task", errors.WithTaskID(taskID))
	case t.Status.IsTerminal():
		// Redelivery of a finished task. Absorb without effect.
		p.log.Info("duplicate task.created for terminal task", map[string]interface{}{
			"task_id": taskID,
			"status":  t.Status.String(),
		})
		return nil
	case t.Status != task.StatusCreated:
		// Redelivery while planning or execution is underway elsewhere.
		p.log.Debug("task.created absorbed, task in flight", map[string]interface{}{
			"task_id": taskID,
			"status":  t.Status.String(),
		})
		return nil
	}

	if err := t.Transition(task.StatusPlanning); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "enter planning",
			errors.WithTaskID(taskID))
	}
	if err := p.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist planning state", errors.WithTaskID(taskID))
	}

	pl, err := plan.Synthesize(taskID, t.Goal)
	if err != nil {
		// An unparseable goal never succeeds on retry; fail immediately.
		return p.failPlanning(t, err)
	}

	t.Plan = planSteps(pl.Steps)
	if err := t.Transition(task.StatusPlanned); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "finish planning",
			errors.WithTaskID(taskID))
	}
	if err := p.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist plan", errors.WithTaskID(taskID))
	}

	payload, err := pl.ToPayload()
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidEvent, "encode plan",
			errors.WithTaskID(taskID))
	}

	p.log.Info("plan synthesized", map[string]interface{}{
		"task_id": taskID,
		"steps":   len(pl.Steps),
	})

	return p.pub.Publish(event.TopicPlanApproved, map[string]interface{}{
		"task_id": taskID,
		"plan":    payload,
	})
}

// failPlanning marks the task FAILED and publishes its single terminal
// failure event.
func (p *Planner) failPlanning(t *task.Task, cause error) error {
	t.LastError = errors.Wrap(cause, "planning failed", errors.WithTaskID(t.ID))
	if err := t.Transition(task.StatusFailed); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "fail planning",
			errors.WithTaskID(t.ID))
	}
	if err := p.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist planning failure", errors.WithTaskID(t.ID))
	}

	p.log.Error("planning failed", map[string]interface{}{
		"task_id": t.ID,
		"error":   cause.Error(),
	})

	if err := p.pub.Publish(event.TopicTaskFailed, map[string]interface{}{
		"task_id":       t.ID,
		"error":         cause.Error(),
		"error_code":    errors.GetCode(cause).String(),
		"attempt_count": t.AttemptCount,
	}); err != nil {
		return err
	}
	return errors.Wrap(cause, "planning failed", errors.WithTaskID(t.ID))
}

func (p *Planner) release(taskID string) {
	err := p.locks.Release(taskID, p.workerID)
	if err != nil && err != lock.ErrNotHeld && err != lock.ErrNotHolder {
		p.log.Warn("release failed", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
}

// planSteps converts synthesized steps to the task record's step shape.
func planSteps(steps []plan.Step) []task.PlanStep {
	out := make([]task.PlanStep, len(steps))
	for i, s := range steps {
		out[i] = task.PlanStep{Tool: s.Tool, Params: s.Params, Description: s.Description}
	}
	return out
}
