package worker

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/event"
	"github.com/vinayprograms/taskwire/lock"
	"github.com/vinayprograms/taskwire/logging"
	"github.com/vinayprograms/taskwire/plan"
	"github.com/vinayprograms/taskwire/retry"
	"github.com/vinayprograms/taskwire/task"
	"github.com/vinayprograms/taskwire/tool"
)

// Executor reacts to plan.approved: it claims the task, runs the plan's
// steps in order through the tool collaborator, and drives the retry
// loop on step failure. Like the planner, every worker's executor sees
// every plan.approved and the task lock picks the one that runs it.
type Executor struct {
	tasks    *task.Store
	locks    *lock.Manager
	pub      Publisher
	coord    *retry.Coordinator
	tools    tool.Invoker
	log      *logging.Logger
	workerID string
	lockTTL  time.Duration

	// ctx bounds tool invocations; set by the worker before the receive
	// loop starts.
	ctx context.Context
}

// NewExecutor creates an executor.
func NewExecutor(tasks *task.Store, locks *lock.Manager, pub Publisher,
	coord *retry.Coordinator, tools tool.Invoker, log *logging.Logger,
	workerID string, lockTTL time.Duration) *Executor {
	return &Executor{
		tasks:    tasks,
		locks:    locks,
		pub:      pub,
		coord:    coord,
		tools:    tools,
		log:      log.WithComponent("executor"),
		workerID: workerID,
		lockTTL:  lockTTL,
		ctx:      context.Background(),
	}
}

// SetContext sets the context bounding tool invocations.
func (e *Executor) SetContext(ctx context.Context) {
	if ctx != nil {
		e.ctx = ctx
	}
}

// HandlePlanApproved processes one plan.approved event.
func (e *Executor) HandlePlanApproved(evt event.Event) error {
	taskID := evt.TaskID()
	if taskID == "" {
		return errors.New(errors.CodeInvalidEvent, "plan.approved without task_id",
			errors.WithTopic(evt.Topic))
	}

	steps, err := plan.StepsFromPayload(evt.Payload["plan"])
	if err != nil || len(steps) == 0 {
		return errors.New(errors.CodeInvalidEvent, "plan.approved without usable plan",
			errors.WithTaskID(taskID), errors.WithTopic(evt.Topic))
	}

	acquired, err := e.locks.TryAcquire(taskID, e.workerID, e.lockTTL)
	if err != nil {
		return errors.Wrap(err, "acquire task lock", errors.WithTaskID(taskID))
	}
	if !acquired {
		e.log.Debug("task claimed elsewhere", map[string]interface{}{"task_id": taskID})
		return nil
	}
	defer e.release(taskID)

	t, err := e.tasks.Get(taskID)
	if stderrors.Is(err, task.ErrNotFound) {
		return errors.New(errors.CodeInvalidEvent, "plan.approved for unknown task",
			errors.WithTaskID(taskID))
	}
	if err != nil {
		return errors.Wrap(err, "load task", errors.WithTaskID(taskID))
	}

	if t.Status.IsTerminal() {
		e.log.Info("duplicate plan.approved for terminal task", map[string]interface{}{
			"task_id": taskID,
			"status":  t.Status.String(),
		})
		return nil
	}
	if !t.Status.CanTransition(task.StatusExecuting) {
		// Delivered before planning finished persisting, or out of order.
		e.log.Warn("plan.approved absorbed, task not executable", map[string]interface{}{
			"task_id": taskID,
			"status":  t.Status.String(),
		})
		return nil
	}

	if err := t.Transition(task.StatusExecuting); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "enter execution",
			errors.WithTaskID(taskID))
	}
	if err := e.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist executing state", errors.WithTaskID(taskID))
	}

	return e.coord.Execute(e.ctx, t, e.workerID, func(ctx context.Context, t *task.Task, attempt int) (interface{}, error) {
		return e.runSteps(ctx, t, steps, attempt)
	})
}

// runSteps executes the plan's steps in order. The last step's output is
// the task result.
func (e *Executor) runSteps(ctx context.Context, t *task.Task, steps []plan.Step, attempt int) (interface{}, error) {
	var result interface{}

	for i, step := range steps {
		if i > 0 {
			// Long plans outlive a single lease; extend between steps.
			if err := e.locks.Renew(t.ID, e.workerID, e.lockTTL); err != nil {
				e.log.Warn("lease renewal failed", map[string]interface{}{
					"task_id": t.ID,
					"step":    i,
					"error":   err.Error(),
				})
			}
		}

		out, err := e.tools.Invoke(ctx, step.Tool, tool.Params(step.Params))
		if err != nil {
			return nil, stepError(err, t.ID, step.Tool, i, attempt)
		}

		if err := e.pub.Publish(event.TopicStepCompleted, map[string]interface{}{
			"task_id": t.ID,
			"step":    i,
			"tool":    step.Tool,
			"result":  out,
		}); err != nil {
			return nil, err
		}

		result = out
	}

	return result, nil
}

// stepError classifies a tool invocation failure. Unknown tools are
// permanent; everything else is transient unless already classified.
func stepError(err error, taskID, toolName string, step, attempt int) error {
	if stderrors.Is(err, tool.ErrNotFound) {
		return errors.WrapWithCode(err, errors.CodeToolNotFound, "unknown tool "+toolName,
			errors.WithTaskID(taskID), errors.WithAttempt(attempt))
	}

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return errors.Wrap(err, "step failed",
			errors.WithTaskID(taskID), errors.WithAttempt(attempt))
	}

	return errors.WrapWithCode(err, errors.CodeToolFailure, "tool "+toolName+" failed",
		errors.WithTaskID(taskID), errors.WithAttempt(attempt),
		errors.WithMetadata("step", strconv.Itoa(step)))
}

func (e *Executor) release(taskID string) {
	err := e.locks.Release(taskID, e.workerID)
	if err != nil && err != lock.ErrNotHeld && err != lock.ErrNotHolder {
		e.log.Warn("release failed", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
}
