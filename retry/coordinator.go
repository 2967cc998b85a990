package retry

import (
	"context"
	"time"

	"github.com/vinayprograms/taskwire/errors"
	"github.com/vinayprograms/taskwire/event"
	"github.com/vinayprograms/taskwire/lock"
	"github.com/vinayprograms/taskwire/logging"
	"github.com/vinayprograms/taskwire/task"
)

// Publisher publishes orchestration events. Satisfied by
// event.Dispatcher.
type Publisher interface {
	Publish(topic string, payload map[string]interface{}) error
}

// AttemptFunc runs one execution attempt of a task and returns its final
// result. The coordinator calls it once per attempt with the persisted
// attempt count already incremented.
type AttemptFunc func(ctx context.Context, t *task.Task, attempt int) (interface{}, error)

// Coordinator drives the attempt loop for one task at a time. It owns
// the interaction between retries and the task's lock: the lock is
// released for the whole backoff window so a held lease never outlives
// useful work, then re-acquired before the next attempt. Whoever holds
// the lock after the sleep gets the retry; if that is someone else, this
// coordinator drops out silently.
type Coordinator struct {
	policy  Policy
	tasks   *task.Store
	locks   *lock.Manager
	pub     Publisher
	log     *logging.Logger
	lockTTL time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSleep sets the sleep function used between attempts. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// NewCoordinator creates a retry coordinator.
func NewCoordinator(policy Policy, tasks *task.Store, locks *lock.Manager,
	pub Publisher, log *logging.Logger, lockTTL time.Duration, opts ...Option) *Coordinator {
	c := &Coordinator{
		policy:  policy,
		tasks:   tasks,
		locks:   locks,
		pub:     pub,
		log:     log.WithComponent("retry"),
		lockTTL: lockTTL,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs attempts of t until one succeeds, the policy is
// exhausted, or the error is not retryable. The caller must hold the
// task's lock; on return the caller still holds it unless Execute
// reports it was lost to another worker, in which case the work was
// handed off and the return is nil.
//
// Exactly one task.failed is published when the task fails permanently,
// and none otherwise.
func (c *Coordinator) Execute(ctx context.Context, t *task.Task, holderID string, attempt AttemptFunc) error {
	for {
		t.AttemptCount++
		t.NextAttemptAt = nil
		if err := c.tasks.Save(t); err != nil {
			return errors.Wrap(err, "persist attempt count", errors.WithTaskID(t.ID))
		}

		result, err := attempt(ctx, t, t.AttemptCount)
		if err == nil {
			return c.complete(t, result)
		}

		t.LastError = errors.Wrap(err, "attempt failed",
			errors.WithTaskID(t.ID), errors.WithAttempt(t.AttemptCount))

		if !errors.IsRetryable(err) || c.policy.Exhausted(t.AttemptCount) {
			return c.fail(t, err)
		}

		delay := c.policy.Delay(t.AttemptCount)
		next := time.Now().UTC().Add(delay)
		t.NextAttemptAt = &next
		if err := c.tasks.Save(t); err != nil {
			return errors.Wrap(err, "persist retry schedule", errors.WithTaskID(t.ID))
		}

		c.log.Info("attempt failed, backing off", map[string]interface{}{
			"task_id": t.ID,
			"attempt": t.AttemptCount,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		// The lock is not held across the backoff window. A crashed worker
		// then delays the retry only until some worker re-wins the lock,
		// instead of until the full lease expires.
		if err := c.locks.Release(t.ID, holderID); err != nil && err != lock.ErrNotHeld {
			c.log.Warn("release before backoff failed", map[string]interface{}{
				"task_id": t.ID,
				"error":   err.Error(),
			})
		}

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}

		acquired, err := c.locks.TryAcquire(t.ID, holderID, c.lockTTL)
		if err != nil {
			return errors.Wrap(err, "reacquire for retry", errors.WithTaskID(t.ID))
		}
		if !acquired {
			// Another worker owns the task now; the retry is theirs.
			c.log.Info("retry handed off", map[string]interface{}{
				"task_id": t.ID,
				"attempt": t.AttemptCount,
			})
			return nil
		}

		// Re-read after the window: a concurrent worker may have finished
		// the task while this one slept. A terminal task gets no retry and
		// no second terminal event.
		current, err := c.tasks.Get(t.ID)
		if err != nil {
			return errors.Wrap(err, "reload task for retry", errors.WithTaskID(t.ID))
		}
		if current.Status.IsTerminal() {
			c.log.Info("task already terminal, retry dropped", map[string]interface{}{
				"task_id": t.ID,
				"status":  current.Status.String(),
			})
			return nil
		}
		t = current
	}
}

func (c *Coordinator) complete(t *task.Task, result interface{}) error {
	if err := t.Transition(task.StatusCompleted); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "complete task",
			errors.WithTaskID(t.ID))
	}
	t.Result = result
	t.LastError = nil
	t.NextAttemptAt = nil
	if err := c.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist completion", errors.WithTaskID(t.ID))
	}

	c.log.Info("task completed", map[string]interface{}{
		"task_id": t.ID,
		"attempt": t.AttemptCount,
	})

	return c.pub.Publish(event.TopicTaskCompleted, map[string]interface{}{
		"task_id":       t.ID,
		"result":        result,
		"attempt_count": t.AttemptCount,
	})
}

func (c *Coordinator) fail(t *task.Task, cause error) error {
	if err := t.Transition(task.StatusFailed); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidTransition, "fail task",
			errors.WithTaskID(t.ID))
	}
	t.NextAttemptAt = nil
	if err := c.tasks.Save(t); err != nil {
		return errors.Wrap(err, "persist failure", errors.WithTaskID(t.ID))
	}

	c.log.Error("task failed permanently", map[string]interface{}{
		"task_id": t.ID,
		"attempt": t.AttemptCount,
		"error":   cause.Error(),
	})

	if err := c.pub.Publish(event.TopicTaskFailed, map[string]interface{}{
		"task_id":       t.ID,
		"error":         cause.Error(),
		"error_code":    errors.GetCode(cause).String(),
		"attempt_count": t.AttemptCount,
	}); err != nil {
		return err
	}
	return errors.Wrap(cause, "task failed permanently",
		errors.WithTaskID(t.ID), errors.WithAttempt(t.AttemptCount))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
