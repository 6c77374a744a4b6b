package runner

import (
	"context"
	"time"

	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// scheduleTick evaluates every pending task once. Each task is isolated: a
// feed outage or store error on one task never blocks the rest of the tick.
func (s *Service) scheduleTick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	tasks, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.ErrorWith(logger.Sched, "listing pending tasks failed: %v", err)
		return
	}
	metrics.PendingTasks.Set(float64(len(tasks)))
	if len(tasks) == 0 {
		return
	}
	s.logger.DebugWith(logger.Sched, "evaluating %d pending tasks", len(tasks))

	now := time.Now()
	for _, task := range tasks {
		if task.Expired(now) {
			// expiry is silent: the user is not interrupted about a
			// condition that never came true
			if err := s.store.Remove(ctx, task.TaskID); err != nil {
				s.logger.ErrorWith(logger.Sched, "removing expired task %s failed: %v", task.TaskID, err)
				continue
			}
			metrics.TasksExpired.Inc()
			s.logger.InfoWith(logger.Sched, "task %s expired without firing", task.TaskID)
			continue
		}

		due, err := s.triggerDue(ctx, task)
		if err != nil {
			// transient trigger evaluation failure, retry next tick
			s.logger.DebugWith(logger.Sched, "trigger check for task %s failed: %v", task.TaskID, err)
			continue
		}
		if !due {
			continue
		}

		claimed, err := s.store.Claim(ctx, task.TaskID)
		if err != nil {
			s.logger.ErrorWith(logger.Sched, "claiming task %s failed: %v", task.TaskID, err)
			continue
		}
		if !claimed {
			// another tick or worker got there first
			continue
		}

		s.logger.InfoWith(logger.Sched, "task %s is due (%s)", task.TaskID, task.Trigger.Describe())
		s.wg.Add(1)
		select {
		case s.pendingJobs <- task:
		default:
			// worker pool saturated, put the task back for the next tick
			s.wg.Done()
			if err := s.store.Release(ctx, task.TaskID); err != nil {
				s.logger.ErrorWith(logger.Sched, "releasing task %s failed: %v", task.TaskID, err)
			}
		}
	}
}

// triggerDue reports whether a task's trigger condition holds right now.
func (s *Service) triggerDue(ctx context.Context, task models.AutoSwapTask) (bool, error) {
	switch task.Trigger.Kind {
	case models.TriggerImmediate:
		return true, nil
	case models.TriggerTime:
		return !task.Trigger.StartAt.After(time.Now()), nil
	case models.TriggerPrice:
		price, err := s.feed.Price(ctx, task.Trigger.WatchedMint(task.Swap))
		if err != nil {
			return false, err
		}
		return task.Trigger.Satisfied(price), nil
	}
	return false, nil
}
