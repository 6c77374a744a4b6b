package runner

import (
	"context"

	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// worker executes claimed tasks from the job queue.
func (s *Service) worker(ctx context.Context, id int) {
	s.logger.Debug("starting worker %d", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("worker %d shutting down", id)
			return
		case task, ok := <-s.pendingJobs:
			if !ok {
				// Channel closed
				s.logger.Debug("worker %d shutting down: channel closed", id)
				return
			}

			// Check if circuit breaker is open before touching the chain
			if s.breaker.IsEnabled() && s.breaker.IsOpen() {
				failureCount, lastFailure, _, _ := s.breaker.GetState()
				s.logger.NoticeWith(logger.Exec,
					"worker %d: circuit open (last failure %v, count %d), returning task %s to pending",
					id, lastFailure, failureCount, task.TaskID)
				if err := s.store.Release(ctx, task.TaskID); err != nil {
					s.logger.ErrorWith(logger.Exec, "releasing task %s failed: %v", task.TaskID, err)
				}
				s.wg.Done()
				continue
			}

			s.logger.InfoWith(logger.Exec, "worker %d executing task %s (%s %s -> %s)",
				id, task.TaskID, task.Swap.Amount, task.Swap.InputMint, task.Swap.OutputMint)

			result, err := s.executor.ExecuteSwap(ctx, task.OwnerID, task.TaskID, task.Swap)
			s.settleTask(ctx, id, task, result, err)
			s.wg.Done()
		}
	}
}

// shouldRetry classifies execution errors. Outages, missing funds and dried
// up liquidity can all resolve before the expiry horizon, so those tasks go
// back to pending. Malformed references and on-chain failures will not.
func shouldRetry(err error) bool {
	switch apperr.CodeOf(err) {
	case apperr.CodeUnavailable, apperr.CodeInsufficientBalance,
		apperr.CodeInsufficientReserve, apperr.CodeNoRoute:
		return true
	}
	return false
}

// settleTask records the outcome of one execution attempt and decides the
// task's fate: done, retry next tick, or permanently failed.
func (s *Service) settleTask(ctx context.Context, workerID int, task models.AutoSwapTask, result models.ExecutionResult, err error) {
	trigger := string(task.Trigger.Kind)

	switch {
	case err == nil:
		s.breaker.RecordSuccess()
		if storeErr := s.store.Complete(ctx, task.TaskID); storeErr != nil {
			s.logger.ErrorWith(logger.Exec, "completing task %s failed: %v", task.TaskID, storeErr)
		}
		metrics.TasksExecuted.WithLabelValues(trigger, "completed").Inc()
		s.logger.NoticeWith(logger.Exec, "worker %d settled task %s: %s", workerID, task.TaskID, result.Signature)

	case apperr.CodeOf(err) == apperr.CodeConfirmationTimeout:
		// the transaction was submitted; the inflight monitor owns it now
		s.breaker.RecordSuccess()
		if storeErr := s.store.Complete(ctx, task.TaskID); storeErr != nil {
			s.logger.ErrorWith(logger.Exec, "completing task %s failed: %v", task.TaskID, storeErr)
		}
		metrics.TasksExecuted.WithLabelValues(trigger, "unconfirmed").Inc()
		s.logger.NoticeWith(logger.Exec, "worker %d submitted task %s, confirmation pending: %s",
			workerID, task.TaskID, result.Signature)

	case shouldRetry(err):
		// transient failure: return the task to pending so a later tick
		// retries it, and feed the breaker
		tripped := s.breaker.RecordFailure()
		if storeErr := s.store.Release(ctx, task.TaskID); storeErr != nil {
			s.logger.ErrorWith(logger.Exec, "releasing task %s failed: %v", task.TaskID, storeErr)
		}
		metrics.TasksExecuted.WithLabelValues(trigger, "retried").Inc()
		metrics.ExecutionErrors.WithLabelValues(apperr.CodeOf(err).String()).Inc()
		if tripped {
			s.logger.ErrorWith(logger.Exec, "worker %d: task %s failed and circuit tripped: %v", workerID, task.TaskID, err)
		} else {
			s.logger.ErrorWith(logger.Exec, "worker %d: task %s failed, will retry: %v", workerID, task.TaskID, err)
		}

	default:
		// permanent failure: no retries will change the outcome
		s.breaker.RecordFailure()
		if storeErr := s.store.Fail(ctx, task.TaskID); storeErr != nil {
			s.logger.ErrorWith(logger.Exec, "failing task %s failed: %v", task.TaskID, storeErr)
		}
		metrics.TasksExecuted.WithLabelValues(trigger, "failed").Inc()
		metrics.ExecutionErrors.WithLabelValues(apperr.CodeOf(err).String()).Inc()
		s.logger.ErrorWith(logger.Exec, "worker %d: task %s permanently failed: %v", workerID, task.TaskID, err)
	}
}
