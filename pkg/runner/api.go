package runner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/confirm"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/models"
	"github.com/solrun-hq/solrunner/pkg/taskstore"
)

// RequestStatus is the outcome of one front-door request.
type RequestStatus string

const (
	// StatusAwaitingConfirmation means the gate is still open; the Message
	// holds the proposal to put in front of the user.
	StatusAwaitingConfirmation RequestStatus = "awaiting_confirmation"
	StatusCancelled            RequestStatus = "cancelled"
	StatusExecuted             RequestStatus = "executed"
	StatusSubmitted            RequestStatus = "submitted"
	StatusScheduled            RequestStatus = "scheduled"
)

// Response is what the conversational surface relays back to the user.
type Response struct {
	Status    RequestStatus
	Message   string
	TaskID    string
	Signature string
}

// Swap handles a swap request end to end: resolve the references, run the
// confirmation gate over the recent conversation, then either execute now or
// store a deferred task for the scheduler.
func (s *Service) Swap(ctx context.Context, ownerID string, intent models.SwapIntent, trigger models.Trigger, history []confirm.Message) (Response, error) {
	swap, err := s.resolver.ResolveSwap(ctx, s.WalletAddress(), intent)
	if err != nil {
		return Response{}, err
	}

	proposal := confirm.DescribeSwap(swap, trigger)
	outcome, err := s.gate.Decide(ctx, proposal, history)
	if err != nil {
		return Response{}, err
	}
	switch outcome {
	case confirm.OutcomePending:
		return Response{Status: StatusAwaitingConfirmation, Message: proposal}, nil
	case confirm.OutcomeRejected:
		s.logger.InfoWith(logger.Gate, "swap request rejected by %s", ownerID)
		return Response{Status: StatusCancelled, Message: "Swap cancelled."}, nil
	}

	if trigger.Kind == models.TriggerImmediate {
		result, err := s.executor.ExecuteSwap(ctx, ownerID, "", swap)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeConfirmationTimeout {
				return Response{
					Status:    StatusSubmitted,
					Message:   "Swap submitted, confirmation still pending.",
					Signature: result.Signature,
				}, nil
			}
			return Response{}, err
		}
		return Response{Status: StatusExecuted, Signature: result.Signature}, nil
	}

	task := models.NewTask(ownerID, swap, trigger, time.Now())
	created, err := s.store.Create(ctx, task)
	if err != nil {
		return Response{}, err
	}
	if !created {
		s.logger.InfoWith(logger.Gate, "duplicate swap request for task %s ignored", task.TaskID)
	}
	return Response{
		Status:  StatusScheduled,
		Message: "Swap scheduled " + trigger.Describe() + ".",
		TaskID:  task.TaskID,
	}, nil
}

// Transfer handles a transfer request: resolve, confirm, execute. Transfers
// are always immediate; there is no deferred transfer task.
func (s *Service) Transfer(ctx context.Context, ownerID string, intent models.TransferIntent, history []confirm.Message) (Response, error) {
	transfer, err := s.resolver.ResolveTransfer(ctx, s.WalletAddress(), intent)
	if err != nil {
		return Response{}, err
	}

	proposal := confirm.DescribeTransfer(transfer)
	outcome, err := s.gate.Decide(ctx, proposal, history)
	if err != nil {
		return Response{}, err
	}
	switch outcome {
	case confirm.OutcomePending:
		return Response{Status: StatusAwaitingConfirmation, Message: proposal}, nil
	case confirm.OutcomeRejected:
		s.logger.InfoWith(logger.Gate, "transfer request rejected by %s", ownerID)
		return Response{Status: StatusCancelled, Message: "Transfer cancelled."}, nil
	}

	result, err := s.executor.ExecuteTransfer(ctx, ownerID, transfer)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeConfirmationTimeout {
			return Response{
				Status:    StatusSubmitted,
				Message:   "Transfer submitted, confirmation still pending.",
				Signature: result.Signature,
			}, nil
		}
		return Response{}, err
	}
	return Response{Status: StatusExecuted, Signature: result.Signature}, nil
}

// CancelTask removes one of the owner's pending tasks.
func (s *Service) CancelTask(ctx context.Context, ownerID, taskID string) error {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		if err == taskstore.ErrNotFound {
			return apperr.Newf(apperr.CodeUnresolvedReference, "no task %s", taskID)
		}
		return err
	}
	if task.OwnerID != ownerID {
		return apperr.Newf(apperr.CodeUnresolvedReference, "no task %s", taskID)
	}
	if task.Status != models.TaskPending {
		return apperr.Newf(apperr.CodeUnresolvedReference, "task %s is no longer pending", taskID)
	}
	return s.store.Remove(ctx, taskID)
}

// PendingSummaries renders the owner's pending tasks for a status report,
// annotated with current prices where the feed answers.
func (s *Service) PendingSummaries(ctx context.Context, ownerID string) ([]string, error) {
	tasks, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]string, 0, len(tasks))
	for _, task := range tasks {
		price := decimal.Zero
		if task.Trigger.Kind == models.TriggerPrice {
			if p, err := s.feed.Price(ctx, task.Trigger.WatchedMint(task.Swap)); err == nil {
				price = p
			}
		}
		summaries = append(summaries, confirm.SummarizePending(task, price))
	}
	return summaries, nil
}
