package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultExpiryHorizon bounds how long an unexecuted task may live.
const DefaultExpiryHorizon = 24 * time.Hour

// TaskStatus is the lifecycle state of a stored task. A task is claimed by
// flipping pending to executing in a single update, so two scheduler ticks
// can never both take the same task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskExecuting TaskStatus = "executing"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// AutoSwapTask is a confirmed swap deferred until its trigger is met.
type AutoSwapTask struct {
	TaskID    string       `json:"task_id" gorm:"primaryKey;column:task_id"`
	OwnerID   string       `json:"owner_id" gorm:"index;column:owner_id"`
	Swap      ResolvedSwap `json:"swap" gorm:"serializer:json"`
	Trigger   Trigger      `json:"trigger" gorm:"serializer:json"`
	Status    TaskStatus   `json:"status" gorm:"index;column:status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpireAt  time.Time    `json:"expire_at" gorm:"index;column:expire_at"`
}

// Expired reports whether the task's expiry has passed at now.
func (t AutoSwapTask) Expired(now time.Time) bool {
	return !t.ExpireAt.After(now)
}

// NewTask builds a task with a content-derived id so re-confirming the same
// request collides with the stored task instead of duplicating it.
func NewTask(ownerID string, swap ResolvedSwap, trigger Trigger, now time.Time) AutoSwapTask {
	return AutoSwapTask{
		TaskID:    TaskID(ownerID, swap, trigger),
		OwnerID:   ownerID,
		Swap:      swap,
		Trigger:   trigger,
		Status:    TaskPending,
		CreatedAt: now,
		ExpireAt:  now.Add(DefaultExpiryHorizon),
	}
}

// TaskID derives a deterministic id from the owner, the resolved intent and
// the trigger condition. Field order is fixed; timestamps are excluded so
// identical requests hash identically.
func TaskID(ownerID string, swap ResolvedSwap, trigger Trigger) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		ownerID,
		swap.InputMint,
		swap.OutputMint,
		swap.Amount.String(),
		trigger.Kind,
		trigger.Direction,
		trigger.TargetPrice.String(),
		trigger.StartAt.UTC().Format(time.RFC3339),
	)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
