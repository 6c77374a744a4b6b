package taskstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// ErrNotFound is returned when a task id has no stored row.
var ErrNotFound = errors.New("task not found")

// Store persists deferred swap tasks. Tasks survive restarts; a task only
// leaves the pending state through Claim, expiry, or removal.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open opens or creates the task database at path.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "open task database", err)
	}
	if err := db.AutoMigrate(&models.AutoSwapTask{}); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "migrate task database", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Create inserts a task. A second insert with the same content-derived id is
// a no-op, which makes re-confirmation idempotent. Returns whether the task
// was newly stored.
func (s *Store) Create(ctx context.Context, task models.AutoSwapTask) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&task)
	if res.Error != nil {
		return false, apperr.Wrap(apperr.CodeInternal, "store task", res.Error)
	}
	created := res.RowsAffected == 1
	if created {
		metrics.TasksCreated.WithLabelValues(string(task.Trigger.Kind)).Inc()
		s.logger.InfoWith(logger.Store, "stored task %s (%s)", task.TaskID, task.Trigger.Describe())
	} else {
		s.logger.DebugWith(logger.Store, "task %s already stored", task.TaskID)
	}
	return created, nil
}

// Get loads one task by id.
func (s *Store) Get(ctx context.Context, taskID string) (models.AutoSwapTask, error) {
	var task models.AutoSwapTask
	res := s.db.WithContext(ctx).First(&task, "task_id = ?", taskID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return models.AutoSwapTask{}, ErrNotFound
		}
		return models.AutoSwapTask{}, apperr.Wrap(apperr.CodeInternal, "load task", res.Error)
	}
	return task, nil
}

// ListPending returns all tasks still waiting on their trigger, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.AutoSwapTask, error) {
	var tasks []models.AutoSwapTask
	res := s.db.WithContext(ctx).
		Where("status = ?", models.TaskPending).
		Order("created_at asc").
		Find(&tasks)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list pending tasks", res.Error)
	}
	return tasks, nil
}

// ListByOwner returns the owner's pending tasks for status reports.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.AutoSwapTask, error) {
	var tasks []models.AutoSwapTask
	res := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.TaskPending).
		Order("created_at asc").
		Find(&tasks)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list owner tasks", res.Error)
	}
	return tasks, nil
}

// Claim flips a task from pending to executing. Exactly one caller wins; a
// false return means another worker already holds the task or it is gone.
func (s *Store) Claim(ctx context.Context, taskID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.AutoSwapTask{}).
		Where("task_id = ? AND status = ?", taskID, models.TaskPending).
		Update("status", models.TaskExecuting)
	if res.Error != nil {
		return false, apperr.Wrap(apperr.CodeInternal, "claim task", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release returns a claimed task to pending, used when execution could not
// start after the claim.
func (s *Store) Release(ctx context.Context, taskID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.AutoSwapTask{}).
		Where("task_id = ? AND status = ?", taskID, models.TaskExecuting).
		Update("status", models.TaskPending)
	if res.Error != nil {
		return apperr.Wrap(apperr.CodeInternal, "release task", res.Error)
	}
	return nil
}

// Complete records a successful execution.
func (s *Store) Complete(ctx context.Context, taskID string) error {
	return s.finish(ctx, taskID, models.TaskCompleted)
}

// Fail records a failed execution.
func (s *Store) Fail(ctx context.Context, taskID string) error {
	return s.finish(ctx, taskID, models.TaskFailed)
}

func (s *Store) finish(ctx context.Context, taskID string, status models.TaskStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.AutoSwapTask{}).
		Where("task_id = ?", taskID).
		Update("status", status)
	if res.Error != nil {
		return apperr.Wrap(apperr.CodeInternal, "finish task", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.InfoWith(logger.Store, "task %s %s", taskID, status)
	return nil
}

// Remove deletes a task outright, used for expiry and user cancellation.
func (s *Store) Remove(ctx context.Context, taskID string) error {
	res := s.db.WithContext(ctx).Delete(&models.AutoSwapTask{}, "task_id = ?", taskID)
	if res.Error != nil {
		return apperr.Wrap(apperr.CodeInternal, "remove task", res.Error)
	}
	return nil
}

// RecoverOrphans returns tasks stuck in executing back to pending. Run once
// at startup: a crash mid-execution must not strand a claimed task forever.
func (s *Store) RecoverOrphans(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.AutoSwapTask{}).
		Where("status = ?", models.TaskExecuting).
		Update("status", models.TaskPending)
	if res.Error != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "recover orphaned tasks", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.NoticeWith(logger.Store, "recovered %d orphaned tasks", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// PurgeFinished deletes completed and failed rows older than the retention
// window so the table stays small.
func (s *Store) PurgeFinished(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []models.TaskStatus{models.TaskCompleted, models.TaskFailed}, olderThan).
		Delete(&models.AutoSwapTask{})
	if res.Error != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "purge finished tasks", res.Error)
	}
	return res.RowsAffected, nil
}
