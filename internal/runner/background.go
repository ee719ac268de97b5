// Package runner executes blocking media workers off the serving goroutines.
// It is the uniform adapter for single-step submissions: mark the task running,
// bridge the worker's progress callback into task updates, and normalize the
// worker's return or error into the task's terminal state.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/tasklog"
	"github.com/jcallum/medley/internal/taskmanager"
)

// TaskManager is the slice of the task manager the background runner needs.
type TaskManager interface {
	Update(id string, fields taskmanager.UpdatableFields) error
	IsCancelled(id string) bool
}

// WorkerFunc is a blocking unit of work. It must honor ctx cancellation and may
// call progress from any goroutine.
type WorkerFunc func(ctx context.Context, progress media.ProgressFunc) (any, error)

// ResultTransformer shapes a worker's raw return into the normalized task result.
type ResultTransformer func(raw any) *models.TaskResult

// Resulter lets worker return values dump themselves into result form without
// a transformer.
type Resulter interface {
	TaskResult() *models.TaskResult
}

// Options carry the per-submission display strings and result shaping.
type Options struct {
	StartMessage   string
	SuccessMessage string
	Transform      ResultTransformer
}

// Background schedules workers onto a bounded pool and reflects their lifecycle
// into the task manager.
type Background struct {
	manager TaskManager
	pool    *Pool

	// logsDir, when set, receives a per-task log file of progress lines.
	logsDir string

	// pollInterval controls how often the cancel latch is polled while a worker
	// runs. Shortened in tests.
	pollInterval time.Duration
}

func NewBackground(manager TaskManager, pool *Pool, logsDir string) *Background {
	return &Background{
		manager:      manager,
		pool:         pool,
		logsDir:      logsDir,
		pollInterval: 500 * time.Millisecond,
	}
}

// Run marks the task running and schedules worker on the pool. It returns once
// the task is observable as running; the worker's outcome lands asynchronously.
func (b *Background) Run(taskID string, worker WorkerFunc, opts Options) error {
	err := b.manager.Update(taskID, taskmanager.UpdatableFields{
		Status:  models.Ptr(models.TaskStatusRunning),
		Message: models.Ptr(opts.StartMessage),
	})
	if err != nil {
		return err
	}

	b.pool.Submit(func() {
		b.execute(taskID, worker, opts)
	})

	return nil
}

func (b *Background) execute(taskID string, worker WorkerFunc, opts Options) {
	logs := b.openLogs(taskID)
	defer logs.Close()
	logs.Printf("worker started: %s", opts.StartMessage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge the persistent cancel latch into the worker's context so workers
	// that block on I/O stop without having to poll themselves.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchDone:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if b.manager.IsCancelled(taskID) {
					cancel()
					return
				}
			}
		}
	}()

	progress := func(percent float64, message string) {
		logs.Printf("%.1f%% %s", percent, message)

		err := b.manager.Update(taskID, taskmanager.UpdatableFields{
			Progress: models.Ptr(percent),
			Message:  models.Ptr(message),
		})
		if err != nil && !errors.Is(err, taskmanager.ErrTaskNotFound) {
			log.Error().Err(err).Str("task_id", taskID).Msg("could not record worker progress")
		}
	}

	raw, err := worker(ctx, progress)
	if err != nil {
		if errors.Is(err, models.ErrTaskCancelled) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			logs.Printf("worker cancelled")
			b.finish(taskID, taskmanager.UpdatableFields{
				Status:  models.Ptr(models.TaskStatusCancelled),
				Message: models.Ptr("Task cancelled"),
			})
			return
		}

		logs.Printf("worker failed: %v", err)
		b.finish(taskID, taskmanager.UpdatableFields{
			Status:  models.Ptr(models.TaskStatusFailed),
			Message: models.Ptr(err.Error()),
			Error:   models.Ptr(err.Error()),
		})
		return
	}

	logs.Printf("worker finished: %s", opts.SuccessMessage)
	b.finish(taskID, taskmanager.UpdatableFields{
		Status:   models.Ptr(models.TaskStatusCompleted),
		Progress: models.Ptr(100.0),
		Message:  models.Ptr(opts.SuccessMessage),
		Result:   shapeResult(raw, opts.Transform),
	})
}

func (b *Background) finish(taskID string, fields taskmanager.UpdatableFields) {
	err := b.manager.Update(taskID, fields)
	if err != nil && !errors.Is(err, taskmanager.ErrTaskNotFound) {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not record worker outcome")
	}
}

func (b *Background) openLogs(taskID string) *tasklog.Writer {
	if b.logsDir == "" {
		return nil
	}

	logs, err := tasklog.Open(b.logsDir, taskID)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not open task log file")
		return nil
	}

	return logs
}

// shapeResult normalizes a worker's raw return: an explicit transformer wins,
// then self-dumping returns, then already-shaped results, and finally anything
// else is passed through as meta.
func shapeResult(raw any, transform ResultTransformer) *models.TaskResult {
	if transform != nil {
		return transform(raw)
	}

	switch value := raw.(type) {
	case nil:
		return &models.TaskResult{Success: true}
	case *models.TaskResult:
		return value
	case models.TaskResult:
		return &value
	case Resulter:
		return value.TaskResult()
	case map[string]any:
		return &models.TaskResult{Success: true, Meta: value}
	default:
		return &models.TaskResult{Success: true, Meta: map[string]any{"value": value}}
	}
}
