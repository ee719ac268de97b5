package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/tasklog"
	"github.com/jcallum/medley/internal/taskmanager"
)

const (
	traceStatusCompleted = "completed"
	traceStatusFailed    = "failed"
	traceStatusCancelled = "cancelled"
)

// TaskManager is the slice of the task manager the runner needs. Narrowed to an
// interface so tests can run pipelines against a recording fake.
type TaskManager interface {
	Update(id string, fields taskmanager.UpdatableFields) error
	IsCancelled(id string) bool
}

// Runner drives an ordered list of steps against a fresh context for one task.
type Runner struct {
	manager TaskManager

	// logsDir, when set, receives a per-task log file of step transitions.
	logsDir string
}

func NewRunner(manager TaskManager, logsDir string) *Runner {
	return &Runner{
		manager: manager,
		logsDir: logsDir,
	}
}

// Run executes steps in order. Cancellation is cooperative: the latch is
// checked before every step, and within a step cancellation is the step's own
// responsibility. A single step failure is fatal for the whole pipeline.
func (r *Runner) Run(ctx context.Context, taskID string, steps []StepRequest) (*models.TaskResult, error) {
	pctx := NewContext()

	logs := r.openLogs(taskID)
	defer logs.Close()

	err := r.manager.Update(taskID, taskmanager.UpdatableFields{
		Status:  models.Ptr(models.TaskStatusRunning),
		Message: models.Ptr("Starting pipeline..."),
	})
	if err != nil {
		return nil, err
	}

	logs.Printf("pipeline started with %d steps", len(steps))

	for _, request := range steps {
		if r.manager.IsCancelled(taskID) {
			r.finishCancelled(taskID, logs)
			return nil, fmt.Errorf("pipeline stopped before step %q: %w", request.StepName, models.ErrTaskCancelled)
		}

		err := r.manager.Update(taskID, taskmanager.UpdatableFields{
			Message: models.Ptr(fmt.Sprintf("Executing step: %s", request.StepName)),
		})
		if err != nil {
			return nil, err
		}

		step, err := GetStep(request.StepName)
		if err != nil {
			r.finishFailed(taskID, err, logs)
			return nil, err
		}

		logs.Printf("executing step %q", request.StepName)
		started := time.Now()

		err = step.Execute(ctx, pctx, request.Params, taskID)
		if err != nil {
			if isCancellation(ctx, err) {
				pctx.recordStep(request.StepName, started, traceStatusCancelled, err.Error())
				r.finishCancelled(taskID, logs)
				return nil, fmt.Errorf("step %q: %w", request.StepName, models.ErrTaskCancelled)
			}

			pctx.recordStep(request.StepName, started, traceStatusFailed, err.Error())
			r.finishFailed(taskID, err, logs)
			return nil, fmt.Errorf("step %q: %w", request.StepName, err)
		}

		pctx.History = append(pctx.History, request.StepName)
		pctx.recordStep(request.StepName, started, traceStatusCompleted, "")
		logs.Printf("step %q completed in %.2fs", request.StepName, time.Since(started).Seconds())
	}

	result := buildResult(pctx)

	err = r.manager.Update(taskID, taskmanager.UpdatableFields{
		Status:   models.Ptr(models.TaskStatusCompleted),
		Progress: models.Ptr(100.0),
		Message:  models.Ptr("Pipeline completed successfully"),
		Result:   result,
	})
	if err != nil {
		return nil, err
	}

	logs.Printf("pipeline completed")

	return result, nil
}

func (r *Runner) openLogs(taskID string) *tasklog.Writer {
	if r.logsDir == "" {
		return nil
	}

	logs, err := tasklog.Open(r.logsDir, taskID)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not open task log file")
		return nil
	}

	return logs
}

func (r *Runner) finishCancelled(taskID string, logs *tasklog.Writer) {
	logs.Printf("pipeline cancelled")

	err := r.manager.Update(taskID, taskmanager.UpdatableFields{
		Status:  models.Ptr(models.TaskStatusCancelled),
		Message: models.Ptr("Pipeline cancelled"),
	})
	if err != nil && !errors.Is(err, taskmanager.ErrTaskNotFound) {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not record pipeline cancellation")
	}
}

func (r *Runner) finishFailed(taskID string, cause error, logs *tasklog.Writer) {
	logs.Printf("pipeline failed: %v", cause)

	err := r.manager.Update(taskID, taskmanager.UpdatableFields{
		Status:  models.Ptr(models.TaskStatusFailed),
		Message: models.Ptr(cause.Error()),
		Error:   models.Ptr(cause.Error()),
	})
	if err != nil && !errors.Is(err, taskmanager.ErrTaskNotFound) {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not record pipeline failure")
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, models.ErrTaskCancelled) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}

// buildResult normalizes the run context into the task's final result: the
// context data becomes meta, the trace is attached, and well-known path keys
// become file references.
func buildResult(pctx *Context) *models.TaskResult {
	meta := pctx.Data()
	meta["execution_trace"] = pctx.Trace

	files := []models.FileRef{}

	if path, ok := pctx.GetString(KeyOutputVideoPath); ok {
		files = append(files, models.FileRef{Type: "video", Path: path})
	} else if path, ok := pctx.GetString(KeyVideoPath); ok {
		files = append(files, models.FileRef{Type: "video", Path: path})
	}

	if path, ok := pctx.GetString(KeyTranslatedSRTPath); ok {
		files = append(files, models.FileRef{Type: "subtitle", Path: path})
	} else if path, ok := pctx.GetString(KeySRTPath); ok {
		files = append(files, models.FileRef{Type: "subtitle", Path: path})
	}

	return &models.TaskResult{
		Success: true,
		Files:   files,
		Meta:    meta,
	}
}
