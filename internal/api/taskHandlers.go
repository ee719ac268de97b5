package api

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/resume"
	"github.com/jcallum/medley/internal/tasklog"
	"github.com/jcallum/medley/internal/taskmanager"
)

type ListTasksRequest struct{}

type ListTasksResponse struct {
	Body struct {
		Tasks []models.Task `json:"tasks" doc:"All known tasks, newest first"`
	}
}

func (apictx *APIContext) registerListTasks(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListTasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks",
		Summary:     "List all tasks",
		Description: "Lists every known task with its current status, progress, and result.",
		Tags:        []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, _ *ListTasksRequest) (*ListTasksResponse, error) {
		resp := &ListTasksResponse{}
		resp.Body.Tasks = apictx.manager.List()

		return resp, nil
	})
}

type DescribeTaskRequest struct {
	ID string `path:"id" example:"f1p2k9d8e3a1" doc:"Unique identifier for the target task"`
}

type DescribeTaskResponse struct {
	Body struct {
		Task models.Task `json:"task" doc:"Metadata for the task requested"`
	}
}

func (apictx *APIContext) registerDescribeTask(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeTask",
		Method:      http.MethodGet,
		Path:        "/api/tasks/{id}",
		Summary:     "Retrieve information on a specific task",
		Description: "Returns the full current state of a single task.",
		Tags:        []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, request *DescribeTaskRequest) (*DescribeTaskResponse, error) {
		task, err := apictx.manager.Get(request.ID)
		if err != nil {
			if errors.Is(err, taskmanager.ErrTaskNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task not found")
			}
			log.Error().Err(err).Msg("could not get task")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve task")
		}

		resp := &DescribeTaskResponse{}
		resp.Body.Task = task

		return resp, nil
	})
}

type CancelTaskRequest struct {
	ID string `path:"id" example:"f1p2k9d8e3a1" doc:"Unique identifier for the target task"`
}

type CancelTaskResponse struct{}

func (apictx *APIContext) registerCancelTask(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "CancelTask",
		Method:      http.MethodPost,
		Path:        "/api/tasks/{id}/cancel",
		Summary:     "Cancel a specific task",
		Description: "Sets the task's cancel latch. Workers observe the latch cooperatively, so a running worker may " +
			"take a moment to stop. Cancelling an already cancelled task is a no-op.",
		Tags: []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, request *CancelTaskRequest) (*CancelTaskResponse, error) {
		err := apictx.manager.Cancel(request.ID)
		if err != nil {
			if errors.Is(err, taskmanager.ErrTaskNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task not found")
			}
			log.Error().Err(err).Msg("could not cancel task")
			return nil, huma.NewError(http.StatusInternalServerError, "could not cancel task")
		}

		return &CancelTaskResponse{}, nil
	})
}

type CancelAllTasksRequest struct{}

type CancelAllTasksResponse struct {
	Body struct {
		Cancelled int `json:"cancelled" example:"3" doc:"Number of tasks that were asked to stop"`
	}
}

func (apictx *APIContext) registerCancelAllTasks(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "CancelAllTasks",
		Method:      http.MethodPost,
		Path:        "/api/tasks/cancel-all",
		Summary:     "Cancel every active task",
		Description: "Cancels every task that is still pending or running. Observers receive a single snapshot with " +
			"the swept state rather than one update per task.",
		Tags: []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, _ *CancelAllTasksRequest) (*CancelAllTasksResponse, error) {
		count, err := apictx.manager.CancelAll()
		if err != nil {
			log.Error().Err(err).Msg("could not cancel tasks")
			return nil, huma.NewError(http.StatusInternalServerError, "could not cancel tasks")
		}

		resp := &CancelAllTasksResponse{}
		resp.Body.Cancelled = count

		return resp, nil
	})
}

type ResumeTaskRequest struct {
	ID string `path:"id" example:"f1p2k9d8e3a1" doc:"Unique identifier for the target task"`
}

type ResumeTaskResponse struct {
	Body struct {
		TaskID string `json:"task_id" doc:"Identifier of the resumed task"`
	}
}

func (apictx *APIContext) registerResumeTask(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ResumeTask",
		Method:      http.MethodPost,
		Path:        "/api/tasks/{id}/resume",
		Summary:     "Resume a stopped task",
		Description: "Relaunches a paused, failed, or cancelled task from its stored request parameters, reusing its " +
			"id. Tasks that are already running are left alone.",
		Tags: []string{"Tasks"},
		// Handler //
	}, func(ctx context.Context, request *ResumeTaskRequest) (*ResumeTaskResponse, error) {
		err := apictx.resume.Resume(ctx, request.ID)
		if err != nil {
			switch {
			case errors.Is(err, taskmanager.ErrTaskNotFound):
				return nil, huma.NewError(http.StatusNotFound, "task not found")
			case errors.Is(err, resume.ErrNotResumable):
				return nil, huma.NewError(http.StatusBadRequest, "task has no stored request parameters and cannot be resumed")
			case errors.Is(err, resume.ErrNoHandler):
				return nil, huma.NewError(http.StatusBadRequest, "no handler registered for this task type")
			}

			log.Error().Err(err).Msg("could not resume task")
			return nil, huma.NewError(http.StatusInternalServerError, "could not resume task")
		}

		resp := &ResumeTaskResponse{}
		resp.Body.TaskID = request.ID

		return resp, nil
	})
}

type DeleteTaskRequest struct {
	ID string `path:"id" example:"f1p2k9d8e3a1" doc:"Unique identifier for the target task"`
}

type DeleteTaskResponse struct{}

func (apictx *APIContext) registerDeleteTask(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteTask",
		Method:      http.MethodDelete,
		Path:        "/api/tasks/{id}",
		Summary:     "Delete a specific task",
		Description: "Removes the task record. Deleting a running task does not preempt its worker; the worker's " +
			"remaining updates are dropped.",
		Tags: []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, request *DeleteTaskRequest) (*DeleteTaskResponse, error) {
		err := apictx.manager.Delete(request.ID)
		if err != nil {
			if errors.Is(err, taskmanager.ErrTaskNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task not found")
			}
			log.Error().Err(err).Msg("could not delete task")
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete task")
		}

		return &DeleteTaskResponse{}, nil
	})
}

type DeleteAllTasksRequest struct{}

type DeleteAllTasksResponse struct {
	Body struct {
		Deleted int64 `json:"deleted" example:"12" doc:"Number of task records removed"`
	}
}

func (apictx *APIContext) registerDeleteAllTasks(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteAllTasks",
		Method:      http.MethodDelete,
		Path:        "/api/tasks",
		Summary:     "Delete every task",
		Description: "Removes every task record and announces the now empty state to observers.",
		Tags:        []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, _ *DeleteAllTasksRequest) (*DeleteAllTasksResponse, error) {
		removed, err := apictx.manager.DeleteAll()
		if err != nil {
			log.Error().Err(err).Msg("could not delete tasks")
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete tasks")
		}

		resp := &DeleteAllTasksResponse{}
		resp.Body.Deleted = removed

		return resp, nil
	})
}

type GetTaskLogsRequest struct {
	ID string `path:"id" example:"f1p2k9d8e3a1" doc:"Unique identifier for the target task"`
}

type GetTaskLogsResponse struct {
	Body struct {
		Lines []string `json:"lines" doc:"Task log lines, oldest first"`
	}
}

func (apictx *APIContext) registerGetTaskLogs(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "GetTaskLogs",
		Method:      http.MethodGet,
		Path:        "/api/tasks/{id}/logs",
		Summary:     "Retrieve the log lines for a specific task",
		Description: "Returns the per-task log file produced by the workers. Tasks that have not produced any logs " +
			"yet return an empty list.",
		Tags: []string{"Tasks"},
		// Handler //
	}, func(_ context.Context, request *GetTaskLogsRequest) (*GetTaskLogsResponse, error) {
		if _, err := apictx.manager.Get(request.ID); err != nil {
			if errors.Is(err, taskmanager.ErrTaskNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task not found")
			}
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve task")
		}

		resp := &GetTaskLogsResponse{}
		resp.Body.Lines = []string{}

		logFilePath := tasklog.Path(apictx.config.TaskLogsDir, request.ID)
		if _, err := os.Stat(logFilePath); err != nil {
			return resp, nil
		}

		file, err := tail.TailFile(logFilePath, tail.Config{Follow: false, Logger: tail.DiscardingLogger})
		if err != nil {
			log.Error().Err(err).Str("task_id", request.ID).Msg("error opening task log file")
			return nil, huma.NewError(http.StatusInternalServerError, "error opening task log file")
		}

		for line := range file.Lines {
			if line.Err != nil {
				break
			}
			resp.Body.Lines = append(resp.Body.Lines, line.Text)
		}

		return resp, nil
	})
}
