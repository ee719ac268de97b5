// Package models contains the core types medley passes between its storage layer,
// task manager, and API surface.
package models

import (
	"encoding/json"
	"time"

	"github.com/jcallum/medley/internal/storage"
	"github.com/rs/zerolog/log"
)

type TaskStatus string

const (
	TaskStatusUnknown TaskStatus = "unknown" // Should never be in this state.
	TaskStatusPending TaskStatus = "pending" // Created but not yet picked up by a worker.
	TaskStatusRunning TaskStatus = "running" // Currently being executed.
	// A task interrupted before finishing. Tasks in this state keep their request
	// params and can be resumed by their type handler.
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed" // Finished successfully; result is populated.
	TaskStatusFailed    TaskStatus = "failed"    // Finished with an error; error is populated.
	TaskStatusCancelled TaskStatus = "cancelled" // Stopped at the user's request.
)

// IsTerminal returns whether no further state changes will happen to a task
// unless it is explicitly reset.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Well-known task types. Each routes to a resume handler of the same name.
const (
	TaskTypePipeline   = "pipeline"
	TaskTypeDownload   = "download"
	TaskTypeTranscribe = "transcribe"
	TaskTypeTranslate  = "translate"
	TaskTypeSynthesis  = "synthesis"
)

// FileRef points to a file a task produced.
type FileRef struct {
	Type  string `json:"type" example:"subtitle" doc:"Kind of file produced; video, subtitle, json, srt"`
	Path  string `json:"path" example:"/var/lib/medley/out/a.srt" doc:"Absolute path of the file"`
	Label string `json:"label,omitempty" example:"Translated subtitles" doc:"Optional human readable label"`
}

// TaskResult is the normalized success payload of a finished task.
type TaskResult struct {
	Success bool           `json:"success" doc:"Whether the task finished successfully"`
	Files   []FileRef      `json:"files,omitempty" doc:"Files the task produced, in production order"`
	Meta    map[string]any `json:"meta,omitempty" doc:"Additional structured output fields"`
}

// Task is an individually addressable unit of work. It is the unit medley
// persists, reports on, and fans out to observers.
type Task struct {
	ID       string     `json:"id" example:"f2o0jph4lsrc" doc:"Unique identifier, assigned at creation"`
	Name     string     `json:"name" example:"Transcribe interview.mp3" doc:"Human readable label"`
	Type     string     `json:"type" example:"transcribe" doc:"Kind of work; routes to a handler on resume"`
	Status   TaskStatus `json:"status" example:"running" doc:"Current lifecycle status"`
	Progress float64    `json:"progress" example:"42.5" doc:"Completion percentage in [0, 100]"`
	Message  string     `json:"message" example:"Transcribing chunk 3/7" doc:"Short human readable status line"`
	Error    string     `json:"error,omitempty" doc:"Error description; set only when status is failed"`

	// Result is non-nil only once the task has completed.
	Result *TaskResult `json:"result,omitempty" doc:"Normalized success payload"`

	// RequestParams carries everything needed to re-run the task. Required for resume.
	RequestParams map[string]any `json:"request_params,omitempty" doc:"Parameters sufficient to re-run the task"`

	CreatedAt int64 `json:"created_at" example:"1712433802000" doc:"Creation time in epoch milliseconds; refreshed on reset"`

	// Cancelled is a one-way latch observed cooperatively by workers. Workers
	// poll it and exit as soon as reasonable; it clears only on reset.
	Cancelled bool `json:"cancelled" doc:"Cooperative cancellation latch"`
}

func NewTask(id, taskType, name, message string, params map[string]any) *Task {
	return &Task{
		ID:            id,
		Name:          name,
		Type:          taskType,
		Status:        TaskStatusPending,
		Progress:      0,
		Message:       message,
		RequestParams: params,
		CreatedAt:     time.Now().UnixMilli(),
		Cancelled:     false,
	}
}

func (t *Task) ToStorage() *storage.Task {
	params, err := json.Marshal(t.RequestParams)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	result := ""
	if t.Result != nil {
		raw, err := json.Marshal(t.Result)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating to storage")
		}
		result = string(raw)
	}

	return &storage.Task{
		ID:            t.ID,
		Name:          t.Name,
		Type:          t.Type,
		Status:        string(t.Status),
		Progress:      t.Progress,
		Message:       t.Message,
		Error:         t.Error,
		Result:        result,
		RequestParams: string(params),
		CreatedAt:     t.CreatedAt,
		Cancelled:     t.Cancelled,
	}
}

func (t *Task) FromStorage(st *storage.Task) {
	var params map[string]any
	if st.RequestParams != "" {
		err := json.Unmarshal([]byte(st.RequestParams), &params)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	var result *TaskResult
	if st.Result != "" {
		result = &TaskResult{}
		err := json.Unmarshal([]byte(st.Result), result)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	t.ID = st.ID
	t.Name = st.Name
	t.Type = st.Type
	t.Status = TaskStatus(st.Status)
	t.Progress = st.Progress
	t.Message = st.Message
	t.Error = st.Error
	t.Result = result
	t.RequestParams = params
	t.CreatedAt = st.CreatedAt
	t.Cancelled = st.Cancelled
}

// Ptr returns a pointer to any value. Useful for filling out optional storage fields.
func Ptr[T any](v T) *T {
	return &v
}
