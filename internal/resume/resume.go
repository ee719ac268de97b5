// Package resume restarts interrupted or stopped tasks. Each task type maps to
// a handler that knows how to relaunch the work from the task's stored request
// parameters; tasks without a dedicated handler fall back to the pipeline
// handler.
package resume

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
)

const fallbackType = models.TaskTypePipeline

var (
	// ErrNotResumable marks tasks that were created without stored request
	// parameters and therefore cannot be relaunched.
	ErrNotResumable = errors.New("task has no stored request parameters")

	// ErrNoHandler marks task types nothing registered a handler for.
	ErrNoHandler = errors.New("no resume handler for task type")
)

// Manager is the slice of the task manager the resume service needs.
type Manager interface {
	Get(id string) (models.Task, error)
	Reset(id string) error
}

// Handler relaunches one kind of task. Implementations are expected to return
// quickly, scheduling the actual work in the background.
type Handler interface {
	Type() string
	Resume(ctx context.Context, task models.Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	TaskType string
	Fn       func(ctx context.Context, task models.Task) error
}

func (h HandlerFunc) Type() string { return h.TaskType }

func (h HandlerFunc) Resume(ctx context.Context, task models.Task) error {
	return h.Fn(ctx, task)
}

// Service dispatches resume requests to per-type handlers.
type Service struct {
	manager  Manager
	handlers map[string]Handler
}

func NewService(manager Manager) *Service {
	return &Service{
		manager:  manager,
		handlers: map[string]Handler{},
	}
}

// Register binds a handler to its task type, replacing any earlier binding.
func (s *Service) Register(handler Handler) {
	s.handlers[handler.Type()] = handler
}

// Resume relaunches the given task. Already running tasks are left alone.
func (s *Service) Resume(ctx context.Context, id string) error {
	task, err := s.manager.Get(id)
	if err != nil {
		return err
	}

	if task.Status == models.TaskStatusRunning {
		log.Debug().Str("task_id", id).Msg("resume requested for task that is already running")
		return nil
	}

	if len(task.RequestParams) == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotResumable)
	}

	handler, exists := s.handlers[task.Type]
	if !exists {
		handler, exists = s.handlers[fallbackType]
	}
	if !exists {
		return fmt.Errorf("%q: %w", task.Type, ErrNoHandler)
	}

	// Back to pending with a cleared outcome and cancel latch before the
	// handler relaunches the work.
	if err := s.manager.Reset(id); err != nil {
		return err
	}

	task, err = s.manager.Get(id)
	if err != nil {
		return err
	}

	log.Info().Str("task_id", id).Str("type", task.Type).Msg("resuming task")

	return handler.Resume(ctx, task)
}
