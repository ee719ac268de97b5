// Package taskmanager is the authoritative custodian of task state. Every task
// mutation flows through the Manager: it commits to storage first, refreshes an
// in-memory cache from the committed row, and then fans the change out to
// observers. The store-first ordering is the invariant that makes restart
// recovery trustworthy; the cache never holds a task the store does not.
package taskmanager

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/storage"
	"github.com/jcallum/medley/internal/syncmap"
)

var (
	// ErrTaskNotFound is returned when an operation targets a task id that does not exist.
	ErrTaskNotFound = errors.New("taskmanager: task not found")
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 12
)

// Broadcaster pushes task state changes to connected observers. The concrete
// notifier is attached after construction via SetNotifier since the notifier
// itself needs the manager to serve snapshots.
type Broadcaster interface {
	Broadcast(msg models.WireMessage)
}

// UpdatableFields is the whitelist of task fields callers may change through
// Update. Anything else is owned by the manager itself.
type UpdatableFields struct {
	Status    *models.TaskStatus
	Progress  *float64
	Message   *string
	Error     *string
	Result    *models.TaskResult
	Cancelled *bool
	CreatedAt *int64
}

// Manager owns the task table and the in-memory task cache.
type Manager struct {
	// mu serializes write operations so that the order of store commits and the
	// order of emitted events agree.
	mu sync.Mutex

	db       storage.DB
	cache    syncmap.Syncmap[string, models.Task]
	notifier Broadcaster
}

// New opens the task table, loads every stored task into the cache, and
// reclassifies tasks that were active when the previous process died: anything
// still pending or running is rewritten to paused with the cancel latch set, in
// a single transaction, so it can be resumed by its type handler.
func New(db storage.DB) (*Manager, error) {
	m := &Manager{
		db:    db,
		cache: syncmap.New[string, models.Task](),
	}

	interrupted, err := m.recoverInterrupted()
	if err != nil {
		return nil, fmt.Errorf("could not recover interrupted tasks: %w", err)
	}

	if interrupted > 0 {
		log.Info().Int("tasks", interrupted).Msg("marked interrupted tasks as paused")
	}

	tasks, err := m.loadAll()
	if err != nil {
		return nil, fmt.Errorf("could not load tasks: %w", err)
	}

	for _, task := range tasks {
		m.cache.Set(task.ID, task)
	}

	return m, nil
}

// SetNotifier attaches the observer fan-out. Emissions before this call are
// silently skipped.
func (m *Manager) SetNotifier(notifier Broadcaster) {
	m.mu.Lock()
	m.notifier = notifier
	m.mu.Unlock()
}

func (m *Manager) recoverInterrupted() (int, error) {
	count := 0

	err := storage.InsideTx(m.db.DB, func(tx *sqlx.Tx) error {
		offset := 0
		for {
			tasks, err := m.db.ListTasks(tx, offset, 100)
			if err != nil {
				return err
			}

			for _, stored := range tasks {
				status := models.TaskStatus(stored.Status)
				if status != models.TaskStatusPending && status != models.TaskStatusRunning {
					continue
				}

				err := m.db.UpdateTask(tx, stored.ID, storage.UpdatableTaskFields{
					Status:    models.Ptr(string(models.TaskStatusPaused)),
					Message:   models.Ptr("Interrupted by restart"),
					Cancelled: models.Ptr(true),
				})
				if err != nil {
					return err
				}
				count++
			}

			if len(tasks) < 100 {
				return nil
			}
			offset += len(tasks)
		}
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (m *Manager) loadAll() ([]models.Task, error) {
	tasks := []models.Task{}

	offset := 0
	for {
		stored, err := m.db.ListTasks(m.db, offset, 100)
		if err != nil {
			return nil, err
		}

		for _, row := range stored {
			row := row
			task := models.Task{}
			task.FromStorage(&row)
			tasks = append(tasks, task)
		}

		if len(stored) < 100 {
			return tasks, nil
		}
		offset += len(stored)
	}
}

// Create registers a new task and announces it to observers. Request params are
// normalized to their canonical JSON form so that a later fetch round-trips
// byte-equivalent.
func (m *Manager) Create(taskType, name, message string, params map[string]any) (string, error) {
	sanitized, err := sanitizeParams(params)
	if err != nil {
		return "", fmt.Errorf("request params are not serializable: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createLocked(taskType, name, message, sanitized)
}

// createLocked inserts a new task from already-sanitized params. Callers must
// hold mu.
func (m *Manager) createLocked(taskType, name, message string, sanitized map[string]any) (string, error) {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("could not generate task id: %w", err)
	}

	if name == "" {
		name = fmt.Sprintf("%s task", taskType)
	}

	task := models.NewTask(id, taskType, name, message, sanitized)

	err = m.db.InsertTask(m.db, task.ToStorage())
	if err != nil {
		return "", err
	}

	m.cache.Set(id, *task)
	m.emitUpdate(*task)

	return id, nil
}

// SubmitOutcome describes how Submit resolved a request against existing tasks.
type SubmitOutcome int

const (
	SubmitCreated   SubmitOutcome = iota // No matching task; a fresh one was created.
	SubmitDebounced                      // A matching task is still active; its id is reused.
	SubmitRecycled                       // A matching finished task was reset in place.
)

// Submit resolves a submission against existing work in one atomic step: an
// active task with the same canonical identity debounces the request, a
// finished one is recycled in place, and otherwise a fresh task is created.
// The probe and the write happen under the same lock, so identical concurrent
// submissions collapse onto a single task id.
func (m *Manager) Submit(taskType, name, message string, params map[string]any) (string, SubmitOutcome, error) {
	sanitized, err := sanitizeParams(params)
	if err != nil {
		return "", SubmitCreated, fmt.Errorf("request params are not serializable: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.findByKey(taskType, sanitized); ok {
		task, exists := m.cache.Get(id)
		if exists {
			if task.Status == models.TaskStatusPending || task.Status == models.TaskStatusRunning {
				return id, SubmitDebounced, nil
			}

			if err := m.resetLocked(id); err != nil {
				return "", SubmitCreated, err
			}
			return id, SubmitRecycled, nil
		}
	}

	id, err := m.createLocked(taskType, name, message, sanitized)
	if err != nil {
		return "", SubmitCreated, err
	}

	return id, SubmitCreated, nil
}

// Update commits whitelisted field changes for a task, then refreshes the cache
// entry from the committed row and emits the new state. Progress is clamped to
// [0, 100]. Once a task's cancel latch is set, status changes to running or
// completed are discarded; message and error updates still land. Updates for
// unknown ids are short-circuited so a straggling worker cannot resurrect a
// deleted task.
func (m *Manager) Update(id string, fields UpdatableFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.db.GetTask(m.db, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	if fields.Progress != nil {
		fields.Progress = models.Ptr(clampProgress(*fields.Progress))
	}

	if fields.Status != nil && current.Cancelled {
		revivesCancelled := fields.Cancelled == nil || *fields.Cancelled
		if revivesCancelled && (*fields.Status == models.TaskStatusRunning || *fields.Status == models.TaskStatusCompleted) {
			fields.Status = nil
			fields.Result = nil
		}
	}

	// A full progress bar is reserved for completed tasks. A worker that
	// reported 100 and then failed, or a cancelled task, lands just short.
	committedStatus := models.TaskStatus(current.Status)
	if fields.Status != nil {
		committedStatus = *fields.Status
	}
	if committedStatus == models.TaskStatusFailed || committedStatus == models.TaskStatusCancelled {
		committedProgress := current.Progress
		if fields.Progress != nil {
			committedProgress = *fields.Progress
		}
		if committedProgress >= 100 {
			fields.Progress = models.Ptr(99.0)
		}
	}

	storageFields := fields.toStorage()
	if storageFields == (storage.UpdatableTaskFields{}) {
		// Nothing left to commit; treat as a no-op rather than an empty UPDATE.
		return nil
	}

	err = m.db.UpdateTask(m.db, id, storageFields)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	return m.refreshAndEmit(id)
}

func (f UpdatableFields) toStorage() storage.UpdatableTaskFields {
	fields := storage.UpdatableTaskFields{
		Progress:  f.Progress,
		Message:   f.Message,
		Error:     f.Error,
		Cancelled: f.Cancelled,
		CreatedAt: f.CreatedAt,
	}

	if f.Status != nil {
		fields.Status = models.Ptr(string(*f.Status))
	}

	if f.Result != nil {
		task := models.Task{Result: f.Result}
		fields.Result = models.Ptr(task.ToStorage().Result)
	}

	return fields
}

// refreshAndEmit reloads a task from the store into the cache and announces it.
// Callers must hold mu.
func (m *Manager) refreshAndEmit(id string) error {
	stored, err := m.db.GetTask(m.db, id)
	if err != nil {
		return err
	}

	task := models.Task{}
	task.FromStorage(&stored)

	m.cache.Set(id, task)
	m.emitUpdate(task)

	return nil
}

// Cancel sets the cancel latch and the cancelled status in one commit. Safe to
// call on any status; calling it twice is the same as calling it once.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.db.GetTask(m.db, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	fields := storage.UpdatableTaskFields{
		Status:    models.Ptr(string(models.TaskStatusCancelled)),
		Cancelled: models.Ptr(true),
	}
	if current.Progress >= 100 {
		fields.Progress = models.Ptr(99.0)
	}

	err = m.db.UpdateTask(m.db, id, fields)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	return m.refreshAndEmit(id)
}

// CancelAll cancels every task that is still pending or running and has not
// already been asked to stop. The whole sweep is one transaction and observers
// get a single snapshot instead of a burst of updates.
func (m *Manager) CancelAll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := []models.Task{}
	for _, task := range m.cache.Values() {
		if task.Cancelled {
			continue
		}
		if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusRunning {
			continue
		}
		targets = append(targets, task)
	}

	if len(targets) == 0 {
		return 0, nil
	}

	err := storage.InsideTx(m.db.DB, func(tx *sqlx.Tx) error {
		for _, target := range targets {
			fields := storage.UpdatableTaskFields{
				Status:    models.Ptr(string(models.TaskStatusCancelled)),
				Cancelled: models.Ptr(true),
			}
			if target.Progress >= 100 {
				fields.Progress = models.Ptr(99.0)
			}

			err := m.db.UpdateTask(tx, target.ID, fields)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, target := range targets {
		stored, err := m.db.GetTask(m.db, target.ID)
		if err != nil {
			return 0, err
		}
		task := models.Task{}
		task.FromStorage(&stored)
		m.cache.Set(task.ID, task)
	}

	m.emitSnapshot()

	return len(targets), nil
}

// Delete removes a task from the store and cache. Deleting a running task does
// not preempt its worker; subsequent worker updates no-op against the missing id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.db.DeleteTask(m.db, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	m.cache.Delete(id)

	if m.notifier != nil {
		m.notifier.Broadcast(models.NewDeleteMessage(id))
	}

	return nil
}

// DeleteAll removes every task and announces the now empty state.
func (m *Manager) DeleteAll() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	err := storage.InsideTx(m.db.DB, func(tx *sqlx.Tx) error {
		var err error
		removed, err = m.db.DeleteAllTasks(tx)
		return err
	})
	if err != nil {
		return 0, err
	}

	m.cache.Clear()
	m.emitSnapshot()

	return removed, nil
}

// Reset re-initializes a task for reuse: back to pending with a fresh creation
// time, the cancel latch cleared, and any previous outcome wiped.
func (m *Manager) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resetLocked(id)
}

// resetLocked performs Reset's write. Callers must hold mu.
func (m *Manager) resetLocked(id string) error {
	err := m.db.UpdateTask(m.db, id, storage.UpdatableTaskFields{
		Status:    models.Ptr(string(models.TaskStatusPending)),
		Progress:  models.Ptr(0.0),
		Message:   models.Ptr("Resuming..."),
		Error:     models.Ptr(""),
		Result:    models.Ptr(""),
		Cancelled: models.Ptr(false),
		CreatedAt: models.Ptr(time.Now().UnixMilli()),
	})
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	return m.refreshAndEmit(id)
}

// Get returns the cached state of a single task.
func (m *Manager) Get(id string) (models.Task, error) {
	task, exists := m.cache.Get(id)
	if !exists {
		return models.Task{}, ErrTaskNotFound
	}

	return task, nil
}

// List returns all tasks, newest first.
func (m *Manager) List() []models.Task {
	tasks := m.cache.Values()

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		}
		return tasks[i].ID < tasks[j].ID
	})

	return tasks
}

// Snapshot returns the full task list for initial observer sync.
func (m *Manager) Snapshot() []models.Task {
	return m.List()
}

// IsCancelled is the cheap cancellation probe workers poll between chunks of work.
func (m *Manager) IsCancelled(id string) bool {
	task, exists := m.cache.Get(id)
	if !exists {
		// A deleted task should stop its worker too.
		return true
	}

	return task.Cancelled
}

// emitUpdate fans a single task change out to observers. Callers must hold mu.
func (m *Manager) emitUpdate(task models.Task) {
	if m.notifier == nil {
		return
	}

	m.notifier.Broadcast(models.NewUpdateMessage(task))
}

// emitSnapshot fans the whole task list out to observers. Callers must hold mu.
func (m *Manager) emitSnapshot() {
	if m.notifier == nil {
		return
	}

	m.notifier.Broadcast(models.NewSnapshotMessage(m.List()))
}

func clampProgress(progress float64) float64 {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
