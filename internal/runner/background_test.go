package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/taskmanager"
)

type fakeManager struct {
	mu        sync.Mutex
	updates   []taskmanager.UpdatableFields
	cancelled bool
}

func (f *fakeManager) Update(id string, fields taskmanager.UpdatableFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeManager) IsCancelled(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeManager) setCancelled() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

func (f *fakeManager) lastStatus() models.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Status != nil {
			return *f.updates[i].Status
		}
	}
	return models.TaskStatusUnknown
}

func (f *fakeManager) lastResult() *models.TaskResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Result != nil {
			return f.updates[i].Result
		}
	}
	return nil
}

func newBackground(manager *fakeManager) *Background {
	background := NewBackground(manager, NewPool(2), "")
	background.pollInterval = 5 * time.Millisecond
	return background
}

func TestWorkerLifecycle(t *testing.T) {
	manager := &fakeManager{}
	background := newBackground(manager)

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		progress(50, "halfway")
		return map[string]any{"text": "hello"}, nil
	}

	err := background.Run("task", worker, Options{
		StartMessage:   "Starting transcription...",
		SuccessMessage: "Transcription complete",
	})
	if err != nil {
		t.Fatal(err)
	}

	background.pool.Wait()

	if manager.lastStatus() != models.TaskStatusCompleted {
		t.Errorf("expected completed; got %q", manager.lastStatus())
	}

	result := manager.lastResult()
	if result == nil || !result.Success || result.Meta["text"] != "hello" {
		t.Errorf("unexpected result: %+v", result)
	}

	// running + progress + completed, in that order.
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if len(manager.updates) != 3 {
		t.Fatalf("expected 3 updates; got %d", len(manager.updates))
	}
	if *manager.updates[0].Status != models.TaskStatusRunning ||
		*manager.updates[0].Message != "Starting transcription..." {
		t.Errorf("first update should mark running; got %+v", manager.updates[0])
	}
	if *manager.updates[1].Progress != 50 || *manager.updates[1].Message != "halfway" {
		t.Errorf("second update should carry progress; got %+v", manager.updates[1])
	}
	if *manager.updates[2].Progress != 100 {
		t.Errorf("final update should carry progress 100; got %+v", manager.updates[2])
	}
}

func TestWorkerFailureMarksTaskFailed(t *testing.T) {
	manager := &fakeManager{}
	background := newBackground(manager)

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		return nil, errors.New("codec not supported")
	}

	if err := background.Run("task", worker, Options{}); err != nil {
		t.Fatal(err)
	}

	background.pool.Wait()

	if manager.lastStatus() != models.TaskStatusFailed {
		t.Errorf("expected failed; got %q", manager.lastStatus())
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	final := manager.updates[len(manager.updates)-1]
	if final.Error == nil || *final.Error != "codec not supported" {
		t.Errorf("expected error recorded; got %+v", final)
	}
	if final.Message == nil || *final.Message != "codec not supported" {
		t.Errorf("expected message mirroring the error; got %+v", final)
	}
}

func TestCancelLatchStopsBlockedWorker(t *testing.T) {
	manager := &fakeManager{}
	background := newBackground(manager)

	started := make(chan struct{})
	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if err := background.Run("task", worker, Options{}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker never started")
	}

	manager.setCancelled()
	background.pool.Wait()

	if manager.lastStatus() != models.TaskStatusCancelled {
		t.Errorf("expected cancelled; got %q", manager.lastStatus())
	}
}

func TestResultTransformer(t *testing.T) {
	manager := &fakeManager{}
	background := newBackground(manager)

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		return "/out/a.srt", nil
	}

	transform := func(raw any) *models.TaskResult {
		return &models.TaskResult{
			Success: true,
			Files:   []models.FileRef{{Type: "subtitle", Path: raw.(string)}},
		}
	}

	if err := background.Run("task", worker, Options{Transform: transform}); err != nil {
		t.Fatal(err)
	}

	background.pool.Wait()

	result := manager.lastResult()
	if result == nil || len(result.Files) != 1 || result.Files[0].Path != "/out/a.srt" {
		t.Errorf("expected transformed result; got %+v", result)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)

	var mu sync.Mutex
	running, peak := 0, 0

	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}

	pool.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 workers at once; saw %d", peak)
	}
}
