package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/taskmanager"
)

// fakeManager records every update and lets tests flip the cancel latch
// mid-run.
type fakeManager struct {
	updates   []taskmanager.UpdatableFields
	cancelled bool

	// cancelAfterUpdates flips the latch once this many updates have landed.
	cancelAfterUpdates int
}

func (f *fakeManager) Update(id string, fields taskmanager.UpdatableFields) error {
	f.updates = append(f.updates, fields)
	if f.cancelAfterUpdates > 0 && len(f.updates) >= f.cancelAfterUpdates {
		f.cancelled = true
	}
	return nil
}

func (f *fakeManager) IsCancelled(id string) bool {
	return f.cancelled
}

func (f *fakeManager) lastStatus() models.TaskStatus {
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Status != nil {
			return *f.updates[i].Status
		}
	}
	return models.TaskStatusUnknown
}

type fakeStep struct {
	name    string
	execute func(pctx *Context, params map[string]any) error
}

func (f *fakeStep) Name() string { return f.name }

func (f *fakeStep) Execute(_ context.Context, pctx *Context, params map[string]any, _ string) error {
	return f.execute(pctx, params)
}

func registerFake(t *testing.T, name string, execute func(pctx *Context, params map[string]any) error) {
	t.Helper()
	RegisterStep(&fakeStep{name: name, execute: execute})
	t.Cleanup(ClearSteps)
}

func TestEmptyPipelineCompletesImmediately(t *testing.T) {
	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	result, err := runner.Run(context.Background(), "task", nil)
	if err != nil {
		t.Fatal(err)
	}

	if manager.lastStatus() != models.TaskStatusCompleted {
		t.Errorf("expected completed; got %q", manager.lastStatus())
	}

	if !result.Success {
		t.Error("expected successful result")
	}
	if len(result.Files) != 0 {
		t.Errorf("expected no files; got %v", result.Files)
	}

	trace, ok := result.Meta["execution_trace"].([]TraceRecord)
	if !ok || len(trace) != 0 {
		t.Errorf("expected empty execution trace; got %v", result.Meta["execution_trace"])
	}
}

func TestStepsShareContextAndProduceFiles(t *testing.T) {
	registerFake(t, "fetch", func(pctx *Context, params map[string]any) error {
		pctx.Set(KeyVideoPath, "/out/video.mp4")
		pctx.Set(KeyTitle, params["title"])
		return nil
	})
	RegisterStep(&fakeStep{name: "caption", execute: func(pctx *Context, _ map[string]any) error {
		if _, ok := pctx.GetString(KeyVideoPath); !ok {
			return errors.New("missing upstream video path")
		}
		pctx.Set(KeySRTPath, "/out/video.srt")
		return nil
	}})

	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	result, err := runner.Run(context.Background(), "task", []StepRequest{
		{StepName: "fetch", Params: map[string]any{"title": "clip"}},
		{StepName: "caption"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if manager.lastStatus() != models.TaskStatusCompleted {
		t.Errorf("expected completed; got %q", manager.lastStatus())
	}

	wantFiles := []models.FileRef{
		{Type: "video", Path: "/out/video.mp4"},
		{Type: "subtitle", Path: "/out/video.srt"},
	}
	if len(result.Files) != len(wantFiles) {
		t.Fatalf("expected %d files; got %v", len(wantFiles), result.Files)
	}
	for i, want := range wantFiles {
		if result.Files[i] != want {
			t.Errorf("file %d: expected %+v; got %+v", i, want, result.Files[i])
		}
	}

	trace := result.Meta["execution_trace"].([]TraceRecord)
	if len(trace) != 2 || trace[0].Step != "fetch" || trace[1].Step != "caption" {
		t.Errorf("unexpected trace: %+v", trace)
	}
	for _, record := range trace {
		if record.Status != traceStatusCompleted {
			t.Errorf("expected completed trace record; got %+v", record)
		}
	}
}

func TestTranslatedSubtitlesWinOverOriginals(t *testing.T) {
	registerFake(t, "translate", func(pctx *Context, _ map[string]any) error {
		pctx.Set(KeySRTPath, "/out/original.srt")
		pctx.Set(KeyTranslatedSRTPath, "/out/translated.srt")
		return nil
	})

	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	result, err := runner.Run(context.Background(), "task", []StepRequest{{StepName: "translate"}})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Files) != 1 || result.Files[0].Path != "/out/translated.srt" {
		t.Errorf("expected the translated subtitle file; got %v", result.Files)
	}
}

func TestStepFailureFailsPipeline(t *testing.T) {
	registerFake(t, "explode", func(_ *Context, _ map[string]any) error {
		return errors.New("disk full")
	})
	RegisterStep(&fakeStep{name: "after", execute: func(_ *Context, _ map[string]any) error {
		t.Error("step after a failure must not run")
		return nil
	}})

	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	_, err := runner.Run(context.Background(), "task", []StepRequest{
		{StepName: "explode"},
		{StepName: "after"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	if manager.lastStatus() != models.TaskStatusFailed {
		t.Errorf("expected failed; got %q", manager.lastStatus())
	}

	var errorRecorded bool
	for _, update := range manager.updates {
		if update.Error != nil && *update.Error == "disk full" {
			errorRecorded = true
		}
	}
	if !errorRecorded {
		t.Error("expected the step error recorded on the task")
	}
}

func TestUnknownStepFailsPipeline(t *testing.T) {
	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	_, err := runner.Run(context.Background(), "task", []StepRequest{{StepName: "missing"}})
	if !errors.Is(err, ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound; got %v", err)
	}

	if manager.lastStatus() != models.TaskStatusFailed {
		t.Errorf("expected failed; got %q", manager.lastStatus())
	}
}

func TestCancellationBetweenSteps(t *testing.T) {
	executed := []string{}
	registerFake(t, "first", func(_ *Context, _ map[string]any) error {
		executed = append(executed, "first")
		return nil
	})
	RegisterStep(&fakeStep{name: "second", execute: func(_ *Context, _ map[string]any) error {
		executed = append(executed, "second")
		return nil
	}})

	// The latch flips while "first" runs; the runner must notice before "second".
	manager := &fakeManager{cancelAfterUpdates: 2}
	runner := NewRunner(manager, "")

	_, err := runner.Run(context.Background(), "task", []StepRequest{
		{StepName: "first"},
		{StepName: "second"},
	})
	if !errors.Is(err, models.ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled; got %v", err)
	}

	if len(executed) != 1 || executed[0] != "first" {
		t.Errorf("expected only the first step to run; ran %v", executed)
	}

	if manager.lastStatus() != models.TaskStatusCancelled {
		t.Errorf("expected cancelled; got %q", manager.lastStatus())
	}
}

func TestStepReportingCancellationIsNotAFailure(t *testing.T) {
	registerFake(t, "interruptible", func(_ *Context, _ map[string]any) error {
		return fmt.Errorf("stopping mid chunk: %w", models.ErrTaskCancelled)
	})

	manager := &fakeManager{}
	runner := NewRunner(manager, "")

	_, err := runner.Run(context.Background(), "task", []StepRequest{{StepName: "interruptible"}})
	if !errors.Is(err, models.ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled; got %v", err)
	}

	if manager.lastStatus() != models.TaskStatusCancelled {
		t.Errorf("expected cancelled, not failed; got %q", manager.lastStatus())
	}
}
