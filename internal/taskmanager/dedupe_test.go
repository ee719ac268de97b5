package taskmanager

import (
	"testing"

	"github.com/jcallum/medley/internal/models"
)

func TestDedupeKeyDownloadLedPipeline(t *testing.T) {
	params := map[string]any{
		"steps": []any{
			map[string]any{
				"step_name": "download",
				"params":    map[string]any{"url": "https://x/y", "quality": "720p"},
			},
			map[string]any{"step_name": "transcribe", "params": map[string]any{}},
		},
	}

	other := map[string]any{
		"steps": []any{
			map[string]any{
				"step_name": "download",
				"params":    map[string]any{"url": "https://x/y", "quality": "1080p"},
			},
		},
	}

	if DedupeKey("pipeline", params) != DedupeKey("pipeline", other) {
		t.Error("pipelines sharing a leading download url should share a key")
	}

	different := map[string]any{
		"steps": []any{
			map[string]any{
				"step_name": "download",
				"params":    map[string]any{"url": "https://x/z"},
			},
		},
	}

	if DedupeKey("pipeline", params) == DedupeKey("pipeline", different) {
		t.Error("different urls must not collide")
	}
}

func TestDedupeKeyPlainURL(t *testing.T) {
	a := map[string]any{"url": "https://x/y", "quality": "best"}
	b := map[string]any{"url": "https://x/y"}

	if DedupeKey("download", a) != DedupeKey("download", b) {
		t.Error("plain url submissions should key on the url alone")
	}
}

func TestDedupeKeyCanonicalJSON(t *testing.T) {
	a := map[string]any{"b": 2.0, "a": 1.0}
	b := map[string]any{"a": 1.0, "b": 2.0}

	if DedupeKey("transcribe", a) != DedupeKey("transcribe", b) {
		t.Error("key derivation must be insensitive to map ordering")
	}
}

func TestFindTaskByParamsDebounceAndRecycle(t *testing.T) {
	manager, _, _ := newTestManager(t)

	params := map[string]any{
		"steps": []any{
			map[string]any{
				"step_name": "download",
				"params":    map[string]any{"url": "https://x/y"},
			},
		},
	}

	id, err := manager.Create(models.TaskTypePipeline, "", "", params)
	if err != nil {
		t.Fatal(err)
	}

	// While the first submission is still pending the probe debounces to it.
	found, ok := manager.FindTaskByParams(models.TaskTypePipeline, params)
	if !ok || found != id {
		t.Errorf("expected probe to return active task %q; got %q ok=%v", id, found, ok)
	}

	// After the task finishes the probe still returns it, now as a recycle candidate.
	err = manager.Update(id, UpdatableFields{Status: models.Ptr(models.TaskStatusCompleted)})
	if err != nil {
		t.Fatal(err)
	}

	found, ok = manager.FindTaskByParams(models.TaskTypePipeline, params)
	if !ok || found != id {
		t.Errorf("expected probe to return terminal task %q for recycling; got %q ok=%v", id, found, ok)
	}

	// An unrelated submission does not match.
	_, ok = manager.FindTaskByParams(models.TaskTypePipeline, map[string]any{
		"steps": []any{
			map[string]any{"step_name": "download", "params": map[string]any{"url": "https://other"}},
		},
	})
	if ok {
		t.Error("unrelated params must not match")
	}
}
