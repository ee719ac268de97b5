package taskmanager

import (
	"encoding/json"
	"fmt"

	"github.com/jcallum/medley/internal/models"
)

// sanitizeParams forces request params through a JSON round-trip so that the
// stored form is canonical: map keys sort, numbers become float64, and anything
// that cannot be serialized is rejected up front instead of at resume time.
func sanitizeParams(params map[string]any) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	sanitized := map[string]any{}
	err = json.Unmarshal(raw, &sanitized)
	if err != nil {
		return nil, err
	}

	return sanitized, nil
}

// DedupeKey derives the canonical identity of a submission. Two submissions
// with the same type and key are considered the same piece of work.
//
// Download-led pipelines and plain downloads key on the URL alone so that
// resubmitting the same link with cosmetic param differences still
// deduplicates. Everything else keys on the full canonical param encoding.
func DedupeKey(taskType string, params map[string]any) string {
	if url, ok := firstDownloadURL(params); ok {
		return fmt.Sprintf("%s:%s", taskType, url)
	}

	if url, ok := params["url"].(string); ok && url != "" {
		return fmt.Sprintf("%s:%s", taskType, url)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		// Params that made it past sanitizeParams always marshal; a key of the
		// raw error string keeps the probe total anyway.
		return fmt.Sprintf("%s:!%v", taskType, err)
	}

	return fmt.Sprintf("%s:%s", taskType, raw)
}

// firstDownloadURL digs the URL out of a pipeline submission whose first step
// is a download.
func firstDownloadURL(params map[string]any) (string, bool) {
	steps, ok := params["steps"].([]any)
	if !ok || len(steps) == 0 {
		return "", false
	}

	first, ok := steps[0].(map[string]any)
	if !ok {
		return "", false
	}

	if name, _ := first["step_name"].(string); name != "download" {
		return "", false
	}

	stepParams, ok := first["params"].(map[string]any)
	if !ok {
		return "", false
	}

	url, ok := stepParams["url"].(string)
	if !ok || url == "" {
		return "", false
	}

	return url, true
}

// FindTaskByParams is the deduplication probe. It returns the id of an
// existing task with the same type and canonical key, preferring one that is
// still active (pending or running) so callers can debounce; a terminal match
// is returned so callers may reset and recycle it.
func (m *Manager) FindTaskByParams(taskType string, params map[string]any) (string, bool) {
	sanitized, err := sanitizeParams(params)
	if err != nil {
		return "", false
	}

	return m.findByKey(taskType, sanitized)
}

// findByKey is the probe behind FindTaskByParams and Submit; params must
// already be sanitized.
func (m *Manager) findByKey(taskType string, sanitized map[string]any) (string, bool) {
	key := DedupeKey(taskType, sanitized)

	match := ""
	var matchCreated int64

	for _, task := range m.cache.Values() {
		if task.Type != taskType {
			continue
		}

		if DedupeKey(task.Type, task.RequestParams) != key {
			continue
		}

		if task.Status == models.TaskStatusPending || task.Status == models.TaskStatusRunning {
			return task.ID, true
		}

		if match == "" || task.CreatedAt > matchCreated {
			match = task.ID
			matchCreated = task.CreatedAt
		}
	}

	if match == "" {
		return "", false
	}

	return match, true
}
