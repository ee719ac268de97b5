// Package pipeline executes ordered lists of named steps against a shared
// context, turning the context's accumulated outputs into a normalized task
// result when the run finishes.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Canonical context keys the bundled steps read and write. Steps write, later
// steps read; translate overwrites KeySRTPath so synthesize burns the
// translated subtitles.
const (
	KeyVideoPath          = "video_path"
	KeyMediaFilename      = "media_filename"
	KeyTitle              = "title"
	KeySubtitlePath       = "subtitle_path"
	KeySRTPath            = "srt_path"
	KeyTranscript         = "transcript"
	KeySegments           = "segments"
	KeyTranslatedSRTPath  = "translated_srt_path"
	KeyTranslatedSegments = "translated_segments"
	KeyOutputVideoPath    = "output_video_path"
)

// TraceRecord captures one executed step for the final execution trace.
type TraceRecord struct {
	Step            string  `json:"step"`
	DurationSeconds float64 `json:"duration_seconds"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

// Context is the mutable bag of values a single pipeline run threads through
// its steps. It belongs to exactly one run and is never shared.
type Context struct {
	data map[string]any

	// History holds the names of steps that completed, in execution order.
	History []string

	// Trace records every step attempt, completed or not.
	Trace []TraceRecord
}

func NewContext() *Context {
	return &Context{
		data:    map[string]any{},
		History: []string{},
		Trace:   []TraceRecord{},
	}
}

func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

func (c *Context) Get(key string) (any, bool) {
	value, exists := c.data[key]
	return value, exists
}

// GetString returns the value under key if it is a non-empty string.
func (c *Context) GetString(key string) (string, bool) {
	value, exists := c.data[key]
	if !exists {
		return "", false
	}

	str, ok := value.(string)
	if !ok || str == "" {
		return "", false
	}

	return str, true
}

// Data returns a JSON-safe copy of the context's values. Values that do not
// serialize are coerced to their string form so the final result always
// marshals.
func (c *Context) Data() map[string]any {
	out := make(map[string]any, len(c.data))

	for key, value := range c.data {
		if _, err := json.Marshal(value); err != nil {
			out[key] = fmt.Sprint(value)
			continue
		}
		out[key] = value
	}

	return out
}

func (c *Context) recordStep(step string, started time.Time, status string, errMsg string) {
	c.Trace = append(c.Trace, TraceRecord{
		Step:            step,
		DurationSeconds: time.Since(started).Seconds(),
		Status:          status,
		Error:           errMsg,
		Timestamp:       time.Now().UnixMilli(),
	})
}
