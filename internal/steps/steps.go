// Package steps bundles the built-in pipeline steps: download, transcribe,
// translate, and synthesize. Each step adapts one media worker to the pipeline
// contract, reading its inputs from params or from earlier steps' context keys
// and writing its outputs back under the canonical keys.
package steps

import (
	"context"
	"fmt"

	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/pipeline"
	"github.com/jcallum/medley/internal/taskmanager"
)

// TaskUpdater is the slice of the task manager steps need to surface progress.
type TaskUpdater interface {
	Update(id string, fields taskmanager.UpdatableFields) error
}

// RegisterAll builds the bundled steps around the given workers and adds them
// to the pipeline's step registry.
func RegisterAll(updater TaskUpdater, downloader media.Downloader, transcriber media.Transcriber,
	translator media.Translator, synthesizer media.Synthesizer) {
	pipeline.RegisterStep(&DownloadStep{Downloader: downloader, Updater: updater})
	pipeline.RegisterStep(&TranscribeStep{Transcriber: transcriber, Updater: updater})
	pipeline.RegisterStep(&TranslateStep{Translator: translator, Updater: updater})
	pipeline.RegisterStep(&SynthesizeStep{Synthesizer: synthesizer, Updater: updater})
}

// progressFor bridges a worker's progress callback into task updates. Steps
// run inside a pipeline whose runner owns the overall status, so only progress
// and message move here.
func progressFor(updater TaskUpdater, taskID string) media.ProgressFunc {
	if updater == nil || taskID == "" {
		return func(float64, string) {}
	}

	return func(percent float64, message string) {
		_ = updater.Update(taskID, taskmanager.UpdatableFields{
			Progress: models.Ptr(percent),
			Message:  models.Ptr(message),
		})
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	if params == nil {
		return "", false
	}

	value, ok := params[key].(string)
	if !ok || value == "" {
		return "", false
	}

	return value, true
}

// DownloadStep fetches remote media and seeds the context with its location.
type DownloadStep struct {
	Downloader media.Downloader
	Updater    TaskUpdater
}

func (s *DownloadStep) Name() string { return "download" }

func (s *DownloadStep) Execute(ctx context.Context, pctx *pipeline.Context, params map[string]any, taskID string) error {
	url, ok := stringParam(params, "url")
	if !ok {
		return fmt.Errorf("download step requires a url parameter")
	}

	req := media.DownloadRequest{URL: url}
	req.Quality, _ = stringParam(params, "quality")
	req.OutDir, _ = stringParam(params, "out_dir")

	result, err := s.Downloader.Download(ctx, req, progressFor(s.Updater, taskID))
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	pctx.Set(pipeline.KeyVideoPath, result.VideoPath)
	pctx.Set(pipeline.KeyMediaFilename, result.Filename)
	pctx.Set(pipeline.KeyTitle, result.Title)

	return nil
}

// TranscribeStep recognizes speech from the run's media file.
type TranscribeStep struct {
	Transcriber media.Transcriber
	Updater     TaskUpdater
}

func (s *TranscribeStep) Name() string { return "transcribe" }

func (s *TranscribeStep) Execute(ctx context.Context, pctx *pipeline.Context, params map[string]any, taskID string) error {
	audioPath, ok := stringParam(params, "audio_path")
	if !ok {
		audioPath, ok = pctx.GetString(pipeline.KeyVideoPath)
	}
	if !ok {
		return fmt.Errorf("transcribe step requires an audio_path parameter or a prior download")
	}

	req := media.TranscribeRequest{AudioPath: audioPath}
	req.Model, _ = stringParam(params, "model")
	req.Language, _ = stringParam(params, "language")

	result, err := s.Transcriber.Transcribe(ctx, req, progressFor(s.Updater, taskID))
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	pctx.Set(pipeline.KeyTranscript, result.Text)
	pctx.Set(pipeline.KeySegments, result.Segments)
	pctx.Set(pipeline.KeySRTPath, result.SRTPath)
	pctx.Set(pipeline.KeySubtitlePath, result.SRTPath)

	return nil
}

// TranslateStep translates the run's subtitles. It overwrites the primary
// subtitle keys so a later synthesize step burns the translated text.
type TranslateStep struct {
	Translator media.Translator
	Updater    TaskUpdater
}

func (s *TranslateStep) Name() string { return "translate" }

func (s *TranslateStep) Execute(ctx context.Context, pctx *pipeline.Context, params map[string]any, taskID string) error {
	srtPath, ok := stringParam(params, "srt_path")
	if !ok {
		srtPath, ok = pctx.GetString(pipeline.KeySRTPath)
	}
	if !ok {
		return fmt.Errorf("translate step requires an srt_path parameter or a prior transcription")
	}

	targetLang, ok := stringParam(params, "target_lang")
	if !ok {
		return fmt.Errorf("translate step requires a target_lang parameter")
	}

	result, err := s.Translator.Translate(ctx, media.TranslateRequest{
		SRTPath:    srtPath,
		TargetLang: targetLang,
	}, progressFor(s.Updater, taskID))
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	pctx.Set(pipeline.KeyTranslatedSRTPath, result.SRTPath)
	pctx.Set(pipeline.KeyTranslatedSegments, result.Segments)
	pctx.Set(pipeline.KeySRTPath, result.SRTPath)
	pctx.Set(pipeline.KeySubtitlePath, result.SRTPath)

	return nil
}

// SynthesizeStep burns the run's subtitles into its video.
type SynthesizeStep struct {
	Synthesizer media.Synthesizer
	Updater     TaskUpdater
}

func (s *SynthesizeStep) Name() string { return "synthesize" }

func (s *SynthesizeStep) Execute(ctx context.Context, pctx *pipeline.Context, params map[string]any, taskID string) error {
	videoPath, ok := stringParam(params, "video_path")
	if !ok {
		videoPath, ok = pctx.GetString(pipeline.KeyVideoPath)
	}
	if !ok {
		return fmt.Errorf("synthesize step requires a video_path parameter or a prior download")
	}

	subtitlePath, ok := stringParam(params, "subtitle_path")
	if !ok {
		subtitlePath, ok = pctx.GetString(pipeline.KeySubtitlePath)
	}
	if !ok {
		return fmt.Errorf("synthesize step requires a subtitle_path parameter or prior subtitles")
	}

	req := media.SynthesizeRequest{VideoPath: videoPath, SubtitlePath: subtitlePath}
	req.OutPath, _ = stringParam(params, "out_path")

	result, err := s.Synthesizer.Synthesize(ctx, req, progressFor(s.Updater, taskID))
	if err != nil {
		return fmt.Errorf("video synthesis failed: %w", err)
	}

	pctx.Set(pipeline.KeyOutputVideoPath, result.OutputVideoPath)

	return nil
}
