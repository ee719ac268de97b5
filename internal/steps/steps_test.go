package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/pipeline"
	"github.com/jcallum/medley/internal/taskmanager"
)

type fakeUpdater struct {
	updates []taskmanager.UpdatableFields
}

func (f *fakeUpdater) Update(id string, fields taskmanager.UpdatableFields) error {
	f.updates = append(f.updates, fields)
	return nil
}

type fakeDownloader struct {
	gotReq media.DownloadRequest
	result *media.DownloadResult
	err    error
}

func (f *fakeDownloader) Download(ctx context.Context, req media.DownloadRequest, progress media.ProgressFunc) (*media.DownloadResult, error) {
	f.gotReq = req
	progress(50, "halfway")
	return f.result, f.err
}

type fakeTranscriber struct {
	gotReq media.TranscribeRequest
	result *media.TranscribeResult
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req media.TranscribeRequest, progress media.ProgressFunc) (*media.TranscribeResult, error) {
	f.gotReq = req
	return f.result, nil
}

type fakeTranslator struct {
	gotReq media.TranslateRequest
	result *media.TranslateResult
}

func (f *fakeTranslator) Translate(ctx context.Context, req media.TranslateRequest, progress media.ProgressFunc) (*media.TranslateResult, error) {
	f.gotReq = req
	return f.result, nil
}

type fakeSynthesizer struct {
	gotReq media.SynthesizeRequest
	result *media.SynthesizeResult
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req media.SynthesizeRequest, progress media.ProgressFunc) (*media.SynthesizeResult, error) {
	f.gotReq = req
	return f.result, nil
}

func TestDownloadStepSeedsContext(t *testing.T) {
	downloader := &fakeDownloader{
		result: &media.DownloadResult{VideoPath: "/media/clip.mp4", Filename: "clip.mp4", Title: "clip"},
	}
	updater := &fakeUpdater{}
	step := &DownloadStep{Downloader: downloader, Updater: updater}

	pctx := pipeline.NewContext()
	err := step.Execute(context.Background(), pctx, map[string]any{"url": "https://x/y", "quality": "720p"}, "task")
	if err != nil {
		t.Fatal(err)
	}

	if downloader.gotReq.URL != "https://x/y" || downloader.gotReq.Quality != "720p" {
		t.Errorf("unexpected request: %+v", downloader.gotReq)
	}

	if path, _ := pctx.GetString(pipeline.KeyVideoPath); path != "/media/clip.mp4" {
		t.Errorf("expected video path in context; got %q", path)
	}
	if title, _ := pctx.GetString(pipeline.KeyTitle); title != "clip" {
		t.Errorf("expected title in context; got %q", title)
	}

	if len(updater.updates) != 1 || *updater.updates[0].Progress != 50 {
		t.Errorf("expected progress forwarded to the task manager; got %+v", updater.updates)
	}
}

func TestDownloadStepRequiresURL(t *testing.T) {
	step := &DownloadStep{Downloader: &fakeDownloader{}}

	err := step.Execute(context.Background(), pipeline.NewContext(), map[string]any{}, "task")
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestTranscribeStepUsesDownloadedMedia(t *testing.T) {
	transcriber := &fakeTranscriber{
		result: &media.TranscribeResult{Text: "hello", SRTPath: "/out/clip.srt"},
	}
	step := &TranscribeStep{Transcriber: transcriber}

	pctx := pipeline.NewContext()
	pctx.Set(pipeline.KeyVideoPath, "/media/clip.mp4")

	if err := step.Execute(context.Background(), pctx, nil, "task"); err != nil {
		t.Fatal(err)
	}

	if transcriber.gotReq.AudioPath != "/media/clip.mp4" {
		t.Errorf("expected audio path from context; got %q", transcriber.gotReq.AudioPath)
	}

	if path, _ := pctx.GetString(pipeline.KeySRTPath); path != "/out/clip.srt" {
		t.Errorf("expected srt path in context; got %q", path)
	}
	if path, _ := pctx.GetString(pipeline.KeySubtitlePath); path != "/out/clip.srt" {
		t.Errorf("expected subtitle path in context; got %q", path)
	}
}

func TestTranscribeStepExplicitPathWins(t *testing.T) {
	transcriber := &fakeTranscriber{result: &media.TranscribeResult{SRTPath: "/out/a.srt"}}
	step := &TranscribeStep{Transcriber: transcriber}

	pctx := pipeline.NewContext()
	pctx.Set(pipeline.KeyVideoPath, "/media/clip.mp4")

	err := step.Execute(context.Background(), pctx, map[string]any{"audio_path": "/media/other.mp3"}, "task")
	if err != nil {
		t.Fatal(err)
	}

	if transcriber.gotReq.AudioPath != "/media/other.mp3" {
		t.Errorf("explicit audio_path should win; got %q", transcriber.gotReq.AudioPath)
	}
}

func TestTranslateStepOverwritesSubtitleKeys(t *testing.T) {
	translator := &fakeTranslator{result: &media.TranslateResult{SRTPath: "/out/clip.es.srt"}}
	step := &TranslateStep{Translator: translator}

	pctx := pipeline.NewContext()
	pctx.Set(pipeline.KeySRTPath, "/out/clip.srt")
	pctx.Set(pipeline.KeySubtitlePath, "/out/clip.srt")

	err := step.Execute(context.Background(), pctx, map[string]any{"target_lang": "es"}, "task")
	if err != nil {
		t.Fatal(err)
	}

	if translator.gotReq.SRTPath != "/out/clip.srt" || translator.gotReq.TargetLang != "es" {
		t.Errorf("unexpected request: %+v", translator.gotReq)
	}

	for _, key := range []string{pipeline.KeySRTPath, pipeline.KeySubtitlePath, pipeline.KeyTranslatedSRTPath} {
		if path, _ := pctx.GetString(key); path != "/out/clip.es.srt" {
			t.Errorf("expected %s overwritten with translated path; got %q", key, path)
		}
	}
}

func TestTranslateStepRequiresTargetLang(t *testing.T) {
	step := &TranslateStep{Translator: &fakeTranslator{}}

	pctx := pipeline.NewContext()
	pctx.Set(pipeline.KeySRTPath, "/out/clip.srt")

	if err := step.Execute(context.Background(), pctx, nil, "task"); err == nil {
		t.Fatal("expected error for missing target_lang")
	}
}

func TestSynthesizeStepBurnsContextSubtitles(t *testing.T) {
	synthesizer := &fakeSynthesizer{result: &media.SynthesizeResult{OutputVideoPath: "/out/final.mp4"}}
	step := &SynthesizeStep{Synthesizer: synthesizer}

	pctx := pipeline.NewContext()
	pctx.Set(pipeline.KeyVideoPath, "/media/clip.mp4")
	pctx.Set(pipeline.KeySubtitlePath, "/out/clip.es.srt")

	if err := step.Execute(context.Background(), pctx, nil, "task"); err != nil {
		t.Fatal(err)
	}

	if synthesizer.gotReq.VideoPath != "/media/clip.mp4" || synthesizer.gotReq.SubtitlePath != "/out/clip.es.srt" {
		t.Errorf("unexpected request: %+v", synthesizer.gotReq)
	}

	if path, _ := pctx.GetString(pipeline.KeyOutputVideoPath); path != "/out/final.mp4" {
		t.Errorf("expected output video path in context; got %q", path)
	}
}

func TestDownloadStepErrorPropagates(t *testing.T) {
	downloader := &fakeDownloader{err: errors.New("network unreachable")}
	step := &DownloadStep{Downloader: downloader}

	err := step.Execute(context.Background(), pipeline.NewContext(), map[string]any{"url": "https://x/y"}, "task")
	if err == nil || !errors.Is(err, downloader.err) {
		t.Fatalf("expected wrapped downloader error; got %v", err)
	}
}

func TestRegisterAllBindsCanonicalNames(t *testing.T) {
	t.Cleanup(pipeline.ClearSteps)
	pipeline.ClearSteps()

	RegisterAll(&fakeUpdater{}, &fakeDownloader{}, &fakeTranscriber{}, &fakeTranslator{}, &fakeSynthesizer{})

	for _, name := range []string{"download", "transcribe", "translate", "synthesize"} {
		if _, err := pipeline.GetStep(name); err != nil {
			t.Errorf("expected %q registered: %v", name, err)
		}
	}
}
