// Package media declares the interfaces medley's orchestration core uses to
// talk to the concrete media workers: downloaders, speech recognition,
// translation, and video synthesis. Workers are blocking; they report progress
// through a callback and honor cancellation through their context.
package media

import "context"

// ProgressFunc is the standard progress callback every worker accepts. Percent
// is in [0, 100]; message is a short human readable status line. Workers may
// call it from any goroutine.
type ProgressFunc func(percent float64, message string)

// DownloadRequest asks for a remote media file.
type DownloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	OutDir  string `json:"out_dir,omitempty"`
}

// DownloadResult describes the fetched media.
type DownloadResult struct {
	VideoPath string `json:"video_path"`
	Filename  string `json:"media_filename"`
	Title     string `json:"title"`
}

// Downloader fetches remote media, typically by driving an external binary.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (*DownloadResult, error)
}

// Segment is one timed span of recognized or translated speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscribeRequest asks for speech recognition over a local media file.
type TranscribeRequest struct {
	AudioPath string `json:"audio_path"`
	Model     string `json:"model,omitempty"`
	Language  string `json:"language,omitempty"`
}

// TranscribeResult is the recognized text plus its subtitle rendering.
type TranscribeResult struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	SRTPath  string    `json:"srt_path"`
}

// Transcriber performs speech recognition.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest, progress ProgressFunc) (*TranscribeResult, error)
}

// TranslateRequest asks for a subtitle file translated into a target language.
type TranslateRequest struct {
	SRTPath    string `json:"srt_path"`
	TargetLang string `json:"target_lang"`
}

// TranslateResult points at the translated subtitle file.
type TranslateResult struct {
	SRTPath  string    `json:"translated_srt_path"`
	Segments []Segment `json:"translated_segments,omitempty"`
}

// Translator translates subtitle files.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest, progress ProgressFunc) (*TranslateResult, error)
}

// SynthesizeRequest asks for subtitles burned into a video.
type SynthesizeRequest struct {
	VideoPath    string `json:"video_path"`
	SubtitlePath string `json:"subtitle_path"`
	OutPath      string `json:"out_path,omitempty"`
}

// SynthesizeResult points at the rendered video.
type SynthesizeResult struct {
	OutputVideoPath string `json:"output_video_path"`
}

// Synthesizer renders a new video with subtitles burned in.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest, progress ProgressFunc) (*SynthesizeResult, error)
}
