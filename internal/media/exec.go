package media

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// The default collaborators shell out to the usual media tooling. They are
// deliberately thin: argument construction, coarse progress parsing, and
// context-based cancellation via exec.CommandContext. Deployments with other
// engines swap these out through the service container.

// YTDLPDownloader drives the yt-dlp binary.
type YTDLPDownloader struct {
	Binary string // path to yt-dlp
	OutDir string // default download directory
}

var downloadPercentRe = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)

func ytdlpArgs(req DownloadRequest, outDir string) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--print", "after_move:filepath",
		"--no-simulate",
		"-o", filepath.Join(outDir, "%(title)s.%(ext)s"),
	}

	if req.Quality != "" {
		args = append(args, "-f", req.Quality)
	}

	return append(args, req.URL)
}

func (d *YTDLPDownloader) Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (*DownloadResult, error) {
	outDir := req.OutDir
	if outDir == "" {
		outDir = d.OutDir
	}

	cmd := exec.CommandContext(ctx, d.Binary, ytdlpArgs(req, outDir)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start %s: %w", d.Binary, err)
	}

	// yt-dlp prints the final file path as its last plain line; everything else
	// is progress noise.
	lastLine := ""
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()

		if match := downloadPercentRe.FindStringSubmatch(line); match != nil {
			if percent, err := strconv.ParseFloat(match[1], 64); err == nil {
				progress(percent, "Downloading media")
			}
			continue
		}

		if strings.TrimSpace(line) != "" {
			lastLine = line
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w", d.Binary, err)
	}

	path := strings.TrimSpace(lastLine)
	if path == "" {
		return nil, fmt.Errorf("%s did not report a downloaded file", d.Binary)
	}

	filename := filepath.Base(path)

	return &DownloadResult{
		VideoPath: path,
		Filename:  filename,
		Title:     strings.TrimSuffix(filename, filepath.Ext(filename)),
	}, nil
}

// WhisperTranscriber drives a whisper.cpp style CLI.
type WhisperTranscriber struct {
	Binary    string // path to whisper-cli
	ModelDir  string // directory holding ggml model files
	OutputDir string // where subtitle files land
}

func whisperArgs(req TranscribeRequest, modelDir, outBase string) []string {
	model := req.Model
	if model == "" {
		model = "base"
	}

	args := []string{
		"-m", filepath.Join(modelDir, fmt.Sprintf("ggml-%s.bin", model)),
		"-f", req.AudioPath,
		"--output-srt",
		"--output-file", outBase,
		"--print-progress",
	}

	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}

	return args
}

var whisperProgressRe = regexp.MustCompile(`progress\s*=\s*([0-9.]+)%`)

func (t *WhisperTranscriber) Transcribe(ctx context.Context, req TranscribeRequest, progress ProgressFunc) (*TranscribeResult, error) {
	base := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	outBase := filepath.Join(t.OutputDir, base)

	cmd := exec.CommandContext(ctx, t.Binary, whisperArgs(req, t.ModelDir, outBase)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start %s: %w", t.Binary, err)
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if match := whisperProgressRe.FindStringSubmatch(scanner.Text()); match != nil {
			if percent, err := strconv.ParseFloat(match[1], 64); err == nil {
				progress(percent, "Transcribing audio")
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w", t.Binary, err)
	}

	return &TranscribeResult{
		Language: req.Language,
		SRTPath:  outBase + ".srt",
	}, nil
}

// CommandTranslator shells out to a configured translation command. The command
// receives the subtitle path and target language as arguments and prints the
// translated file's path on stdout.
type CommandTranslator struct {
	Command []string
}

func (c *CommandTranslator) Translate(ctx context.Context, req TranslateRequest, progress ProgressFunc) (*TranslateResult, error) {
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("no translator command configured")
	}

	progress(0, fmt.Sprintf("Translating subtitles to %s", req.TargetLang))

	args := append(append([]string{}, c.Command[1:]...), req.SRTPath, req.TargetLang)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("translator command failed: %w", err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return nil, fmt.Errorf("translator command did not report an output file")
	}

	progress(100, "Translation complete")

	return &TranslateResult{SRTPath: path}, nil
}

// FFmpegSynthesizer burns subtitles into a video with ffmpeg.
type FFmpegSynthesizer struct {
	Binary string // path to ffmpeg
	OutDir string
}

func ffmpegArgs(req SynthesizeRequest, outPath string) []string {
	return []string{
		"-y",
		"-i", req.VideoPath,
		"-vf", fmt.Sprintf("subtitles=%s", req.SubtitlePath),
		"-c:a", "copy",
		outPath,
	}
}

func (s *FFmpegSynthesizer) Synthesize(ctx context.Context, req SynthesizeRequest, progress ProgressFunc) (*SynthesizeResult, error) {
	outPath := req.OutPath
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(req.VideoPath), filepath.Ext(req.VideoPath))
		outPath = filepath.Join(s.OutDir, fmt.Sprintf("%s.subtitled.mp4", base))
	}

	progress(0, "Burning subtitles into video")

	cmd := exec.CommandContext(ctx, s.Binary, ffmpegArgs(req, outPath)...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Debug().Str("output", string(out)).Msg("ffmpeg synthesis failed")
		return nil, fmt.Errorf("%s failed: %w", s.Binary, err)
	}

	progress(100, "Video synthesis complete")

	return &SynthesizeResult{OutputVideoPath: outPath}, nil
}
