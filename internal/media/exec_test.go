package media

import (
	"testing"
)

func TestYTDLPArgs(t *testing.T) {
	args := ytdlpArgs(DownloadRequest{URL: "https://x/y", Quality: "720p"}, "/tmp/out")

	if args[len(args)-1] != "https://x/y" {
		t.Errorf("expected url last; got %v", args)
	}

	foundQuality := false
	for i, arg := range args {
		if arg == "-f" && i+1 < len(args) && args[i+1] == "720p" {
			foundQuality = true
		}
	}
	if !foundQuality {
		t.Errorf("expected -f 720p in args; got %v", args)
	}
}

func TestYTDLPArgsOmitsQualityWhenUnset(t *testing.T) {
	args := ytdlpArgs(DownloadRequest{URL: "https://x/y"}, "/tmp/out")

	for _, arg := range args {
		if arg == "-f" {
			t.Errorf("unexpected -f flag without quality; got %v", args)
		}
	}
}

func TestWhisperArgsDefaultsModel(t *testing.T) {
	args := whisperArgs(TranscribeRequest{AudioPath: "/a.mp3"}, "/models", "/out/a")

	if args[1] != "/models/ggml-base.bin" {
		t.Errorf("expected default model path; got %q", args[1])
	}

	args = whisperArgs(TranscribeRequest{AudioPath: "/a.mp3", Model: "tiny", Language: "de"}, "/models", "/out/a")

	if args[1] != "/models/ggml-tiny.bin" {
		t.Errorf("expected tiny model path; got %q", args[1])
	}

	foundLang := false
	for i, arg := range args {
		if arg == "-l" && i+1 < len(args) && args[i+1] == "de" {
			foundLang = true
		}
	}
	if !foundLang {
		t.Errorf("expected -l de in args; got %v", args)
	}
}

func TestDownloadProgressPattern(t *testing.T) {
	match := downloadPercentRe.FindStringSubmatch("[download]  42.7% of 10.00MiB at 1.00MiB/s")
	if match == nil || match[1] != "42.7" {
		t.Errorf("expected to parse percent; got %v", match)
	}

	if downloadPercentRe.MatchString("[info] Writing video description") {
		t.Error("info lines must not match the progress pattern")
	}
}
