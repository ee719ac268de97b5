package config

import (
	"testing"
	"time"

	"github.com/fatih/structs"
)

// Simply test for panics, the reflect code here will panic if the API struct has any
// pointers with zero values.
func TestDefaultConfigHasNoNilBlocks(t *testing.T) {
	api := DefaultAPIConfig()
	for _, field := range structs.Fields(api) {
		if field.Kind().String() == "ptr" && field.IsZero() {
			t.Errorf("default config block %q is nil", field.Name())
		}
	}
}

func TestFromBytesOverlaysDefaults(t *testing.T) {
	config := DefaultAPIConfig()

	content := []byte(`
host = "0.0.0.0:9090"
worker_count = 4

server {
  dev_mode = false
  shutdown_timeout = "30s"
}

database {
  path = "/var/lib/medley/medley.db"
}

media {
  ytdlp_path = "/usr/local/bin/yt-dlp"
}
`)

	if err := config.FromBytes(content); err != nil {
		t.Fatal(err)
	}

	if config.Host != "0.0.0.0:9090" {
		t.Errorf("expected host overridden; got %q", config.Host)
	}
	if config.WorkerCount != 4 {
		t.Errorf("expected worker count overridden; got %d", config.WorkerCount)
	}
	if config.Server.DevMode {
		t.Error("expected dev mode off")
	}
	if config.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected shutdown timeout parsed from hcl; got %v", config.Server.ShutdownTimeout)
	}
	if config.Database.Path != "/var/lib/medley/medley.db" {
		t.Errorf("expected database path overridden; got %q", config.Database.Path)
	}
	if config.Media.YTDLPPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("expected ytdlp path overridden; got %q", config.Media.YTDLPPath)
	}
}

func TestFromEnvOverlaysConfig(t *testing.T) {
	t.Setenv("MEDLEY_HOST", "localhost:7777")
	t.Setenv("MEDLEY_TASK_LOGS_DIR", "/var/log/medley")

	config := DefaultAPIConfig()
	if err := config.FromEnv(); err != nil {
		t.Fatal(err)
	}

	if config.Host != "localhost:7777" {
		t.Errorf("expected host from env; got %q", config.Host)
	}
	if config.TaskLogsDir != "/var/log/medley" {
		t.Errorf("expected task logs dir from env; got %q", config.TaskLogsDir)
	}
}

func TestValidateRejectsBadWorkerCount(t *testing.T) {
	config := DefaultAPIConfig()
	config.WorkerCount = 0

	if err := config.validate(); err == nil {
		t.Error("expected validation error for zero workers")
	}
}
