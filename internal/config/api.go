package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/kelseyhightower/envconfig"
)

// API defines config settings for the medley server
type API struct {
	// URL for the server to bind to. Ex: localhost:8080
	Host string `hcl:"host,optional"`

	// Log level affects the entire application's logs.
	LogLevel string `split_words:"true" hcl:"log_level,optional"`

	// WorkerCount bounds how many background media workers run at once.
	// Pipelines and single-step submissions share this pool.
	WorkerCount int `split_words:"true" hcl:"worker_count,optional"`

	// Directory to store per-task log files.
	TaskLogsDir string `split_words:"true" hcl:"task_logs_dir,optional"`

	Database *Database `hcl:"database,block"`
	Server   *Server   `hcl:"server,block"`
	Media    *Media    `hcl:"media,block"`
}

func DefaultAPIConfig() *API {
	return &API{
		Host:        "localhost:8080",
		LogLevel:    "debug",
		WorkerCount: 2,
		TaskLogsDir: "/tmp/medley/logs",
		Database:    DefaultDatabaseConfig(),
		Server:      DefaultServerConfig(),
		Media:       DefaultMediaConfig(),
	}
}

// Database defines config settings for the medley sqlite database.
type Database struct {
	// File path for the database file.
	Path string `hcl:"path,optional"`

	// MaxResultsLimit defines the total number of results the database can return in one call to any "GETALL" endpoint.
	MaxResultsLimit int `split_words:"true" hcl:"max_results_limit,optional"`
}

func DefaultDatabaseConfig() *Database {
	return &Database{
		Path:            "/tmp/medley.db",
		MaxResultsLimit: 200,
	}
}

// Server represents lower level HTTP server settings.
type Server struct {
	// DevMode turns on humanized debug messages, extra debug logging for the webserver and other
	// convenient features for development. Usually turned on along side LogLevel=debug.
	DevMode bool `hcl:"dev_mode,optional"`

	// How long the HTTP service should wait on in-progress connections before hard closing everything out.
	ShutdownTimeout time.Duration `split_words:"true"`

	// ShutdownTimeoutHCL is the HCL compatible counter part to ShutdownTimeout. It allows the parsing of a string
	// to a time.Duration since HCL does not support parsing directly into a time.Duration.
	ShutdownTimeoutHCL string `ignored:"true" hcl:"shutdown_timeout,optional"`
}

// DefaultServerConfig returns a pre-populated configuration struct that is used as the base for super imposing user configuration
// settings.
func DefaultServerConfig() *Server {
	return &Server{
		DevMode:         true,
		ShutdownTimeout: mustParseDuration("15s"),
	}
}

// Media holds the paths and directories for the external media tooling the
// built-in workers shell out to.
type Media struct {
	// Path to the yt-dlp binary.
	YTDLPPath string `split_words:"true" hcl:"ytdlp_path,optional"`

	// Path to the whisper-cli binary.
	WhisperPath string `split_words:"true" hcl:"whisper_path,optional"`

	// Directory holding the ggml whisper model files.
	WhisperModelDir string `split_words:"true" hcl:"whisper_model_dir,optional"`

	// Path to the ffmpeg binary.
	FFmpegPath string `split_words:"true" hcl:"ffmpeg_path,optional"`

	// TranslatorCommand is the external command used to translate subtitle files.
	// It is invoked with the subtitle path and target language appended as arguments.
	TranslatorCommand []string `split_words:"true" hcl:"translator_command,optional"`

	// Directory downloaded media lands in.
	DownloadDir string `split_words:"true" hcl:"download_dir,optional"`

	// Directory generated subtitles and rendered videos land in.
	OutputDir string `split_words:"true" hcl:"output_dir,optional"`
}

func DefaultMediaConfig() *Media {
	return &Media{
		YTDLPPath:       "yt-dlp",
		WhisperPath:     "whisper-cli",
		WhisperModelDir: "/tmp/medley/models",
		FFmpegPath:      "ffmpeg",
		DownloadDir:     "/tmp/medley/downloads",
		OutputDir:       "/tmp/medley/output",
	}
}

// FromEnv parses environment variables into the config object based on envconfig name
func (c *API) FromEnv() error {
	err := envconfig.Process("medley", c)
	if err != nil {
		return err
	}

	return nil
}

// FromBytes attempts to parse a given HCL configuration.
func (c *API) FromBytes(content []byte) error {
	err := hclsimple.Decode("config.hcl", content, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

func (c *API) FromFile(path string) error {
	err := hclsimple.DecodeFile(path, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

// convertDurationFromHCL attempts to move the string value of a duration written in HCL to
// the real time.Duration type. This is needed due to advanced types like time.Duration being not handled particularly
// well during HCL parsing: https://github.com/hashicorp/hcl/issues/202
func (c *API) convertDurationFromHCL() {
	if c.Server != nil && c.Server.ShutdownTimeoutHCL != "" {
		c.Server.ShutdownTimeout = mustParseDuration(c.Server.ShutdownTimeoutHCL)
	}
}

// Get the final configuration for the server.
// This involves correctly finding and ordering different possible paths for the configuration file.
//
// 1) The function is intended to be called with paths gleaned from the -config flag
// 2) Then combine that with possible other config locations that the user might store a config file.
// 3) Then try to see if the user has set an envvar for the config file, which overrides
// all previous config file paths.
// 4) Finally, pass back whatever is deemed the final config path from that process.
//
// We then use that path data to find the config file and read it in via HCL parsers. Once that is finished
// we then take any configuration from the environment and superimpose that on top of the final config struct.
func InitAPIConfig(userDefinedPath string) (*API, error) {
	// First we initiate the default values for the config.
	config := DefaultAPIConfig()

	possibleConfigPaths := []string{userDefinedPath, "/etc/medley/medley.hcl"}

	path := searchFilePaths(possibleConfigPaths...)

	// envVars top all other entries so if its not empty we just insert it over the current path
	// regardless of if we found one.
	envPath := os.Getenv("MEDLEY_CONFIG_PATH")
	if envPath != "" {
		path = envPath
	}

	if path != "" {
		err := config.FromFile(path)
		if err != nil {
			return nil, err
		}
	}

	err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *API) validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path must be set")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be at least 1")
	}

	return nil
}

func PrintAPIEnvs() error {
	var config API
	err := envconfig.Usage("medley", &config)
	if err != nil {
		return err
	}
	fmt.Println("MEDLEY_CONFIG_PATH")

	return nil
}

// searchFilePaths returns the first path in the list that exists and is a
// regular file.
func searchFilePaths(paths ...string) string {
	for _, path := range paths {
		if path == "" {
			continue
		}

		stat, err := os.Stat(path)
		if err != nil {
			continue
		}

		if stat.IsDir() {
			continue
		}

		return path
	}

	return ""
}

func mustParseDuration(duration string) time.Duration {
	parsed, err := time.ParseDuration(duration)
	if err != nil {
		panic(fmt.Sprintf("could not parse duration %q: %v", duration, err))
	}

	return parsed
}
