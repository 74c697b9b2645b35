package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	TempDir       string `toml:"temp_dir"`
	BlobDir       string `toml:"blob_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Transcription contains settings for the speech-to-text provider.
type Transcription struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	DefaultLanguage string `toml:"default_language"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	ExtractAudio    bool   `toml:"extract_audio"`
}

// Export contains settings for burning captions into video.
type Export struct {
	VideoCodec          string `toml:"video_codec"`
	AudioCodec          string `toml:"audio_codec"`
	Preset              string `toml:"preset"`
	WatermarkText       string `toml:"watermark_text"`
	SignedURLTTLSeconds int    `toml:"signed_url_ttl_seconds"`
	SigningKey          string `toml:"signing_key"`
}

// Workers contains worker pool sizing and timing.
type Workers struct {
	Count              int `toml:"count"`
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	HardLimitSeconds   int `toml:"hard_limit_seconds"`
	SoftLimitSeconds   int `toml:"soft_limit_seconds"`
}

// Retry contains backoff settings per job kind.
type Retry struct {
	TranscribeBaseSeconds int `toml:"transcribe_base_seconds"`
	TranscribeMaxAttempts int `toml:"transcribe_max_attempts"`
	ExportBaseSeconds     int `toml:"export_base_seconds"`
	ExportMaxAttempts     int `toml:"export_max_attempts"`
	StorageMaxRetries     int `toml:"storage_max_retries"`
}

// Cleanup contains settings for the temporary artifact sweeper.
type Cleanup struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	MaxAgeSeconds   int    `toml:"max_age_seconds"`
	Prefix          string `toml:"prefix"`
}

// Limits contains upload intake limits.
type Limits struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MaxDurationSeconds int      `toml:"max_duration_seconds"`
	AllowedExtensions  []string `toml:"allowed_extensions"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsub.
//
// Configuration sections by subsystem:
//   - Paths: database, temp, blob, and log directories plus the API bind address
//   - Transcription: speech-to-text endpoint and credentials
//   - Export: transcoder codecs, watermark, and signed URL settings
//   - Workers: pool size, polling, heartbeats, and time limits
//   - Retry: per-kind backoff base and attempt caps
//   - Cleanup: temp artifact sweep cadence and age
//   - Limits: upload size, duration, and extension allow-list
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Export        Export        `toml:"export"`
	Workers       Workers       `toml:"workers"`
	Retry         Retry         `toml:"retry"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Limits        Limits        `toml:"limits"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.TempDir, c.Paths.BlobDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding jobs, projects, and subtitles.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reelsub.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelsubd.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction and burn-in.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// HardLimit is the wall-clock cap for one job attempt.
func (c *Config) HardLimit() time.Duration {
	return time.Duration(c.Workers.HardLimitSeconds) * time.Second
}

// SoftLimit is the point after which a job attempt stops starting new steps.
func (c *Config) SoftLimit() time.Duration {
	return time.Duration(c.Workers.SoftLimitSeconds) * time.Second
}

// SignedURLTTL returns how long export download links stay valid.
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.Export.SignedURLTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
