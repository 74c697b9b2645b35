package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTranscription() error {
	parsed, err := url.Parse(c.Transcription.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("transcription.base_url must be an absolute URL, got %q", c.Transcription.BaseURL)
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.SigningKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("export.signing_key is required. Set %s env var or edit %s (create with 'reelsub config init')", signingKeyEnv, defaultPath)
	}
	if len(c.Export.SigningKey) < 16 {
		return errors.New("export.signing_key must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.count":                 c.Workers.Count,
		"workers.poll_interval":         c.Workers.PollInterval,
		"workers.error_retry_interval":  c.Workers.ErrorRetryInterval,
		"workers.heartbeat_interval":    c.Workers.HeartbeatInterval,
		"workers.heartbeat_timeout":     c.Workers.HeartbeatTimeout,
		"workers.hard_limit_seconds":    c.Workers.HardLimitSeconds,
		"workers.soft_limit_seconds":    c.Workers.SoftLimitSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workers.HeartbeatTimeout <= c.Workers.HeartbeatInterval {
		return errors.New("workers.heartbeat_timeout must be greater than workers.heartbeat_interval")
	}
	if c.Workers.SoftLimitSeconds >= c.Workers.HardLimitSeconds {
		return errors.New("workers.soft_limit_seconds must be less than workers.hard_limit_seconds")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.transcribe_base_seconds": c.Retry.TranscribeBaseSeconds,
		"retry.export_base_seconds":     c.Retry.ExportBaseSeconds,
	}); err != nil {
		return err
	}
	if c.Retry.TranscribeMaxAttempts < 0 {
		return errors.New("retry.transcribe_max_attempts must be >= 0")
	}
	if c.Retry.ExportMaxAttempts < 0 {
		return errors.New("retry.export_max_attempts must be >= 0")
	}
	if c.Retry.StorageMaxRetries < 0 {
		return errors.New("retry.storage_max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.IntervalSeconds <= 0 {
		return errors.New("cleanup.interval_seconds must be positive")
	}
	if c.Cleanup.MaxAgeSeconds <= 0 {
		return errors.New("cleanup.max_age_seconds must be positive")
	}
	if strings.ContainsAny(c.Cleanup.Prefix, `/\`) {
		return errors.New("cleanup.prefix must not contain path separators")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	if c.Limits.MaxDurationSeconds < 0 {
		return errors.New("limits.max_duration_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
