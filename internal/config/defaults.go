package config

const (
	defaultConfigPath                = "~/.config/reelsub/config.toml"
	defaultDataDir                   = "~/.local/share/reelsub"
	defaultTempDir                   = "~/.local/share/reelsub/tmp"
	defaultBlobDir                   = "~/.local/share/reelsub/blobs"
	defaultLogDir                    = "~/.local/share/reelsub/logs"
	defaultAPIBind                   = "127.0.0.1:7488"
	defaultTranscriptionBaseURL      = "https://api.openai.com/v1"
	defaultTranscriptionModel        = "whisper-1"
	defaultTranscriptionLanguage     = "auto"
	defaultTranscriptionTimeout      = 600
	defaultVideoCodec                = "libx264"
	defaultAudioCodec                = "aac"
	defaultExportPreset              = "medium"
	defaultSignedURLTTLSeconds       = 3600
	defaultWorkerCount               = 2
	defaultWorkersHeartbeatInterval  = 15
	defaultWorkersHeartbeatTimeout   = 120
	defaultHardLimitSeconds          = 30 * 60
	defaultSoftLimitSeconds          = 25 * 60
	defaultTranscribeBaseSeconds     = 60
	defaultTranscribeMaxAttempts     = 3
	defaultExportBaseSeconds         = 120
	defaultExportMaxAttempts         = 2
	defaultStorageMaxRetries         = 1
	defaultCleanupIntervalSeconds    = 3600
	defaultCleanupMaxAgeSeconds      = 3600
	defaultCleanupPrefix             = "temp_"
	defaultMaxUploadBytes            = 1 << 30
	defaultNotificationsTimeout      = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	apiTokenEnv                      = "REELSUB_API_TOKEN"
	signingKeyEnv                    = "REELSUB_SIGNING_KEY"
	transcriptionAPIKeyEnv           = "REELSUB_TRANSCRIPTION_API_KEY"
	transcriptionAPIKeyFallbackEnv   = "OPENAI_API_KEY"
	defaultWorkersPollInterval       = 5
	defaultWorkersErrorRetryInterval = 10
)

var defaultAllowedExtensions = []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			TempDir: defaultTempDir,
			BlobDir: defaultBlobDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcription: Transcription{
			BaseURL:         defaultTranscriptionBaseURL,
			Model:           defaultTranscriptionModel,
			DefaultLanguage: defaultTranscriptionLanguage,
			TimeoutSeconds:  defaultTranscriptionTimeout,
			ExtractAudio:    true,
		},
		Export: Export{
			VideoCodec:          defaultVideoCodec,
			AudioCodec:          defaultAudioCodec,
			Preset:              defaultExportPreset,
			SignedURLTTLSeconds: defaultSignedURLTTLSeconds,
		},
		Workers: Workers{
			Count:              defaultWorkerCount,
			PollInterval:       defaultWorkersPollInterval,
			ErrorRetryInterval: defaultWorkersErrorRetryInterval,
			HeartbeatInterval:  defaultWorkersHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkersHeartbeatTimeout,
			HardLimitSeconds:   defaultHardLimitSeconds,
			SoftLimitSeconds:   defaultSoftLimitSeconds,
		},
		Retry: Retry{
			TranscribeBaseSeconds: defaultTranscribeBaseSeconds,
			TranscribeMaxAttempts: defaultTranscribeMaxAttempts,
			ExportBaseSeconds:     defaultExportBaseSeconds,
			ExportMaxAttempts:     defaultExportMaxAttempts,
			StorageMaxRetries:     defaultStorageMaxRetries,
		},
		Cleanup: Cleanup{
			IntervalSeconds: defaultCleanupIntervalSeconds,
			MaxAgeSeconds:   defaultCleanupMaxAgeSeconds,
			Prefix:          defaultCleanupPrefix,
		},
		Limits: Limits{
			MaxUploadBytes:    defaultMaxUploadBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotificationsTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
