package config

const (
	defaultConfigPath                = "~/.config/tunevault/config.toml"
	defaultMusicDir                  = "~/music"
	defaultDownloadsDir              = "~/.local/share/tunevault/downloads"
	defaultStateDir                  = "~/.local/share/tunevault"
	defaultLogDir                    = "~/.local/share/tunevault/logs"
	defaultAPIBind                   = "127.0.0.1:8000"
	defaultMaxConcurrent             = 50
	defaultIdlePollInterval          = 2.0
	defaultDispatchDelay             = 1.0
	defaultClaimLockBackend          = "file"
	defaultClaimLockTTL              = 30
	defaultYtDlpBinary               = "yt-dlp"
	defaultAudioFormat               = "m4a"
	defaultDownloadTimeout           = 600
	defaultMetadataTimeout           = 30
	defaultDownloadStableMaxWait     = 15.0
	defaultDownloadStableChecks      = 4
	defaultStableInterval            = 0.5
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultConversionTimeout         = 120
	defaultCompressionLevel          = 8
	defaultMinInputBytes             = 1024
	defaultLockMaxWait               = 30.0
	defaultLockPollInterval          = 0.5
	defaultLockRetryInterval         = 5.0
	defaultConversionStableMaxWait   = 10.0
	defaultConversionStableChecks    = 3
	defaultAlbum                     = "Unknown Album"
	defaultNotifyRequestTimeout      = 10
	defaultWorkflowErrorRetry        = 5
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultTaskRetentionHours        = 24
	defaultCleanupInterval           = 3600
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MusicDir:     defaultMusicDir,
			DownloadsDir: defaultDownloadsDir,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Queue: Queue{
			MaxConcurrent:    defaultMaxConcurrent,
			IdlePollInterval: defaultIdlePollInterval,
			DispatchDelay:    defaultDispatchDelay,
			ClaimLockBackend: defaultClaimLockBackend,
			ClaimLockTTL:     defaultClaimLockTTL,
		},
		Download: Download{
			YtDlpBinary:     defaultYtDlpBinary,
			AudioFormat:     defaultAudioFormat,
			Timeout:         defaultDownloadTimeout,
			MetadataTimeout: defaultMetadataTimeout,
			StableMaxWait:   defaultDownloadStableMaxWait,
			StableInterval:  defaultStableInterval,
			StableChecks:    defaultDownloadStableChecks,
		},
		Conversion: Conversion{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			Timeout:           defaultConversionTimeout,
			CompressionLevel:  defaultCompressionLevel,
			MinInputBytes:     defaultMinInputBytes,
			ValidateInput:     true,
			LockMaxWait:       defaultLockMaxWait,
			LockPollInterval:  defaultLockPollInterval,
			LockRetryInterval: defaultLockRetryInterval,
			StableMaxWait:     defaultConversionStableMaxWait,
			StableInterval:    defaultStableInterval,
			StableChecks:      defaultConversionStableChecks,
		},
		Library: Library{
			IncludeYearInAlbum: true,
			DefaultAlbum:       defaultAlbum,
		},
		Plex: Plex{
			AutoScan: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Workflow: Workflow{
			ErrorRetryInterval: defaultWorkflowErrorRetry,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			TaskRetentionHours: defaultTaskRetentionHours,
			CleanupInterval:    defaultCleanupInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
