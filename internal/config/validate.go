package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.MusicDir == "" {
		return errors.New("paths.music_dir must be set")
	}
	if c.Paths.DownloadsDir == "" {
		return errors.New("paths.downloads_dir must be set")
	}
	if c.Paths.MusicDir == c.Paths.DownloadsDir {
		return errors.New("paths.downloads_dir must differ from paths.music_dir")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxConcurrent <= 0 {
		return errors.New("queue.max_concurrent must be positive")
	}
	if c.Queue.IdlePollInterval <= 0 {
		return errors.New("queue.idle_poll_interval must be positive (seconds)")
	}
	if c.Queue.DispatchDelay < 0 {
		return errors.New("queue.dispatch_delay must be >= 0")
	}
	switch c.Queue.ClaimLockBackend {
	case "file":
	case "redis":
		if c.Queue.RedisURL == "" {
			return errors.New("queue.redis_url must be set when queue.claim_lock_backend is \"redis\" (or set REDIS_URL)")
		}
	default:
		return fmt.Errorf("queue.claim_lock_backend must be \"file\" or \"redis\", got %q", c.Queue.ClaimLockBackend)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"download.timeout":              c.Download.Timeout,
		"download.metadata_timeout":     c.Download.MetadataTimeout,
		"download.stable_checks":        c.Download.StableChecks,
		"conversion.timeout":            c.Conversion.Timeout,
		"conversion.stable_checks":      c.Conversion.StableChecks,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func (c *Config) validateConversion() error {
	// The raw download must differ from the canonical .flac so the converter
	// never mistakes an in-progress download for finished output.
	if c.Download.AudioFormat == "flac" {
		return errors.New("download.audio_format must not be \"flac\"; the converter produces the flac")
	}
	if c.Conversion.CompressionLevel < 0 || c.Conversion.CompressionLevel > 12 {
		return errors.New("conversion.compression_level must be between 0 and 12")
	}
	if c.Conversion.LockPollInterval <= 0 {
		return errors.New("conversion.lock_poll_interval must be positive (seconds)")
	}
	if c.Conversion.LockMaxWait < c.Conversion.LockPollInterval {
		return errors.New("conversion.lock_max_wait must be at least conversion.lock_poll_interval")
	}
	if c.Conversion.LockRetryInterval <= 0 {
		return errors.New("conversion.lock_retry_interval must be positive (seconds)")
	}
	if c.Conversion.StableInterval <= 0 || c.Download.StableInterval <= 0 {
		return errors.New("stable_interval must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout < 0 {
		return errors.New("workflow.heartbeat_timeout must be >= 0 (0 disables stale reclaim)")
	}
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.TaskRetentionHours < 0 {
		return errors.New("workflow.task_retention_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return errors.New("storage.endpoint must be set when storage.enabled is true")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket must be set when storage.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
